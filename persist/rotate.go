package persist

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// openLogFile opens the channel output file for appending, creating parent
// directories as needed.
func openLogFile(filePath string) (*os.File, error) {
	if len(filePath) == 0 {
		return nil, errors.New("filename is empty")
	}

	dir := path.Dir(filePath)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return nil, fmt.Errorf("create log directory %s: %w", dir, err)
	}

	fd, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", filePath, err)
	}
	return fd, nil
}

// moveLogFile renames the current file to a timestamped backup. A missing
// current file is not an error; there is simply nothing to back up.
func moveLogFile(filePath string, now time.Time) error {
	if exists, err := fileExists(filePath); err != nil {
		return fmt.Errorf("check file existence: %w", err)
	} else if !exists {
		return nil
	}

	newFilePath, err := generateBackupFileName(filePath, now)
	if err != nil {
		return fmt.Errorf("generate backup filename: %w", err)
	}

	if err := os.Rename(filePath, newFilePath); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// generateBackupFileName creates a unique backup filename by appending a
// second-precision timestamp after the extension. Collisions are resolved
// with 1-second increments first, then a counter suffix, so rotating faster
// than once per second cannot exhaust the name space.
func generateBackupFileName(filePath string, now time.Time) (string, error) {
	ext := filepath.Ext(filePath)
	baseName := strings.TrimSuffix(filePath, ext)
	stamped := fmt.Sprintf("%s%s.%04d%02d%02d-%02d%02d%02d", baseName, ext,
		now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second())

	for i := 0; i < 5; i++ {
		timestamp := now.Add(time.Duration(i) * time.Second)
		newFilePath := fmt.Sprintf("%s%s.%04d%02d%02d-%02d%02d%02d",
			baseName,
			ext,
			timestamp.Year(),
			timestamp.Month(),
			timestamp.Day(),
			timestamp.Hour(),
			timestamp.Minute(),
			timestamp.Second(),
		)

		if exists, err := fileExists(newFilePath); err != nil {
			return "", fmt.Errorf("check file existence: %w", err)
		} else if !exists {
			return newFilePath, nil
		}
	}

	for i := 1; i < 10000; i++ {
		newFilePath := fmt.Sprintf("%s-%d", stamped, i)
		if exists, err := fileExists(newFilePath); err != nil {
			return "", fmt.Errorf("check file existence: %w", err)
		} else if !exists {
			return newFilePath, nil
		}
	}

	return "", errors.New("cannot generate unique backup filename")
}

func fileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat file: %w", err)
}
