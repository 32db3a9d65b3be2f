package persist

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// sink performs the durable writes for one output destination. Implementations
// are not safe for concurrent use; the owning channel's wmu serializes access.
type sink interface {
	// writeDelta persists new content. Append sinks write exactly the delta
	// lines; full-rewrite sinks ignore delta and rebuild the document from
	// full.
	writeDelta(delta, full []string) error

	// rotate moves the current file aside to a timestamped backup and starts
	// a fresh file for the next generation.
	rotate(now time.Time) error

	close() error

	path() string
}

func newSink(mode SinkMode, filePath string) (sink, error) {
	switch mode {
	case SinkFullRewrite:
		return newRewriteSink(filePath), nil
	default:
		return newAppendSink(filePath)
	}
}

// appendSink appends delta lines at the end of file. The file is opened in
// append mode, so the write position always tracks the durable end; prior
// content is never re-read or rewritten.
type appendSink struct {
	filePath string
	fd       *os.File
}

func newAppendSink(filePath string) (*appendSink, error) {
	fd, err := openLogFile(filePath)
	if err != nil {
		return nil, err
	}
	return &appendSink{filePath: filePath, fd: fd}, nil
}

func (s *appendSink) writeDelta(delta, _ []string) error {
	if len(delta) == 0 {
		return nil
	}

	if s.fd == nil {
		fd, err := openLogFile(s.filePath)
		if err != nil {
			return err
		}
		s.fd = fd
	}

	size := 0
	for _, line := range delta {
		size += len(line) + 1
	}
	buf := make([]byte, 0, size)
	for _, line := range delta {
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	if _, err := s.fd.Write(buf); err != nil {
		return fmt.Errorf("append %s: %w", s.filePath, err)
	}
	return nil
}

func (s *appendSink) rotate(now time.Time) error {
	if s.fd != nil {
		err := s.fd.Close()
		s.fd = nil
		if err != nil {
			return fmt.Errorf("close before rotate: %w", err)
		}
	}

	if err := moveLogFile(s.filePath, now); err != nil {
		return err
	}

	fd, err := openLogFile(s.filePath)
	if err != nil {
		return err
	}
	s.fd = fd
	return nil
}

func (s *appendSink) close() error {
	if s.fd == nil {
		return nil
	}
	err := s.fd.Close()
	s.fd = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", s.filePath, err)
	}
	return nil
}

func (s *appendSink) path() string {
	return s.filePath
}

// rewriteSink rebuilds the whole document on every save. Used for wrapped
// report output whose structure cannot be extended by appending: the content
// is framed by a title line and a trailing line-count marker, so a valid
// document requires rewriting both on every change. The rewrite goes through
// a temp file and rename so readers never observe a half-written report.
type rewriteSink struct {
	filePath string
	title    string
}

func newRewriteSink(filePath string) *rewriteSink {
	base := filepath.Base(filePath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return &rewriteSink{filePath: filePath, title: base}
}

func (s *rewriteSink) writeDelta(_, full []string) error {
	dir := path.Dir(s.filePath)
	if err := os.MkdirAll(dir, defaultDirMode); err != nil {
		return fmt.Errorf("create log directory %s: %w", dir, err)
	}

	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(s.title)
	sb.WriteString("\n\n")
	for _, line := range full {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "\n<!-- lines: %d -->\n", len(full))

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, []byte(sb.String()), defaultFileMode); err != nil {
		return fmt.Errorf("write report %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("publish report %s: %w", s.filePath, err)
	}
	return nil
}

func (s *rewriteSink) rotate(now time.Time) error {
	return moveLogFile(s.filePath, now)
}

func (s *rewriteSink) close() error {
	return nil
}

func (s *rewriteSink) path() string {
	return s.filePath
}
