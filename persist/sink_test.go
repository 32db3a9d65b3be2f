package persist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppendSinkWritesDeltaOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app_log.txt")
	s, err := newAppendSink(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()

	if err := s.writeDelta([]string{"a", "b"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.writeDelta([]string{"c"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.writeDelta(nil, nil); err != nil {
		t.Fatal(err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "a\nb\nc\n" {
		t.Errorf("file content = %q", content)
	}
}

func TestAppendSinkResumesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app_log.txt")
	if err := os.WriteFile(path, []byte("old\n"), defaultFileMode); err != nil {
		t.Fatal(err)
	}

	s, err := newAppendSink(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()

	if err := s.writeDelta([]string{"new"}, nil); err != nil {
		t.Fatal(err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "old\nnew\n" {
		t.Errorf("file content = %q", content)
	}
}

func TestAppendSinkRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app_log.txt")
	s, err := newAppendSink(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.close()

	if err := s.writeDelta([]string{"gen1"}, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.rotate(time.Now()); err != nil {
		t.Fatal(err)
	}

	backups, err := filepath.Glob(path + ".*")
	if err != nil || len(backups) != 1 {
		t.Fatalf("expected one backup file, got %v (err %v)", backups, err)
	}
	backup, _ := os.ReadFile(backups[0])
	if string(backup) != "gen1\n" {
		t.Errorf("backup content = %q", backup)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(content) != 0 {
		t.Errorf("fresh file must be empty, got %q", content)
	}

	if err := s.writeDelta([]string{"gen2"}, nil); err != nil {
		t.Fatal(err)
	}
	content, _ = os.ReadFile(path)
	if string(content) != "gen2\n" {
		t.Errorf("post-rotate content = %q", content)
	}
}

func TestRewriteSinkRebuildsDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report_log.txt")
	s := newRewriteSink(path)

	if err := s.writeDelta(nil, []string{"one", "two"}); err != nil {
		t.Fatal(err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(content)
	if !strings.HasPrefix(text, "# report_log\n") {
		t.Errorf("missing title line: %q", text)
	}
	if !strings.Contains(text, "one\ntwo\n") {
		t.Errorf("missing body: %q", text)
	}
	if !strings.Contains(text, "<!-- lines: 2 -->") {
		t.Errorf("missing trailer: %q", text)
	}

	// Every save rebuilds the whole document.
	if err := s.writeDelta(nil, []string{"one", "two", "three"}); err != nil {
		t.Fatal(err)
	}
	content, _ = os.ReadFile(path)
	text = string(content)
	if !strings.Contains(text, "three\n") || !strings.Contains(text, "<!-- lines: 3 -->") {
		t.Errorf("rewrite did not cover new content: %q", text)
	}
	if strings.Contains(text, "<!-- lines: 2 -->") {
		t.Errorf("stale trailer survived rewrite: %q", text)
	}
}

func TestGenerateBackupFileNameAvoidsCollision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app_log.txt")
	now := time.Now()

	first, err := generateBackupFileName(path, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(first, []byte("x"), defaultFileMode); err != nil {
		t.Fatal(err)
	}

	second, err := generateBackupFileName(path, now)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("collision not resolved: %s", first)
	}
}

func TestGenerateBackupFileNameSurvivesRapidRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app_log.txt")
	now := time.Now()

	// More rotations within one second than the timestamped name space
	// holds; the counter suffix must keep producing unique names.
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		name, err := generateBackupFileName(path, now)
		if err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
		if seen[name] {
			t.Fatalf("rotation %d: duplicate name %s", i, name)
		}
		seen[name] = true
		if err := os.WriteFile(name, []byte("x"), defaultFileMode); err != nil {
			t.Fatal(err)
		}
	}
}
