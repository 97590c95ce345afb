package watcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRefresh_UnchangedReturnsSameHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	if err := os.WriteFile(path, []byte("alice\nbob\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	hash, lines, changed, err := Refresh(path, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected first refresh to report a change")
	}

	hash2, lines2, changed2, err := Refresh(path, hash, lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed2 {
		t.Error("expected no change when file is untouched")
	}
	if hash2 != hash {
		t.Errorf("expected same hash, got %s vs %s", hash2, hash)
	}
	if len(lines2) != 2 {
		t.Errorf("expected unchanged lines, got %v", lines2)
	}
}

func TestRefresh_ChangedReturnsNewContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	if err := os.WriteFile(path, []byte("alice\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	hash, _, _, err := Refresh(path, "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(path, []byte("alice\nbob\ncarol\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}

	newHash, lines, changed, err := Refresh(path, hash, []string{"alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected change to be detected")
	}
	if newHash == hash {
		t.Error("expected hash to differ after mutation")
	}
	if len(lines) != 3 || lines[0] != "alice" || lines[1] != "bob" || lines[2] != "carol" {
		t.Errorf("expected post-mutation contents exactly, got %v", lines)
	}
}

func TestRefresh_MissingFileTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.txt")

	hash, lines, changed, err := Refresh(path, "previous-hash", []string{"alice"})
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if changed {
		t.Error("expected no change reported for missing file")
	}
	if hash != "previous-hash" {
		t.Errorf("expected previous hash preserved, got %s", hash)
	}
	if len(lines) != 1 || lines[0] != "alice" {
		t.Errorf("expected previous lines preserved, got %v", lines)
	}
}

func TestRefresh_EmptyPathNoop(t *testing.T) {
	hash, lines, changed, err := Refresh("", "h", []string{"x"})
	if err != nil || changed || hash != "h" || len(lines) != 1 {
		t.Errorf("expected no-op for empty path, got hash=%s lines=%v changed=%v err=%v", hash, lines, changed, err)
	}
}
