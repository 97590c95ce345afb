package attemptlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func tempLogPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "attempts.jsonl")
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
}

func TestAppendAndScan(t *testing.T) {
	path := tempLogPath(t)
	l, err := Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer l.Close()

	l.Append(Record{Timestamp: "2024-01-01 00:00:00", Module: "HTTP", Username: "u1", Password: "p1", ResponseCode: 200, ResponseLength: 100})
	l.Append(Record{Timestamp: "2024-01-01 00:00:01", Module: "HTTP", Username: "u2", Password: "p1", ResponseCode: 401, ResponseLength: 50})

	var got []Record
	if err := Scan(path, zerolog.Nop(), func(r Record) bool {
		got = append(got, r)
		return true
	}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Username != "u1" || got[1].Username != "u2" {
		t.Errorf("unexpected records: %+v", got)
	}
}

func TestScanNonexistentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonl")
	var count int
	if err := Scan(path, zerolog.Nop(), func(Record) bool { count++; return true }); err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if count != 0 {
		t.Errorf("expected no records, got %d", count)
	}
}

func TestScanSkipsMalformedLines(t *testing.T) {
	path := tempLogPath(t)
	writeLines(t, path, []string{
		`{"Username": "user1", "Password": "Password1"}`,
		`malformed json line`,
		`{"Username": "user2", "Password": "Password2"}`,
		``,
	})

	var users []string
	if err := Scan(path, zerolog.Nop(), func(r Record) bool {
		users = append(users, r.Username)
		return true
	}); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(users) != 2 || users[0] != "user1" || users[1] != "user2" {
		t.Errorf("unexpected users: %v", users)
	}
}

func TestDeriveCompleted(t *testing.T) {
	path := tempLogPath(t)
	writeLines(t, path, []string{
		`{"Username": "user1", "Password": "Password1"}`,
		`{"Username": "user2"}`,
		`{"Password": "Password3"}`,
		`{"Username": "", "Password": "Password4"}`,
		`{"Username": "DOMAIN\\user5", "Password": "Password5"}`,
	})

	completed, err := DeriveCompleted(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("DeriveCompleted failed: %v", err)
	}

	if len(completed) != 2 {
		t.Fatalf("expected 2 completed pairs, got %d: %v", len(completed), completed)
	}
	if _, ok := completed[Pair{Username: "user1", Password: "Password1"}]; !ok {
		t.Errorf("expected user1/Password1 to be completed")
	}
	if _, ok := completed[Pair{Username: `DOMAIN\user5`, Password: "Password5"}]; !ok {
		t.Errorf("expected domain-prefixed user to be completed")
	}
}

func TestDeriveCompletedEmptyFile(t *testing.T) {
	path := tempLogPath(t)
	completed, err := DeriveCompleted(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("DeriveCompleted failed: %v", err)
	}
	if len(completed) != 0 {
		t.Errorf("expected empty set, got %v", completed)
	}
}
