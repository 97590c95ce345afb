package attemptlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// WriteLine marshals rec as a single JSON line and writes it to w with
// a trailing newline, per spec.md §6's Attempt Log format. Used by
// target.Adapter implementations, which own their own Record shape but
// not the destination writer (the Orchestrator passes its *Log).
func WriteLine(w io.Writer, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal attempt record: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// Pair is a completed (username, password) tuple, keyed exactly on the
// fields resumption depends on per spec.md §6.
type Pair struct {
	Username string
	Password string
}

// Log is the append-only attempt store (C3). A single *os.File is kept
// open in append mode for the lifetime of a run; readers (Scan) open
// their own handle so a resume-time scan never contends with the
// writer.
type Log struct {
	path string
	file *os.File
	log  zerolog.Logger
}

// Open creates (if necessary) and opens the attempt log for appending.
func Open(path string, log zerolog.Logger) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open attempt log %s: %w", path, err)
	}
	return &Log{path: path, file: f, log: log}, nil
}

// Path returns the underlying file path.
func (l *Log) Path() string { return l.path }

// Close closes the underlying file handle.
func (l *Log) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Append writes one record as a single JSON line. A write error is
// logged and swallowed per spec.md §7 ("Attempt-log write error:
// logged, attempt continues; best-effort durability") rather than
// propagated to the caller, since losing one trace line must never
// abort a spray.
func (l *Log) Append(rec Record) {
	b, err := json.Marshal(rec)
	if err != nil {
		l.log.Warn().Err(err).Msg("failed to marshal attempt record")
		return
	}
	b = append(b, '\n')
	if _, err := l.file.Write(b); err != nil {
		l.log.Warn().Err(err).Str("path", l.path).Msg("failed to append attempt record")
	}
}

// Write implements io.Writer so adapters can append pre-rendered
// record lines directly (target.Adapter.LogAttempt owns its own
// record shape). Write errors are logged and swallowed, exactly
// Append's contract, so a stalled disk never aborts a spray.
func (l *Log) Write(p []byte) (int, error) {
	if _, err := l.file.Write(p); err != nil {
		l.log.Warn().Err(err).Str("path", l.path).Msg("failed to append attempt record")
	}
	return len(p), nil
}

// Scan streams every record from the log at path, skipping malformed
// lines with a warning rather than aborting (spec.md §7). Scan opens
// its own read handle so it never needs the writer's *Log.
func Scan(path string, log zerolog.Logger, yield func(Record) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open attempt log %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(trimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Warn().Err(err).Msg("skipping malformed attempt log line")
			continue
		}
		if !yield(rec) {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan attempt log %s: %w", path, err)
	}
	return nil
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isSpace(b[i]) {
		i++
	}
	for j > i && isSpace(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// DeriveCompleted rebuilds the Completed Set from the attempt log,
// ignoring records with a missing or empty username/password, per
// spec.md §4.2.
func DeriveCompleted(path string, log zerolog.Logger) (map[Pair]struct{}, error) {
	completed := make(map[Pair]struct{})
	err := Scan(path, log, func(rec Record) bool {
		if rec.Username == "" || rec.Password == "" {
			return true
		}
		completed[Pair{Username: rec.Username, Password: rec.Password}] = struct{}{}
		return true
	})
	if err != nil {
		return nil, err
	}
	return completed, nil
}
