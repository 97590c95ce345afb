// Package watcher implements the Watcher (spec.md §4.5): between
// intervals, hashes the username/password input files and, on change,
// reloads them wholesale. File-change detection is deliberately
// hash-based (SHA-256 over file bytes), never mtime, per spec.md §9 —
// mtime resolution is too coarse on some filesystems and can miss an
// append that lands within the same second.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Refresh hashes the file at path and, if the hash differs from
// prevHash, reloads its lines. A missing file is tolerated: the
// previous hash and lines are returned unchanged rather than an error,
// per spec.md §4.5.
func Refresh(path, prevHash string, prevLines []string) (hash string, lines []string, changed bool, err error) {
	if path == "" {
		return prevHash, prevLines, false, nil
	}

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return prevHash, prevLines, false, nil
		}
		return prevHash, prevLines, false, fmt.Errorf("read %s: %w", path, readErr)
	}

	sum := sha256.Sum256(data)
	hash = hex.EncodeToString(sum[:])

	if hash == prevHash {
		return prevHash, prevLines, false, nil
	}

	return hash, splitNonEmptyLines(string(data)), true, nil
}

// HashFile returns the SHA-256 hex digest of a file's current bytes,
// used to seed the initial hash before the first Refresh call.
func HashFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
