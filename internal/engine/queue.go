// Package engine implements the Orchestrator (spec.md §4.7): the
// state machine that owns the work queue, drives the attempt loop,
// and dispatches to every other component.
package engine

import "github.com/crlsmrls/lowandslow/internal/attemptlog"

// Pair is a credential pair pending or completed attempt.
type Pair = attemptlog.Pair

// BuildQueue returns the work queue in password-major, username-minor
// order (spec.md §3: "all users tried with pw1, then all with pw2,
// ..."), grounded in original_source's _build_work_queue: usernames
// are domain-qualified uniformly before being paired, completed pairs
// are dropped, and (when skipGuessed is set) any pair whose username
// has been flagged by the Analyzer is dropped too.
func BuildQueue(usernames, passwords []string, domain string, completed map[Pair]struct{}, guessed map[string]struct{}, skipGuessed bool) []Pair {
	queue := make([]Pair, 0, len(usernames)*len(passwords))
	for _, pw := range passwords {
		for _, user := range usernames {
			qualified := QualifyUsername(user, domain)
			if skipGuessed {
				if _, ok := guessed[qualified]; ok {
					continue
				}
			}
			pair := Pair{Username: qualified, Password: pw}
			if _, done := completed[pair]; done {
				continue
			}
			queue = append(queue, pair)
		}
	}
	return queue
}

// QualifyUsername applies a domain prefix (DOMAIN\user) uniformly
// when domain is non-empty, per spec.md §3's Credential Pair shape.
func QualifyUsername(user, domain string) string {
	if domain == "" {
		return user
	}
	return domain + `\` + user
}
