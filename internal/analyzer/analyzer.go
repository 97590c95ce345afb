// Package analyzer implements the post-interval Analyzer (spec.md
// §4.6): a best-effort statistical pass over the Attempt Log that
// flags likely valid credentials without ever blocking the spray
// itself. False positives are accepted by design.
package analyzer

import (
	"strconv"

	"github.com/crlsmrls/lowandslow/internal/attemptlog"
	"github.com/crlsmrls/lowandslow/internal/statistics"
)

// minCodeSampleSize is the smallest number of non-timeout HTTP records
// the status-code-outlier rule will run over; below it the rule is
// skipped — spec.md §9's open question, resolved here by suppression
// rather than silently changing the rule for larger samples. Since a
// code counts as an outlier only below 10% frequency, no code can be
// one in a sample of fewer than ten records, so at its current value
// this guard does not change any result.
const minCodeSampleSize = 5

// smbHitCodes are the SMB login statuses that indicate the credential
// itself is valid, per spec.md §4.6.
var smbHitCodes = map[string]struct{}{
	"STATUS_SUCCESS":             {},
	"STATUS_ACCOUNT_DISABLED":    {},
	"STATUS_PASSWORD_EXPIRED":    {},
	"STATUS_PASSWORD_MUST_CHANGE": {},
}

// Result is the outcome of one analysis pass.
type Result struct {
	HitCount int
	Users    map[string]struct{}
}

// Analyze scans records and returns the set of usernames flagged as
// likely hits, grouped by the record's own Module field so a single
// log containing more than one module's attempts is analyzed
// correctly.
func Analyze(records []attemptlog.Record) Result {
	byModule := make(map[string][]attemptlog.Record)
	for _, r := range records {
		byModule[r.Module] = append(byModule[r.Module], r)
	}

	users := make(map[string]struct{})
	for module, recs := range byModule {
		var flagged map[string]struct{}
		switch module {
		case "o365":
			flagged = analyzeO365(recs)
		case "smb":
			flagged = analyzeSMB(recs)
		default:
			flagged = analyzeHTTP(recs)
		}
		for u := range flagged {
			users[u] = struct{}{}
		}
	}

	return Result{HitCount: len(users), Users: users}
}

// analyzeO365 flags any record whose Result field is "Success",
// exactly spec.md §4.6 and S6.
func analyzeO365(records []attemptlog.Record) map[string]struct{} {
	hits := make(map[string]struct{})
	for _, r := range records {
		if r.Result == "Success" {
			hits[r.Username] = struct{}{}
		}
	}
	return hits
}

// analyzeSMB flags any record whose SMB Login status indicates a
// valid credential, per spec.md §4.6.
func analyzeSMB(records []attemptlog.Record) map[string]struct{} {
	hits := make(map[string]struct{})
	for _, r := range records {
		if _, ok := smbHitCodes[r.SMBLogin]; ok {
			hits[r.Username] = struct{}{}
		}
	}
	return hits
}

// analyzeHTTP flags records whose response length is a 2-sigma length
// outlier, or (sample permitting) whose response code occurs in fewer
// than 10% of non-timeout records. Timeouts are excluded from both
// computations since TIMEOUT is not a meaningful length or code.
func analyzeHTTP(records []attemptlog.Record) map[string]struct{} {
	type sample struct {
		rec    attemptlog.Record
		length float64
		code   string
		hasLen bool
	}

	samples := make([]sample, 0, len(records))
	lengths := make([]float64, 0, len(records))
	codeCounts := make(map[string]int)

	for _, r := range records {
		s := sample{rec: r}
		if !attemptlog.IsTimeoutCode(r.ResponseLength) {
			if n, ok := toFloat(r.ResponseLength); ok {
				s.length = n
				s.hasLen = true
				lengths = append(lengths, n)
			}
		}
		if !attemptlog.IsTimeoutCode(r.ResponseCode) {
			if c, ok := toCodeString(r.ResponseCode); ok {
				s.code = c
				codeCounts[c]++
			}
		}
		samples = append(samples, s)
	}

	mean := statistics.Mean(lengths)
	stddev := statistics.StandardDeviation(lengths)

	nonTimeoutCodes := 0
	for _, c := range codeCounts {
		nonTimeoutCodes += c
	}
	checkCodes := nonTimeoutCodes >= minCodeSampleSize

	hits := make(map[string]struct{})
	for _, s := range samples {
		lengthOutlier := s.hasLen && stddev > 0 && abs(s.length-mean) > 2*stddev
		codeOutlier := false
		if checkCodes && s.code != "" {
			freq := float64(codeCounts[s.code]) / float64(nonTimeoutCodes)
			codeOutlier = freq < 0.10
		}
		if lengthOutlier || codeOutlier {
			hits[s.rec.Username] = struct{}{}
		}
	}
	return hits
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toCodeString(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, n != ""
	case float64:
		return strconv.Itoa(int(n)), true
	case int:
		return strconv.Itoa(n), true
	default:
		return "", false
	}
}
