package analyzer

import (
	"testing"

	"github.com/crlsmrls/lowandslow/internal/attemptlog"
)

func httpRecord(user string, length, code int) attemptlog.Record {
	return attemptlog.Record{
		Module:         "http",
		Username:       user,
		Password:       "x",
		ResponseCode:   float64(code),
		ResponseLength: float64(length),
	}
}

// TestHTTPLengthOutlier mirrors spec.md S5: 15 records of length 1000
// and 2 of length 100000, all code 200. The two long responses are
// flagged as length outliers; the 15 short ones are not.
func TestHTTPLengthOutlier(t *testing.T) {
	var records []attemptlog.Record
	for i := 0; i < 15; i++ {
		records = append(records, httpRecord("user"+string(rune('a'+i)), 1000, 200))
	}
	records = append(records, httpRecord("outlier1", 100000, 200))
	records = append(records, httpRecord("outlier2", 100000, 200))

	result := Analyze(records)

	if result.HitCount != 2 {
		t.Fatalf("expected hit_count=2, got %d", result.HitCount)
	}
	if _, ok := result.Users["outlier1"]; !ok {
		t.Error("expected outlier1 flagged")
	}
	if _, ok := result.Users["outlier2"]; !ok {
		t.Error("expected outlier2 flagged")
	}
	for i := 0; i < 15; i++ {
		name := "user" + string(rune('a'+i))
		if _, ok := result.Users[name]; ok {
			t.Errorf("did not expect %s flagged", name)
		}
	}
}

// TestO365SuccessDetection mirrors spec.md S6.
func TestO365SuccessDetection(t *testing.T) {
	records := []attemptlog.Record{
		{Module: "o365", Username: "alice", Password: "x", Result: "Fail"},
		{Module: "o365", Username: "bob", Password: "y", Result: "Success"},
	}

	result := Analyze(records)

	if result.HitCount != 1 {
		t.Fatalf("expected hit_count=1, got %d", result.HitCount)
	}
	if _, ok := result.Users["bob"]; !ok {
		t.Error("expected bob flagged as the Success record")
	}
	if _, ok := result.Users["alice"]; ok {
		t.Error("did not expect alice flagged")
	}
}

func TestSMBHitCodes(t *testing.T) {
	records := []attemptlog.Record{
		{Module: "smb", Username: "alice", Password: "x", SMBLogin: "STATUS_LOGON_FAILURE"},
		{Module: "smb", Username: "bob", Password: "y", SMBLogin: "STATUS_SUCCESS"},
		{Module: "smb", Username: "carol", Password: "z", SMBLogin: "STATUS_PASSWORD_EXPIRED"},
	}

	result := Analyze(records)

	if result.HitCount != 2 {
		t.Fatalf("expected hit_count=2, got %d", result.HitCount)
	}
	for _, want := range []string{"bob", "carol"} {
		if _, ok := result.Users[want]; !ok {
			t.Errorf("expected %s flagged", want)
		}
	}
}

func TestHTTPCodeOutlierSuppressedBelowMinSample(t *testing.T) {
	records := []attemptlog.Record{
		httpRecord("a", 1000, 200),
		httpRecord("b", 1000, 200),
		httpRecord("c", 1000, 403),
	}

	result := Analyze(records)

	if result.HitCount != 0 {
		t.Fatalf("expected code-outlier rule suppressed below minCodeSampleSize, got hit_count=%d", result.HitCount)
	}
}

func TestHTTPCodeOutlierDetectedAboveMinSample(t *testing.T) {
	var records []attemptlog.Record
	for i := 0; i < 10; i++ {
		records = append(records, httpRecord("user"+string(rune('a'+i)), 1000, 200))
	}
	records = append(records, httpRecord("hit", 1000, 403))

	result := Analyze(records)

	if _, ok := result.Users["hit"]; !ok {
		t.Errorf("expected the rare status code to be flagged as an outlier, got users=%v", result.Users)
	}
}

func TestHTTPTimeoutsExcludedFromStatistics(t *testing.T) {
	records := []attemptlog.Record{
		httpRecord("a", 1000, 200),
		httpRecord("b", 1000, 200),
		httpRecord("c", 1000, 200),
		{Module: "http", Username: "d", Password: "x", ResponseCode: attemptlog.TimeoutMarker, ResponseLength: attemptlog.TimeoutMarker},
	}

	result := Analyze(records)

	if _, ok := result.Users["d"]; ok {
		t.Error("a timed-out record must never be flagged as a hit")
	}
}

func TestEmptyLogYieldsNoHits(t *testing.T) {
	result := Analyze(nil)
	if result.HitCount != 0 {
		t.Errorf("expected no hits for an empty log, got %d", result.HitCount)
	}
}
