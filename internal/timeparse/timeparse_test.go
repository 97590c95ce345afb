package timeparse

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		defaultUnit string
		wantSeconds float64
		wantErr     bool
	}{
		{name: "seconds suffix", value: "5s", defaultUnit: "s", wantSeconds: 5},
		{name: "fractional minutes", value: "2.5m", defaultUnit: "s", wantSeconds: 150},
		{name: "no suffix uses default", value: "0", defaultUnit: "s", wantSeconds: 0},
		{name: "no suffix uses minute default", value: "1", defaultUnit: "m", wantSeconds: 60},
		{name: "hours", value: "1h", defaultUnit: "s", wantSeconds: 3600},
		{name: "days", value: "0.5d", defaultUnit: "s", wantSeconds: 43200},
		{name: "negative rejected", value: "-5s", wantErr: true},
		{name: "unknown unit rejected", value: "5x", wantErr: true},
		{name: "non-numeric rejected", value: "abc", wantErr: true},
		{name: "whitespace tolerated", value: "  5s  ", defaultUnit: "s", wantSeconds: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Seconds(tt.value, tt.defaultUnit)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Seconds(%q) expected error, got %v", tt.value, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Seconds(%q) unexpected error: %v", tt.value, err)
			}
			if got != tt.wantSeconds {
				t.Errorf("Seconds(%q) = %v, want %v", tt.value, got, tt.wantSeconds)
			}
		})
	}
}
