package parser

import "testing"

func TestParseDurationMillis(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
	}{
		{"bare milliseconds", "45056", 45056},
		{"zero", "0", 0},
		{"ms only", "203ms", 203},
		{"seconds only", "13s", 13000},
		{"minutes only", "8m", 8 * 60000},
		{"hours only", "2h", 2 * 3600000},
		{"days only", "1d", 86400000},
		{"seconds and ms", "13s772ms", 13772},
		{"minutes seconds ms spaced", "8m 13s 203ms", 8*60000 + 13000 + 203},
		{"hours minutes", "1h 30m", 3600000 + 30*60000},
		{"full combination", "1d 2h 3m 4s 5ms", 86400000 + 2*3600000 + 3*60000 + 4000 + 5},
		{"no spaces", "1h2m3s400ms", 3600000 + 2*60000 + 3000 + 400},
		{"surrounding whitespace", "  5s  ", 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationMillis(tt.input)
			if err != nil {
				t.Fatalf("ParseDurationMillis(%q) failed: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDurationMillis(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDurationMillis_Invalid(t *testing.T) {
	inputs := []string{
		"",
		"??",
		"12x",
		"ms",
		"1h 2q",
		"4.5s",
		"-5s",
		"12 34ms",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			if got, err := ParseDurationMillis(input); err == nil {
				t.Errorf("ParseDurationMillis(%q) = %d, want error", input, got)
			}
		})
	}
}
