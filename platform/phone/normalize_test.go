package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"national number gets country code", "09000000001", "+919000000001"},
		{"already E164", "+919000000001", "+919000000001"},
		{"spaces and dashes stripped", "+91 90000-00001", "+919000000001"},
		{"whitespace trimmed", "  +919000000001  ", "+919000000001"},
		{"empty stays empty", "", ""},
		{"garbage returned trimmed", "not-a-number", "not-a-number"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeE164(tc.input); got != tc.want {
				t.Errorf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
