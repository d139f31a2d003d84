package gallery

import "testing"

func TestRemoveDiacritics(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "Jiri"},
		{"Novák", "Novak"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RemoveDiacritics(tt.input); got != tt.expected {
			t.Errorf("RemoveDiacritics(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jan-Novák", "jan novak"},
		{"jan novak", "jan novak"},
		{"JAN_NOVAK", "jan novak"},
		{"  Alice  ", "alice"},
		{"Jiří", "jiri"},
	}

	for _, tt := range tests {
		if got := NormalizeLabel(tt.input); got != tt.expected {
			t.Errorf("NormalizeLabel(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
