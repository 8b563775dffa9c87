package numparse_test

import (
	"testing"

	"stockledger/internal/numparse"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		allow bool
	}{
		{"plain integer", "1250", "1250", false},
		{"plain decimal", "12.5", "12.5", false},
		{"persian digits", "۱۲۳۴", "1234", false},
		{"arabic digits", "٣٤٥", "345", false},
		{"comma thousands", "1,250,000", "1250000", false},
		{"arabic thousands separator", "1،250", "1250", false},
		{"slash decimal point", "12/5", "12.5", false},
		{"arabic decimal point", "12٫5", "12.5", false},
		{"persian digits with separator", "۱،۲۵۰", "1250", false},
		{"leading plus", "+42", "42", false},
		{"parenthesized negative", "(500)", "-500", true},
		{"explicit negative", "-3.25", "-3.25", true},
		{"surrounding whitespace", "  77  ", "77", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := numparse.Parse(tt.in, tt.allow)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		allow bool
	}{
		{"empty", "", false},
		{"dash placeholder", "-----", false},
		{"text", "purchased by the company", false},
		{"double decimal point", "1.2.3", false},
		{"negative when not allowed", "-5", false},
		{"parenthesized negative when not allowed", "(5)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := numparse.Parse(tt.in, tt.allow); err == nil {
				t.Errorf("Parse(%q) should fail", tt.in)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	for _, v := range []string{"", "  ", "-", "-----", "-    "} {
		if !numparse.IsBlank(v) {
			t.Errorf("IsBlank(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"0", "abc", "۱"} {
		if numparse.IsBlank(v) {
			t.Errorf("IsBlank(%q) = true, want false", v)
		}
	}
}

func TestParseFloat(t *testing.T) {
	got, err := numparse.ParseFloat("۲۵/۵", false)
	if err != nil {
		t.Fatalf("ParseFloat failed: %v", err)
	}
	if got != 25.5 {
		t.Errorf("ParseFloat = %v, want 25.5", got)
	}
}
