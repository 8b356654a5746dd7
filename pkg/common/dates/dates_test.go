package dates

import "testing"

func TestParseAcceptsCommonFormats(t *testing.T) {
	for _, value := range []string{
		"2026-03-01T10:30:00.000",
		"2026-03-01T10:30:00",
		"2026-03-01 10:30:00",
		"2026-03-01",
		"01/03/2026",
		"Mar 1, 2026",
		"  2026-03-01  ",
	} {
		parsed, err := Parse(value)
		if err != nil {
			t.Fatalf("expected %q to parse: %v", value, err)
		}
		if parsed.Year() != 2026 || parsed.Month() != 3 || parsed.Day() != 1 {
			t.Fatalf("expected 2026-03-01 from %q, got %v", value, parsed)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, value := range []string{"", "   ", "sometime last week", "32/13/2026"} {
		if _, err := Parse(value); err == nil {
			t.Fatalf("expected %q to fail", value)
		}
	}
}
