package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layouts accepted from form submissions, most specific first. Tablet uploads
// are not consistent about timestamps so parsing is deliberately lenient.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"Jan 2 2006 15:04:05",
}

// Parse attempts each known layout against the trimmed value.
func Parse(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date value")
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}
