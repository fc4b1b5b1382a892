package domain

import (
	"strings"
	"time"
)

// DateLayout is the day-granularity format used for every stored date.
const DateLayout = "2006-01-02"

// ParseDate validates a YYYY-MM-DD string and returns it normalised.
func ParseDate(field, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	t, err := time.Parse(DateLayout, trimmed)
	if err != nil {
		return "", NewValidationError(field, "must be in YYYY-MM-DD format")
	}
	return t.Format(DateLayout), nil
}

// FormatDate truncates t to its calendar day.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
