package utils

import (
	"strings"
	"time"
)

// DateLayout is the format of due dates in requests
const DateLayout = "2006-01-02"

// ParseDate parses an optional YYYY-MM-DD date. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
