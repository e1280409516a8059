package utils

import (
	"fmt"
	"strings"
	"time"
)

// StrOrEmpty dereferences p, returning "" for nil.
func StrOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	// strip time to midnight UTC to match DATE semantics
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// DateWindow parses optional YYYY-MM-DD bounds into a half-open [from, to) window.
// Only from -> from..end of today. Only to -> beginning..end of to. Neither -> nil, nil.
func DateWindow(from, to string, now time.Time) (*time.Time, *time.Time, error) {
	var fromPtr, toPtr *time.Time
	if fd := strings.TrimSpace(from); fd != "" {
		t, err := ParseYMD(fd)
		if err != nil {
			return nil, nil, fmt.Errorf("from_date must be YYYY-MM-DD: %w", err)
		}
		fromPtr = &t
	}
	if td := strings.TrimSpace(to); td != "" {
		t, err := ParseYMD(td)
		if err != nil {
			return nil, nil, fmt.Errorf("to_date must be YYYY-MM-DD: %w", err)
		}
		end := t.AddDate(0, 0, 1)
		toPtr = &end
	}
	if fromPtr != nil && toPtr == nil {
		today := now.UTC()
		end := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
		toPtr = &end
	}
	if fromPtr != nil && toPtr != nil && !fromPtr.Before(*toPtr) {
		return nil, nil, fmt.Errorf("from_date must not be after to_date")
	}
	return fromPtr, toPtr, nil
}

// Truncate shortens s to n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
