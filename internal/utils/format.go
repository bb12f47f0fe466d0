package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateOnly    = "2006-01-02"
	DateTime    = "2006-01-02 15:04"
	DateTimeSec = "2006-01-02 15:04:05"
	TimeOnly    = "15:04:05"
)

// Count formats n with a noun, pluralized with a trailing "s" when n != 1.
func Count(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// ShortDigest truncates a hex digest for display.
func ShortDigest(d string) string {
	d = strings.TrimSpace(d)
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// TimeOrDash formats a time value using the given layout, or returns "—" if zero.
func TimeOrDash(t time.Time, layout string) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format(layout)
}
