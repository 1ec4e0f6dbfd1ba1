package snapshot

import (
	"regexp"
	"time"
)

// Sentinel capture values used when a URL carries no usable timestamp.
const (
	UnknownDate = "unknown_date"
	UnknownTime = "unknown_time"
)

// Layouts used for the dataset columns and the archive timestamp.
const (
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04:05"
	TimestampLayout = "20060102150405"
)

var timestampPattern = regexp.MustCompile(`/web/(\d{14})`)

// ExtractTimestamp returns the 14-digit archive timestamp embedded in url.
func ExtractTimestamp(url string) (string, bool) {
	m := timestampPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseTimestamp parses a 14-digit archive timestamp as UTC.
func ParseTimestamp(ts string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, ts, time.UTC)
}

// CaptureTime returns the archive capture instant encoded in url.
func CaptureTime(url string) (time.Time, bool) {
	ts, ok := ExtractTimestamp(url)
	if !ok {
		return time.Time{}, false
	}
	t, err := ParseTimestamp(ts)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseCaptureTime derives the dataset date and GMT time columns from url,
// falling back to UnknownDate and UnknownTime.
func ParseCaptureTime(url string) (date, clock string) {
	t, ok := CaptureTime(url)
	if !ok {
		return UnknownDate, UnknownTime
	}
	return t.Format(DateLayout), t.Format(TimeLayout)
}
