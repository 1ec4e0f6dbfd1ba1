package dataset

import (
	"strings"
	"time"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// dateLayouts are the capture_date spellings found in hand-edited copies of
// the dataset.
var dateLayouts = []string{
	snapshot.DateLayout,
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"January 2, 2006",
	"2 January 2006",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Normalize rewrites capture_date to YYYY-MM-DD and capture times from
// HH-MM-SS to HH:MM:SS. It returns the repaired copy and the number of
// records changed. Unparseable dates and the sentinels are left untouched.
func Normalize(records []snapshot.Record) ([]snapshot.Record, int) {
	out := make([]snapshot.Record, len(records))
	changed := 0
	for i, rec := range records {
		fixed := rec
		fixed.CaptureDate = normalizeDate(rec.CaptureDate)
		fixed.CaptureTime = normalizeTime(rec.CaptureTime)
		if fixed != rec {
			changed++
		}
		out[i] = fixed
	}
	return out, changed
}

func normalizeDate(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == snapshot.UnknownDate {
		return s
	}
	if d, ok := ParseDate(trimmed); ok {
		return d.Format(snapshot.DateLayout)
	}
	return s
}

func normalizeTime(s string) string {
	if s == snapshot.UnknownTime {
		return s
	}
	return strings.ReplaceAll(strings.TrimSpace(s), "-", ":")
}

// ParseDate parses a capture date in any of the accepted layouts.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
