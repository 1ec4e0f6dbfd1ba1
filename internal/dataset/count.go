package dataset

import (
	"slices"
	"time"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// DayLayout renders days the way the snapshot count report prints them.
const DayLayout = "January 2, 2006"

// DayCount is the number of snapshots captured on one UTC day.
type DayCount struct {
	Day   time.Time
	Count int
}

// Label returns the day as "January 2, 2006".
func (d DayCount) Label() string {
	return d.Day.Format(DayLayout)
}

// CountByDay counts snapshot URLs per capture day, oldest first. URLs
// without a valid timestamp are skipped.
func CountByDay(urls []string) []DayCount {
	counts := map[time.Time]int{}
	for _, u := range urls {
		t, ok := snapshot.CaptureTime(u)
		if !ok {
			continue
		}
		counts[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)]++
	}
	out := make([]DayCount, 0, len(counts))
	for day, n := range counts {
		out = append(out, DayCount{Day: day, Count: n})
	}
	slices.SortFunc(out, func(a, b DayCount) int { return a.Day.Compare(b.Day) })
	return out
}

// NewMonth reports whether counts[i] starts a different month than
// counts[i-1].
func NewMonth(counts []DayCount, i int) bool {
	if i <= 0 || i >= len(counts) {
		return false
	}
	prev, cur := counts[i-1].Day, counts[i].Day
	return prev.Year() != cur.Year() || prev.Month() != cur.Month()
}
