package dataset

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// DefaultTotalLabel is the entity name of the aggregate row.
const DefaultTotalLabel = "Total number of signatories"

// DailyTotal is the last reported value of one entity on one day.
type DailyTotal struct {
	Date  time.Time
	Total int64
	// Delta is the change since the previous reported day; zero for the
	// first day.
	Delta int64
}

// DailySignatures returns the last reported total per day for totalLabel
// together with day-over-day deltas, oldest first.
func DailySignatures(records []snapshot.Record, totalLabel string) []DailyTotal {
	if totalLabel == "" {
		totalLabel = DefaultTotalLabel
	}
	return dailySeries(records, totalLabel)
}

// EntitySeries is DailySignatures for any entity.
func EntitySeries(records []snapshot.Record, entity string) []DailyTotal {
	return dailySeries(records, entity)
}

type point struct {
	date      time.Time
	clock     string
	support   int64
	threshold int64
}

func dailySeries(records []snapshot.Record, entity string) []DailyTotal {
	points := entityPoints(records, entity)
	var out []DailyTotal
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.date) {
			out[n-1].Total = p.support
			continue
		}
		out = append(out, DailyTotal{Date: p.date, Total: p.support})
	}
	for i := 1; i < len(out); i++ {
		out[i].Delta = out[i].Total - out[i-1].Total
	}
	return out
}

// entityPoints returns the parseable rows of entity ordered by capture date
// and time.
func entityPoints(records []snapshot.Record, entity string) []point {
	var points []point
	for _, rec := range records {
		if strings.TrimSpace(rec.Entity) != entity {
			continue
		}
		date, ok := ParseDate(strings.TrimSpace(rec.CaptureDate))
		if !ok {
			continue
		}
		support, err := rec.SupportCount()
		if err != nil {
			continue
		}
		threshold, err := rec.ThresholdCount()
		if err != nil {
			threshold = -1
		}
		points = append(points, point{
			date:      date,
			clock:     normalizeTime(rec.CaptureTime),
			support:   support,
			threshold: threshold,
		})
	}
	slices.SortStableFunc(points, func(a, b point) int {
		if c := a.date.Compare(b.date); c != 0 {
			return c
		}
		return cmp.Compare(a.clock, b.clock)
	})
	return points
}

// Crossing is the first day an entity's support exceeded its threshold.
type Crossing struct {
	Entity    string
	Date      time.Time
	Support   int64
	Threshold int64
}

// ThresholdCrossings returns, for every entity other than totalLabel, the
// first capture where support was strictly greater than threshold, ordered
// by date then entity name.
func ThresholdCrossings(records []snapshot.Record, totalLabel string) []Crossing {
	if totalLabel == "" {
		totalLabel = DefaultTotalLabel
	}
	type candidate struct {
		Crossing
		clock string
	}
	first := map[string]candidate{}
	for _, rec := range records {
		entity := strings.TrimSpace(rec.Entity)
		if entity == totalLabel {
			continue
		}
		date, ok := ParseDate(strings.TrimSpace(rec.CaptureDate))
		if !ok {
			continue
		}
		support, err := rec.SupportCount()
		if err != nil {
			continue
		}
		threshold, err := rec.ThresholdCount()
		if err != nil || support <= threshold {
			continue
		}
		c := candidate{
			Crossing: Crossing{Entity: entity, Date: date, Support: support, Threshold: threshold},
			clock:    normalizeTime(rec.CaptureTime),
		}
		prev, seen := first[entity]
		if !seen || date.Before(prev.Date) || (date.Equal(prev.Date) && c.clock < prev.clock) {
			first[entity] = c
		}
	}
	out := make([]Crossing, 0, len(first))
	for _, c := range first {
		out = append(out, c.Crossing)
	}
	slices.SortFunc(out, func(a, b Crossing) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity, b.Entity)
	})
	return out
}

// Projection is the linear pace an entity needs to reach its threshold by a
// deadline.
type Projection struct {
	Entity        string
	AsOf          time.Time
	Support       int64
	Threshold     int64
	Remaining     int64
	DaysRemaining int
	// DailyNeeded is zero once the deadline has passed.
	DailyNeeded float64
}

// Project computes the pace entity needs from its latest capture to reach
// its latest reported threshold by deadline.
func Project(records []snapshot.Record, entity string, deadline time.Time) (Projection, error) {
	points := entityPoints(records, entity)
	if len(points) == 0 {
		return Projection{}, fmt.Errorf("no parseable rows for entity %q", entity)
	}
	last := points[len(points)-1]
	if last.threshold < 0 {
		return Projection{}, fmt.Errorf("entity %q has no parseable threshold", entity)
	}
	deadline = time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(deadline.Sub(last.date).Hours() / 24))
	p := Projection{
		Entity:        entity,
		AsOf:          last.date,
		Support:       last.support,
		Threshold:     last.threshold,
		Remaining:     last.threshold - last.support,
		DaysRemaining: days,
	}
	if days > 0 {
		p.DailyNeeded = float64(p.Remaining) / float64(days)
	}
	return p, nil
}
