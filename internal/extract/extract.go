// Package extract turns the signature table of a snapshot page into records.
package extract

import (
	"iter"
	"strings"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// ExpectedCells is the number of td cells a data row carries: entity,
// statements of support, threshold and percentage.
const ExpectedCells = 4

// Records lazily yields one record per well-formed row of page. Rows with a
// different cell count, header rows included, are skipped.
func Records(page snapshot.PageHandle, date, clock, source string) iter.Seq[snapshot.Record] {
	return func(yield func(snapshot.Record) bool) {
		for row := range page.FindTableRows() {
			rec, ok := FromCells(row.Cells(), date, clock)
			if !ok {
				continue
			}
			rec.Source = source
			if !yield(rec) {
				return
			}
		}
	}
}

// FromCells builds a record from one row's cells.
func FromCells(cells []string, date, clock string) (snapshot.Record, bool) {
	if len(cells) != ExpectedCells {
		return snapshot.Record{}, false
	}
	return snapshot.Record{
		CaptureDate: date,
		CaptureTime: clock,
		Entity:      strings.TrimSpace(cells[0]),
		Support:     stripCount(cells[1]),
		Threshold:   stripCount(cells[2]),
		Percentage:  strings.TrimSpace(strings.ReplaceAll(cells[3], "%", "")),
	}, true
}

func stripCount(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}
