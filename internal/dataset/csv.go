package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// Column names of the dataset, in file order.
const (
	ColCaptureDate = "capture_date"
	ColCaptureTime = "GMT_capture_time"
	ColEntity      = "Country"
	ColSupport     = "Statements of Support"
	ColThreshold   = "Threshold"
	ColPercentage  = "Percentage"
)

// Header is the dataset header row.
var Header = []string{ColCaptureDate, ColCaptureTime, ColEntity, ColSupport, ColThreshold, ColPercentage}

// ErrMissingHeader is returned when a dataset lacks one of the Header columns.
var ErrMissingHeader = errors.New("dataset header missing column")

// WriteCSV writes the header followed by one row per record, in order.
func WriteCSV(w io.Writer, records []snapshot.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.CaptureDate, rec.CaptureTime, rec.Entity, rec.Support, rec.Threshold, rec.Percentage}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// ReadCSV reads a dataset. Columns are matched by header name, so extra
// columns and reordering are tolerated.
func ReadCSV(r io.Reader) ([]snapshot.Record, error) {
	cr := csv.NewReader(r)
	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingHeader)
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	idx, err := columnIndex(head)
	if err != nil {
		return nil, err
	}

	var records []snapshot.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		records = append(records, snapshot.Record{
			CaptureDate: row[idx[ColCaptureDate]],
			CaptureTime: row[idx[ColCaptureTime]],
			Entity:      row[idx[ColEntity]],
			Support:     row[idx[ColSupport]],
			Threshold:   row[idx[ColThreshold]],
			Percentage:  row[idx[ColPercentage]],
		})
	}
	return records, nil
}

// ReadFile opens path and reads it with ReadCSV.
func ReadFile(path string) ([]snapshot.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return records, nil
}

func columnIndex(head []string) (map[string]int, error) {
	idx := make(map[string]int, len(head))
	for i, name := range head {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		idx[name] = i
	}
	for _, col := range Header {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingHeader, col)
		}
	}
	return idx, nil
}
