package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status tags the variant of an Outcome.
type Status string

// Outcome status values.
const (
	StatusSuccess   Status = "success"
	StatusNoData    Status = "no_data"
	StatusException Status = "exception"
)

// ErrNoTable is returned by fetchers when the data table never materialised
// within the table wait deadline. Workers classify it as no data.
var ErrNoTable = errors.New("data table not found")

// Record is one row of the signature table at one capture time. Numeric
// fields are kept as normalised text; use the accessor methods to parse them.
type Record struct {
	CaptureDate string `json:"capture_date"`
	CaptureTime string `json:"gmt_capture_time"`
	Entity      string `json:"entity"`
	Support     string `json:"support"`
	Threshold   string `json:"threshold"`
	Percentage  string `json:"percentage"`
	// Source is the snapshot URL the row came from. It is not part of the
	// CSV dataset.
	Source string `json:"snapshot_url,omitempty"`
}

// SupportCount parses the statements-of-support column.
func (r Record) SupportCount() (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.Support), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse support %q: %w", r.Support, err)
	}
	return n, nil
}

// ThresholdCount parses the threshold column.
func (r Record) ThresholdCount() (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(r.Threshold), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse threshold %q: %w", r.Threshold, err)
	}
	return n, nil
}

// PercentValue parses the percentage column.
func (r Record) PercentValue() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(r.Percentage), 64)
	if err != nil {
		return 0, fmt.Errorf("parse percentage %q: %w", r.Percentage, err)
	}
	return f, nil
}

// Outcome is the result of processing one snapshot URL.
type Outcome struct {
	URL      string
	Status   Status
	Records  []Record
	Err      error
	Attempts int
}

// Success builds a success outcome.
func Success(url string, records []Record) Outcome {
	return Outcome{URL: url, Status: StatusSuccess, Records: records}
}

// NoData builds a no-data outcome.
func NoData(url string) Outcome {
	return Outcome{URL: url, Status: StatusNoData}
}

// Exception builds an exception outcome carrying its cause.
func Exception(url string, cause error) Outcome {
	return Outcome{URL: url, Status: StatusException, Err: cause}
}

// Result aggregates one harvest run. Records are in completion order.
type Result struct {
	Records    []Record
	Succeeded  []string
	NoData     []string
	Exceptions []string
}

// Total returns the number of URLs accounted for across all buckets.
func (r Result) Total() int {
	return len(r.Succeeded) + len(r.NoData) + len(r.Exceptions)
}

// RunSummary describes a finished run for notifications and reporting.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	URLs        int       `json:"urls"`
	Succeeded   int       `json:"succeeded"`
	NoData      int       `json:"no_data"`
	Exceptions  int       `json:"exceptions"`
	Records     int       `json:"records"`
	DatasetPath string    `json:"dataset_path"`
	DatasetURI  string    `json:"dataset_uri,omitempty"`
}

// Summarize builds a RunSummary from a Result.
func Summarize(runID string, started, finished time.Time, result Result, datasetPath string) RunSummary {
	return RunSummary{
		RunID:       runID,
		StartedAt:   started,
		FinishedAt:  finished,
		URLs:        result.Total(),
		Succeeded:   len(result.Succeeded),
		NoData:      len(result.NoData),
		Exceptions:  len(result.Exceptions),
		Records:     len(result.Records),
		DatasetPath: datasetPath,
	}
}
