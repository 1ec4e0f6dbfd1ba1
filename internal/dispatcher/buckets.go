package dispatcher

import (
	"maps"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// buckets is owned by the coordinating goroutine of Run.
type buckets struct {
	records    []snapshot.Record
	succeeded  []string
	noData     []string
	exceptions []string
	failed     map[string]int
}

func newBuckets() *buckets {
	return &buckets{failed: map[string]int{}}
}

func (b *buckets) add(out snapshot.Outcome) {
	switch out.Status {
	case snapshot.StatusSuccess:
		b.records = append(b.records, out.Records...)
		b.succeeded = append(b.succeeded, out.URL)
	case snapshot.StatusNoData:
		b.noData = append(b.noData, out.URL)
	default:
		b.exceptions = append(b.exceptions, out.URL)
		b.failed[out.URL]++
	}
}

// resolve applies a sweep outcome to a URL that failed the first pass.
func (b *buckets) resolve(out snapshot.Outcome) {
	if out.Status == snapshot.StatusException {
		return
	}
	b.failed[out.URL]--
	b.add(out)
}

func (b *buckets) exceptionURLs() []string {
	return append([]string(nil), b.exceptions...)
}

func (b *buckets) result() snapshot.Result {
	remaining := maps.Clone(b.failed)
	exceptions := make([]string, 0, len(b.exceptions))
	for _, u := range b.exceptions {
		if remaining[u] > 0 {
			exceptions = append(exceptions, u)
			remaining[u]--
		}
	}
	return snapshot.Result{
		Records:    b.records,
		Succeeded:  b.succeeded,
		NoData:     b.noData,
		Exceptions: exceptions,
	}
}
