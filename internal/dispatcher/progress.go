package dispatcher

import (
	"sync/atomic"
	"time"

	"github.com/1-icenine/eci-tracker/internal/metrics"
	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// Progress holds atomic counters readable while a run is in flight.
type Progress struct {
	running    atomic.Bool
	sweeping   atomic.Bool
	startedAt  atomic.Int64
	total      atomic.Int64
	completed  atomic.Int64
	succeeded  atomic.Int64
	noData     atomic.Int64
	exceptions atomic.Int64
	records    atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	Running    bool      `json:"running"`
	Pass       string    `json:"pass"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	Total      int64     `json:"total"`
	Completed  int64     `json:"completed"`
	Succeeded  int64     `json:"succeeded"`
	NoData     int64     `json:"no_data"`
	Exceptions int64     `json:"exceptions"`
	Records    int64     `json:"records"`
}

func (p *Progress) begin(total int) {
	p.sweeping.Store(false)
	p.startedAt.Store(time.Now().UnixNano())
	p.total.Store(int64(total))
	p.completed.Store(0)
	p.succeeded.Store(0)
	p.noData.Store(0)
	p.exceptions.Store(0)
	p.records.Store(0)
	p.running.Store(true)
}

func (p *Progress) beginSweep(total int) {
	p.sweeping.Store(true)
	p.total.Store(int64(total))
	p.completed.Store(0)
}

func (p *Progress) finish() {
	p.running.Store(false)
}

func (p *Progress) record(pass string, out snapshot.Outcome) {
	p.completed.Add(1)
	if pass == metrics.PassSweep {
		if out.Status == snapshot.StatusException {
			return
		}
		p.exceptions.Add(-1)
	}
	switch out.Status {
	case snapshot.StatusSuccess:
		p.succeeded.Add(1)
		p.records.Add(int64(len(out.Records)))
	case snapshot.StatusNoData:
		p.noData.Add(1)
	default:
		p.exceptions.Add(1)
	}
}

// Snapshot returns the current counters.
func (p *Progress) Snapshot() ProgressSnapshot {
	pass := metrics.PassFirst
	if p.sweeping.Load() {
		pass = metrics.PassSweep
	}
	var started time.Time
	if ns := p.startedAt.Load(); ns != 0 {
		started = time.Unix(0, ns).UTC()
	}
	return ProgressSnapshot{
		Running:    p.running.Load(),
		Pass:       pass,
		StartedAt:  started,
		Total:      p.total.Load(),
		Completed:  p.completed.Load(),
		Succeeded:  p.succeeded.Load(),
		NoData:     p.noData.Load(),
		Exceptions: p.exceptions.Load(),
		Records:    p.records.Load(),
	}
}
