package app

import "sync/atomic"

// Outcome is the terminal state of one queue item.
type Outcome string

const (
	// OutcomeNotStarted: the item stays queued because of a stop request,
	// an active throttle or a failed sibling. Items interrupted mid-extraction
	// are put back.
	OutcomeNotStarted Outcome = "not_started"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeAssigned   Outcome = "assigned"
	OutcomePersisted  Outcome = "persisted"
	OutcomeSentinel   Outcome = "sentinel"
	OutcomeRequeued   Outcome = "requeued"
	// OutcomeFailed: a storage call failed and the batch was aborted.
	OutcomeFailed Outcome = "failed"
)

type stats struct {
	batches    atomic.Int64
	notStarted atomic.Int64
	skipped    atomic.Int64
	assigned   atomic.Int64
	persisted  atomic.Int64
	sentinel   atomic.Int64
	requeued   atomic.Int64
	failed     atomic.Int64
}

func (s *stats) record(o Outcome) {
	switch o {
	case OutcomeNotStarted:
		s.notStarted.Add(1)
	case OutcomeSkipped:
		s.skipped.Add(1)
	case OutcomeAssigned:
		s.assigned.Add(1)
	case OutcomePersisted:
		s.persisted.Add(1)
	case OutcomeSentinel:
		s.sentinel.Add(1)
	case OutcomeRequeued:
		s.requeued.Add(1)
	case OutcomeFailed:
		s.failed.Add(1)
	}
}

// Stats counts processed batches and item outcomes since start.
type Stats struct {
	Batches    int64 `json:"batches"`
	NotStarted int64 `json:"notStarted"`
	Skipped    int64 `json:"skipped"`
	Assigned   int64 `json:"assigned"`
	Persisted  int64 `json:"persisted"`
	Sentinel   int64 `json:"sentinel"`
	Requeued   int64 `json:"requeued"`
	Failed     int64 `json:"failed"`
}

// Stats returns a snapshot of the counters.
func (a *App) Stats() Stats {
	return Stats{
		Batches:    a.stats.batches.Load(),
		NotStarted: a.stats.notStarted.Load(),
		Skipped:    a.stats.skipped.Load(),
		Assigned:   a.stats.assigned.Load(),
		Persisted:  a.stats.persisted.Load(),
		Sentinel:   a.stats.sentinel.Load(),
		Requeued:   a.stats.requeued.Load(),
		Failed:     a.stats.failed.Load(),
	}
}
