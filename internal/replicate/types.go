package replicate

import (
	"time"

	"github.com/exponential-tech/unifier-mirror/internal/catalog"
	"github.com/exponential-tech/unifier-mirror/internal/transport"
)

// Request describes one replication run: which dataset, which inclusive
// as-of range, where the mirror lives, and the byte-rate ceiling for the
// whole run. Zero dates mean unbounded; zero limit means unlimited.
type Request struct {
	Dataset        string
	TargetDir      string
	BackTo         catalog.Date
	UpTo           catalog.Date
	BandwidthLimit int64 // bytes/sec
}

// Action is the planned disposition of one partition.
type Action int

const (
	// ActionSkip means the partition is already complete locally.
	ActionSkip Action = iota
	// ActionFetch means the partition is absent or incomplete and must be
	// transferred (overwrite, never append).
	ActionFetch
)

func (a Action) String() string {
	if a == ActionSkip {
		return "skip"
	}
	return "fetch"
}

// PlanEntry is one partition's planned action and resolved local path.
type PlanEntry struct {
	Partition catalog.Partition
	Action    Action
	LocalPath string
}

// Plan is the ordered skip/fetch decision set computed before any transfer
// begins. It is pure data: safe to log, diff, or dry-run.
type Plan struct {
	Dataset string
	Entries []PlanEntry
}

// Fetches counts the entries that need transport work.
func (p Plan) Fetches() int {
	n := 0
	for _, e := range p.Entries {
		if e.Action == ActionFetch {
			n++
		}
	}
	return n
}

// Outcome is the terminal state of one partition in a run.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// PartitionResult is the per-partition outcome reported to the caller.
type PartitionResult struct {
	AsOfDate catalog.Date
	Outcome  Outcome
	Err      error // set only when Outcome is OutcomeFailed
	Bytes    int64
	Attempts int
}

// Result is the aggregate outcome of one Replicate call. Partitions are
// always reported in ascending as-of order, independent of completion
// order under concurrency.
type Result struct {
	RunID      string
	Dataset    string
	Transport  transport.Descriptor
	Partitions []PartitionResult
	Started    time.Time
	Finished   time.Time
}

// Complete reports whether every partition ended succeeded or skipped.
func (r *Result) Complete() bool {
	for _, p := range r.Partitions {
		if p.Outcome == OutcomeFailed {
			return false
		}
	}
	return true
}

// Counts tallies outcomes for summary logging.
func (r *Result) Counts() (succeeded, skipped, failed int) {
	for _, p := range r.Partitions {
		switch p.Outcome {
		case OutcomeSucceeded:
			succeeded++
		case OutcomeSkipped:
			skipped++
		default:
			failed++
		}
	}
	return
}

// BytesFetched is the total payload moved by this run.
func (r *Result) BytesFetched() int64 {
	var total int64
	for _, p := range r.Partitions {
		if p.Outcome == OutcomeSucceeded {
			total += p.Bytes
		}
	}
	return total
}
