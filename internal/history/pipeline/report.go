package pipeline

import (
	"time"

	"github.com/banshee-data/locationhistory/internal/history/sniff"
)

// State is a position in the run state machine:
//
//	Start → Sniffing → Extracting → {Completed, Truncated, Unrecognized, NotFound, Fatal}
type State int

const (
	StateStart State = iota
	StateSniffing
	StateExtracting
	StateCompleted
	StateTruncated
	StateUnrecognized
	StateNotFound
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateSniffing:
		return "sniffing"
	case StateExtracting:
		return "extracting"
	case StateCompleted:
		return "completed"
	case StateTruncated:
		return "truncated"
	case StateUnrecognized:
		return "unrecognized"
	case StateNotFound:
		return "not_found"
	case StateFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Report describes how a run ended. It is returned alongside the points on
// every path, including the ones that produce no data.
type Report struct {
	Input  string
	State  State
	Format sniff.Format

	Elements int // top-level elements visited
	Points   int // points returned
	Skipped  int // elements dropped by record isolation

	// Err is the terminal error for Truncated, Unrecognized, NotFound and
	// Fatal runs. It wraps one of the history sentinels.
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Partial reports whether the returned points are a prefix of the input.
func (r *Report) Partial() bool {
	return r.State == StateTruncated && r.Points > 0
}
