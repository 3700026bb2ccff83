package history

import "github.com/banshee-data/locationhistory/internal/monitoring"

// EventKind names a diagnostics event emitted during a run.
type EventKind string

const (
	EventFormatDetected  EventKind = "format-detected"
	EventProgress        EventKind = "progress"
	EventRecordSkipped   EventKind = "record-skipped"
	EventStructuralFault EventKind = "structural-fault"
	EventFatal           EventKind = "fatal"
	EventUnrecognized    EventKind = "unrecognized"
	EventNotFound        EventKind = "not-found"
	EventCompleted       EventKind = "completed"
	EventNoData          EventKind = "no-data"
)

// Event is a single diagnostics notification. Index is the zero-based element
// position for per-record events; Count is the running element or point total
// depending on the kind.
type Event struct {
	Kind    EventKind
	Format  string
	Index   int
	Count   int
	Err     error
	Message string
}

// Observer receives diagnostics events. Implementations are called
// synchronously from the extracting goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f(e).
func (f ObserverFunc) Observe(e Event) { f(e) }

// Discard drops every event.
var Discard Observer = ObserverFunc(func(Event) {})

// LogObserver writes events through the monitoring logger.
type LogObserver struct{}

// Observe renders e as one log line.
func (LogObserver) Observe(e Event) {
	switch e.Kind {
	case EventFormatDetected:
		monitoring.Infof("'%s' format detected. Processing...", e.Format)
	case EventProgress:
		monitoring.Infof("%d %s elements processed...", e.Count, e.Format)
	case EventRecordSkipped:
		monitoring.Warnf("error processing %s element #%d, skipping: %v", e.Format, e.Index+1, e.Err)
	case EventStructuralFault:
		monitoring.Warnf("structural parse error: %v; proceeding with %d points read so far", e.Err, e.Count)
	case EventFatal:
		monitoring.Errorf("unexpected error: %v", e.Err)
	case EventUnrecognized:
		monitoring.Errorf("could not determine JSON format, no known structure was identified")
	case EventNotFound:
		monitoring.Errorf("%v", e.Err)
	case EventCompleted:
		monitoring.Infof("file analysis complete, %d coordinate points found", e.Count)
	case EventNoData:
		monitoring.Warnf("no location points were extracted")
	default:
		monitoring.Logf("%s: %s", e.Kind, e.Message)
	}
}

// Counter tallies events by kind. It is handy in tests and for run summaries.
type Counter struct {
	Next   Observer
	Counts map[EventKind]int
	Last   map[EventKind]Event
}

// NewCounter returns a Counter forwarding to next (which may be nil).
func NewCounter(next Observer) *Counter {
	return &Counter{
		Next:   next,
		Counts: make(map[EventKind]int),
		Last:   make(map[EventKind]Event),
	}
}

// Observe records e and forwards it.
func (c *Counter) Observe(e Event) {
	c.Counts[e.Kind]++
	c.Last[e.Kind] = e
	if c.Next != nil {
		c.Next.Observe(e)
	}
}

// Skipped reports how many record-skipped events have been seen.
func (c *Counter) Skipped() int {
	return c.Counts[EventRecordSkipped]
}
