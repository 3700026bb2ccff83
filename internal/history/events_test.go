package history

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/locationhistory/internal/monitoring"
)

func captureLogs(t *testing.T) *[]string {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })

	var lines []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	return &lines
}

func TestLogObserver(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Kind: EventFormatDetected, Format: "locations"}, "[INFO] 'locations' format detected. Processing..."},
		{Event{Kind: EventProgress, Format: "semanticSegments", Count: 20000}, "[INFO] 20000 semanticSegments elements processed..."},
		{Event{Kind: EventRecordSkipped, Format: "root_array", Index: 4, Err: errors.New("bad")}, "[WARNING] error processing root_array element #5, skipping: bad"},
		{Event{Kind: EventStructuralFault, Count: 12, Err: errors.New("eof")}, "[WARNING] structural parse error: eof; proceeding with 12 points read so far"},
		{Event{Kind: EventFatal, Err: errors.New("boom")}, "[ERROR] unexpected error: boom"},
		{Event{Kind: EventUnrecognized}, "[ERROR] could not determine JSON format"},
		{Event{Kind: EventNotFound, Err: ErrInputNotFound}, "[ERROR] input not found"},
		{Event{Kind: EventCompleted, Count: 3}, "[INFO] file analysis complete, 3 coordinate points found"},
		{Event{Kind: EventNoData}, "[WARNING] no location points were extracted"},
		{Event{Kind: "custom", Message: "hello"}, "custom: hello"},
	}
	for _, tt := range tests {
		t.Run(string(tt.event.Kind), func(t *testing.T) {
			lines := captureLogs(t)
			LogObserver{}.Observe(tt.event)
			if assert.Len(t, *lines, 1) {
				assert.True(t, strings.HasPrefix((*lines)[0], tt.want), "got %q", (*lines)[0])
			}
		})
	}
}

func TestCounter(t *testing.T) {
	var forwarded []EventKind
	c := NewCounter(ObserverFunc(func(e Event) { forwarded = append(forwarded, e.Kind) }))

	c.Observe(Event{Kind: EventRecordSkipped, Index: 1})
	c.Observe(Event{Kind: EventRecordSkipped, Index: 7})
	c.Observe(Event{Kind: EventCompleted, Count: 9})

	assert.Equal(t, 2, c.Skipped())
	assert.Equal(t, 7, c.Last[EventRecordSkipped].Index)
	assert.Equal(t, []EventKind{EventRecordSkipped, EventRecordSkipped, EventCompleted}, forwarded)

	// nil next is allowed
	NewCounter(nil).Observe(Event{Kind: EventProgress})
	Discard.Observe(Event{Kind: EventFatal})
}
