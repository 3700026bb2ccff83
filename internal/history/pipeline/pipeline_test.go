package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/locationhistory/internal/fsutil"
	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
	"github.com/banshee-data/locationhistory/internal/timeutil"
)

var epoch = time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

type fixture struct {
	fsys    *fsutil.MemoryFileSystem
	counter *history.Counter
	events  []history.Event
	p       *Pipeline
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{fsys: fsutil.NewMemoryFileSystem()}
	f.counter = history.NewCounter(history.ObserverFunc(func(e history.Event) {
		f.events = append(f.events, e)
	}))
	opts = append([]Option{
		WithObserver(f.counter),
		WithClock(timeutil.NewSteppingClock(epoch, time.Second)),
	}, opts...)
	f.p = New(f.fsys, opts...)
	return f
}

func (f *fixture) run(t *testing.T, doc string, opts history.Options) ([]history.Point, *Report) {
	t.Helper()
	f.fsys.WriteFile("/in/export.json", []byte(doc))
	return f.p.Extract(context.Background(), opts.WithInput("/in/export.json"))
}

func (f *fixture) kinds() []history.EventKind {
	kinds := make([]history.EventKind, len(f.events))
	for i, e := range f.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestLocationsScenario(t *testing.T) {
	f := newFixture(t)
	points, report := f.run(t,
		`{"locations": [{"latitudeE7": 351000000, "longitudeE7": -472000000, "timestampMs": "1700000000000"}]}`,
		history.DefaultOptions())

	require.Len(t, points, 1)
	p := points[0]
	assert.InDelta(t, 35.1, p.Lat, 1e-9)
	assert.InDelta(t, -47.2, p.Lon, 1e-9)
	require.NotNil(t, p.Timestamp)
	assert.EqualValues(t, 1700000000000, *p.Timestamp)
	assert.Equal(t, history.SourcePath, p.Source)

	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, sniff.LocationsWrapped, report.Format)
	assert.Equal(t, 1, report.Elements)
	assert.Equal(t, 1, report.Points)
	assert.NoError(t, report.Err)
	assert.Equal(t, epoch, report.StartedAt)
	assert.Equal(t, time.Second, report.Duration())

	assert.Equal(t, []history.EventKind{history.EventFormatDetected, history.EventCompleted}, f.kinds())
	assert.Equal(t, "locations", f.events[0].Format)
}

func TestRootArrayScenarioSkipsMalformed(t *testing.T) {
	f := newFixture(t)
	points, report := f.run(t, `[
		{"startTime": "2023-11-14T22:13:20Z"},
		{"startTime": "2023-11-14T22:13:20Z",
		 "visit": {"topCandidate": {"placeID": "p1", "semanticType": "Home",
		           "probability": "0.9", "placeLocation": "geo:35.1,-47.2"}}}
	]`, history.DefaultOptions())

	require.Len(t, points, 1)
	assert.Equal(t, history.SourceVisit, points[0].Source)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, 2, report.Elements)
	assert.Equal(t, 1, report.Skipped)

	require.Equal(t, 1, f.counter.Skipped())
	skip := f.counter.Last[history.EventRecordSkipped]
	assert.Equal(t, 0, skip.Index)
	assert.ErrorIs(t, skip.Err, history.ErrRecordExtraction)
}

func TestSegmentsScenarioRawPathSuppressed(t *testing.T) {
	opts := history.DefaultOptions()
	opts.IncludeRawPath = false

	f := newFixture(t)
	points, report := f.run(t, `{"semanticSegments": [
		{"startTime": "2023-11-14T22:00:00Z", "endTime": "2023-11-14T22:10:00Z",
		 "timelinePath": [{"point": "35.1°, -47.2°", "time": "2023-11-14T22:00:00Z"}]},
		{"startTime": "2023-11-14T22:13:20Z",
		 "visit": {"topCandidate": {"placeLocation": {"latLng": "35.2°, -47.3°"}}}}
	]}`, opts)

	require.Len(t, points, 1)
	assert.Equal(t, history.SourceVisit, points[0].Source)
	assert.InDelta(t, 35.2, points[0].Lat, 1e-9)
	assert.Equal(t, 2, report.Elements)
	assert.Zero(t, report.Skipped)
}

func TestTimelineObjects(t *testing.T) {
	f := newFixture(t)
	points, report := f.run(t, `{"timelineObjects": [
		{"placeVisit": {"location": {"latitudeE7": 10, "longitudeE7": 20, "semanticType": "TYPE_WORK"},
		                "duration": {"startTimestamp": "2023-11-14T22:13:20Z"}}},
		{"activitySegment": {"startLocation": {"latitudeE7": 30, "longitudeE7": 40},
		                     "endLocation": {"latitudeE7": 50, "longitudeE7": 60},
		                     "activityType": "WALKING"}}
	]}`, history.DefaultOptions())

	require.Len(t, points, 3)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, sniff.TimelineObjects, report.Format)
	want := []history.Source{history.SourceVisit, history.SourceActivity, history.SourceActivity}
	for i, p := range points {
		assert.Equal(t, want[i], p.Source, "point %d", i)
	}
}

func TestIdempotent(t *testing.T) {
	doc := `[
		{"startTime": "2023-11-14T22:00:00Z", "endTime": "2023-11-14T22:10:00Z",
		 "timelinePath": [{"point": "geo:1.0,2.0"}, {"point": "geo:1.5,2.5"}, {"point": "geo:2.0,3.0"}]},
		{"activity": {"start": "geo:1.0,2.0", "end": "geo:3.0,4.0", "topCandidate": {"type": "cycling"}}},
		{"visit": {"topCandidate": {"placeLocation": "geo:5.0,6.0", "probability": 0.25}}}
	]`
	f := newFixture(t)
	first, _ := f.run(t, doc, history.DefaultOptions())
	second, _ := f.run(t, doc, history.DefaultOptions())

	require.Len(t, first, 6)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Points mismatch (-first +second):\n%s", diff)
	}

	var a, b strings.Builder
	require.NoError(t, history.WriteJSON(&a, first))
	require.NoError(t, history.WriteJSON(&b, second))
	assert.Equal(t, a.String(), b.String())
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	points, report := f.p.Extract(context.Background(), history.DefaultOptions().WithInput("/nope.json"))

	assert.Nil(t, points)
	assert.Equal(t, StateNotFound, report.State)
	assert.ErrorIs(t, report.Err, history.ErrInputNotFound)
	assert.Equal(t, []history.EventKind{history.EventNotFound}, f.kinds())
}

func TestUnrecognized(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty object", `{}`},
		{"string", `"not json"`},
		{"empty file", ``},
		{"whitespace", "  \n\t "},
		{"unknown wrapper", `{"somethingElse": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			points, report := f.run(t, tt.doc, history.DefaultOptions())
			assert.Nil(t, points)
			assert.Equal(t, StateUnrecognized, report.State)
			assert.ErrorIs(t, report.Err, history.ErrUnrecognizedFormat)
			assert.Equal(t, 1, f.counter.Counts[history.EventUnrecognized])
		})
	}
}

func TestTruncatedKeepsPartialPoints(t *testing.T) {
	f := newFixture(t)
	points, report := f.run(t, `{"locations": [
		{"latitudeE7": 10, "longitudeE7": 20},
		{"latitudeE7": 30, "longitudeE7": 40},
		{"latitudeE7": 50, "longitu`, history.DefaultOptions())

	require.Len(t, points, 2)
	assert.Equal(t, StateTruncated, report.State)
	assert.True(t, report.Partial())
	assert.ErrorIs(t, report.Err, history.ErrStructuralParse)

	fault := f.counter.Last[history.EventStructuralFault]
	assert.Equal(t, 2, fault.Count)
	assert.Equal(t, 1, f.counter.Counts[history.EventCompleted])
}

func TestTruncatedWithoutPointsIsNoData(t *testing.T) {
	f := newFixture(t)
	points, report := f.run(t, `[{"visit": `, history.DefaultOptions())

	assert.Nil(t, points)
	assert.Equal(t, StateTruncated, report.State)
	assert.False(t, report.Partial())
	assert.Equal(t, 1, f.counter.Counts[history.EventNoData])
}

func TestZeroPointsIsNoData(t *testing.T) {
	opts := history.DefaultOptions()
	opts.IncludeVisits = false

	f := newFixture(t)
	points, report := f.run(t, `[{"visit": {"topCandidate": {"placeLocation": "geo:1.0,2.0"}}}]`, opts)
	assert.Nil(t, points)
	assert.Equal(t, StateCompleted, report.State)
	assert.Equal(t, []history.EventKind{history.EventFormatDetected, history.EventNoData}, f.kinds())
}

func TestByteOrderMark(t *testing.T) {
	const doc = `{"locations": [{"latitudeE7": 1, "longitudeE7": 2}]}`
	tests := []struct {
		name   string
		prefix string
	}{
		{"leading", "\ufeff"},
		{"after whitespace", " \r\n\t\ufeff"},
		{"after newline with trailing space", "\n\ufeff  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			points, report := f.run(t, tt.prefix+doc, history.DefaultOptions())
			require.Len(t, points, 1)
			assert.Equal(t, StateCompleted, report.State)
			assert.NoError(t, report.Err)
		})
	}
}

func TestLargeDocumentBeyondPrefix(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"header": "`)
	b.WriteString(strings.Repeat("x", sniff.PrefixSize))
	b.WriteString(`", "locations": [`)
	for i := range 1000 {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"latitudeE7": 1, "longitudeE7": 2}`)
	}
	b.WriteString(`]}`)

	// The wrapper key sits past the sniffed prefix, so detection fails.
	f := newFixture(t)
	_, report := f.run(t, b.String(), history.DefaultOptions())
	assert.Equal(t, StateUnrecognized, report.State)

	doc := strings.Replace(b.String(), `{"header"`, `{"locations": [], "header"`, 1)
	points, report := f.run(t, doc, history.DefaultOptions())
	assert.Equal(t, StateCompleted, report.State)
	assert.Len(t, points, 1000)
}

func TestProgressEvents(t *testing.T) {
	f := newFixture(t, WithProgressInterval(2))
	_, report := f.run(t, `[
		{"timelineMemory": {}}, {"timelineMemory": {}}, {"timelineMemory": {}},
		{"timelineMemory": {}}, {"timelineMemory": {}}
	]`, history.DefaultOptions())

	assert.Equal(t, 5, report.Elements)
	assert.Equal(t, 2, f.counter.Counts[history.EventProgress])
	assert.Equal(t, 4, f.counter.Last[history.EventProgress].Count)
}

func TestProgressDefaults(t *testing.T) {
	p := New(nil)
	assert.Equal(t, DefaultLocationsProgress, p.progressInterval(sniff.LocationsWrapped))
	assert.Equal(t, DefaultProgress, p.progressInterval(sniff.SemanticSegments))
	assert.Equal(t, 7, New(nil, WithProgressInterval(7)).progressInterval(sniff.RootArray))
}

func TestExtractReaderReadError(t *testing.T) {
	f := newFixture(t)
	r := io.MultiReader(strings.NewReader(`[{"visit": {"topCandidate": {"placeLocation": "geo:1.0,2.0"}}}, `),
		iotest.ErrReader(errors.New("device unplugged")))

	points, report := f.p.ExtractReader(context.Background(), r, history.DefaultOptions())
	assert.Nil(t, points)
	assert.Equal(t, StateFatal, report.State)
	assert.ErrorIs(t, report.Err, history.ErrUnexpectedFatal)
	assert.Zero(t, report.Points)
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t)
	points, report := f.p.ExtractReader(ctx,
		strings.NewReader(`[{"visit": {"topCandidate": {"placeLocation": "geo:1.0,2.0"}}}]`),
		history.DefaultOptions())
	assert.Nil(t, points)
	assert.Equal(t, StateFatal, report.State)
	assert.ErrorIs(t, report.Err, context.Canceled)
}

func TestCancelledMidRunKeepsPoints(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	cancelAfterFirst := history.ObserverFunc(func(e history.Event) {
		if e.Kind == history.EventProgress {
			cancel()
		}
	})
	p := New(f.fsys, WithObserver(history.NewCounter(cancelAfterFirst)), WithProgressInterval(1))
	points, report := p.ExtractReader(ctx, strings.NewReader(`[
		{"visit": {"topCandidate": {"placeLocation": "geo:1.0,2.0"}}},
		{"visit": {"topCandidate": {"placeLocation": "geo:3.0,4.0"}}}
	]`), history.DefaultOptions())

	require.Len(t, points, 1)
	assert.Equal(t, StateTruncated, report.State)
	assert.ErrorIs(t, report.Err, context.Canceled)
}

func TestObserverPanicIsFatal(t *testing.T) {
	calls := 0
	p := New(nil, WithObserver(history.ObserverFunc(func(e history.Event) {
		calls++
		if e.Kind == history.EventFormatDetected {
			panic("observer bug")
		}
	})))
	points, report := p.ExtractReader(context.Background(), strings.NewReader(`[]`), history.DefaultOptions())

	assert.Nil(t, points)
	require.NotNil(t, report)
	assert.Equal(t, StateFatal, report.State)
	assert.ErrorIs(t, report.Err, history.ErrUnexpectedFatal)
	assert.Equal(t, 2, calls)
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "truncated", StateTruncated.String())
	assert.Equal(t, "not_found", StateNotFound.String())
	assert.False(t, StateExtracting.Terminal())
	assert.True(t, StateFatal.Terminal())
}
