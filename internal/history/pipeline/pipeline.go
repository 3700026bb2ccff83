// Package pipeline is the entry point for ingesting a location-history
// export: it sniffs the schema from a buffered prefix, streams the document
// through the matching extractor, and folds per-element outcomes into one
// ordered point sequence plus a Report.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/banshee-data/locationhistory/internal/fsutil"
	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/extract"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
	"github.com/banshee-data/locationhistory/internal/timeutil"
)

// Default progress cadence, in top-level elements.
const (
	DefaultLocationsProgress = 50000
	DefaultProgress          = 20000
)

// Pipeline runs extractions. A Pipeline holds no per-run state and may be
// reused for any number of sequential runs.
type Pipeline struct {
	fsys     fsutil.FileSystem
	observer history.Observer
	clock    timeutil.Clock
	progress int // 0 selects the per-format default
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver routes diagnostics events to o.
func WithObserver(o history.Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithClock sets the clock used to stamp reports.
func WithClock(c timeutil.Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithProgressInterval emits a progress event every n elements. n <= 0 keeps
// the per-format default.
func WithProgressInterval(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.progress = n
		}
	}
}

// New returns a Pipeline reading through fsys, or the OS filesystem when fsys
// is nil. Events go to history.LogObserver unless WithObserver is given.
func New(fsys fsutil.FileSystem, opts ...Option) *Pipeline {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	p := &Pipeline{
		fsys:     fsys,
		observer: history.LogObserver{},
		clock:    timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract opens opts.InputPath and runs it. The returned slice is either
// non-empty or nil; the Report says which terminal state produced it.
func (p *Pipeline) Extract(ctx context.Context, opts history.Options) ([]history.Point, *Report) {
	report := p.start(opts.InputPath)

	f, err := p.fsys.Open(opts.InputPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, p.fail(report, StateNotFound, history.EventNotFound,
				fmt.Errorf("%w: %s", history.ErrInputNotFound, opts.InputPath))
		}
		return nil, p.fail(report, StateFatal, history.EventFatal,
			fmt.Errorf("%w: open %s: %w", history.ErrUnexpectedFatal, opts.InputPath, err))
	}
	defer f.Close()

	return p.run(ctx, f, opts, report)
}

// ExtractReader runs an already opened document. r is read once from the
// start; the sniffed prefix stays buffered for the extraction pass.
func (p *Pipeline) ExtractReader(ctx context.Context, r io.Reader, opts history.Options) ([]history.Point, *Report) {
	return p.run(ctx, r, opts, p.start(opts.InputPath))
}

func (p *Pipeline) start(input string) *Report {
	return &Report{Input: input, State: StateStart, StartedAt: p.clock.Now()}
}

func (p *Pipeline) run(ctx context.Context, r io.Reader, opts history.Options, report *Report) (points []history.Point, rep *Report) {
	defer func() {
		if v := recover(); v != nil {
			points = nil
			report.Points = 0
			rep = p.fail(report, StateFatal, history.EventFatal,
				fmt.Errorf("%w: panic: %v", history.ErrUnexpectedFatal, v))
		}
	}()

	report.State = StateSniffing
	br := bufio.NewReaderSize(r, sniff.PrefixSize)
	prefix, err := br.Peek(sniff.PrefixSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, p.fail(report, StateFatal, history.EventFatal,
			fmt.Errorf("%w: read prefix: %w", history.ErrUnexpectedFatal, err))
	}

	report.Format = sniff.Detect(prefix)
	if report.Format == sniff.Unrecognized {
		return nil, p.fail(report, StateUnrecognized, history.EventUnrecognized, history.ErrUnrecognizedFormat)
	}
	format := report.Format.String()
	p.observe(history.Event{Kind: history.EventFormatDetected, Format: format})

	if n := sniff.BOMEnd(prefix); n > 0 {
		if _, err := br.Discard(n); err != nil {
			return nil, p.fail(report, StateFatal, history.EventFatal,
				fmt.Errorf("%w: %w", history.ErrUnexpectedFatal, err))
		}
	}

	report.State = StateExtracting
	every := p.progressInterval(report.Format)
	err = extract.Run(br, report.Format, opts, func(res extract.Result) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Elements++
		if res.Skipped() {
			report.Skipped++
			p.observe(history.Event{
				Kind:   history.EventRecordSkipped,
				Format: format,
				Index:  res.Index,
				Count:  report.Elements,
				Err:    res.Err,
			})
		} else {
			points = append(points, res.Points...)
		}
		if report.Elements%every == 0 {
			p.observe(history.Event{Kind: history.EventProgress, Format: format, Count: report.Elements})
		}
		return nil
	})
	report.Points = len(points)

	switch {
	case err == nil:
		report.State = StateCompleted
	case errors.Is(err, history.ErrStructuralParse):
		report.State = StateTruncated
		report.Err = err
		p.observe(history.Event{Kind: history.EventStructuralFault, Format: format, Count: len(points), Err: err})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		if len(points) > 0 {
			report.State = StateTruncated
			report.Err = err
			p.observe(history.Event{Kind: history.EventStructuralFault, Format: format, Count: len(points), Err: err})
			break
		}
		return nil, p.fail(report, StateFatal, history.EventFatal, fmt.Errorf("%w: %w", history.ErrUnexpectedFatal, err))
	default:
		report.Points = 0
		return nil, p.fail(report, StateFatal, history.EventFatal, fmt.Errorf("%w: %w", history.ErrUnexpectedFatal, err))
	}

	report.FinishedAt = p.clock.Now()
	if len(points) == 0 {
		p.observe(history.Event{Kind: history.EventNoData, Format: format})
		return nil, report
	}
	p.observe(history.Event{Kind: history.EventCompleted, Format: format, Count: len(points)})
	return points, report
}

// fail moves report into a terminal no-output state and emits kind.
func (p *Pipeline) fail(report *Report, state State, kind history.EventKind, err error) *Report {
	report.State = state
	report.Err = err
	report.FinishedAt = p.clock.Now()
	e := history.Event{Kind: kind, Err: err}
	if report.Format != sniff.Unrecognized {
		e.Format = report.Format.String()
	}
	p.observe(e)
	return report
}

func (p *Pipeline) observe(e history.Event) {
	p.observer.Observe(e)
}

func (p *Pipeline) progressInterval(f sniff.Format) int {
	switch {
	case p.progress > 0:
		return p.progress
	case f == sniff.LocationsWrapped:
		return DefaultLocationsProgress
	default:
		return DefaultProgress
	}
}
