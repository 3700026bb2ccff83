// Package extract holds the four schema-specific extractors and the streaming
// walker that feeds them one top-level element at a time.
//
// Every element is decoded once into a typed record and classified into a
// closed set of variants (for example visit, activity or path) before any
// points are built, so that option gating and required-field checks are a
// single type switch per schema. A failure inside one element never escapes:
// it becomes a Result carrying a *SkipError and the walk continues.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
)

// Reasons a single element is skipped.
var (
	errNoVariant     = errors.New("element has no recognised record type")
	errNoCoordinates = errors.New("no decodable coordinates")
)

// Extractor turns one raw top-level element into points.
type Extractor interface {
	Format() sniff.Format
	Extract(raw json.RawMessage) ([]history.Point, error)
}

// For returns the extractor for format configured with opts.
func For(format sniff.Format, opts history.Options) (Extractor, error) {
	switch format {
	case sniff.RootArray:
		return rootArrayExtractor{opts: opts}, nil
	case sniff.LocationsWrapped:
		return locationsExtractor{}, nil
	case sniff.SemanticSegments:
		return segmentsExtractor{opts: opts}, nil
	case sniff.TimelineObjects:
		return timelineExtractor{opts: opts}, nil
	default:
		return nil, fmt.Errorf("%w: %s", history.ErrUnrecognizedFormat, format)
	}
}

// Result is the outcome of one top-level element. Err is a *SkipError when
// the element was skipped, in which case Points is empty.
type Result struct {
	Index  int
	Points []history.Point
	Err    error
}

// Skipped reports whether the element was dropped.
func (r Result) Skipped() bool { return r.Err != nil }

// SkipError records why one element was dropped. It wraps
// history.ErrRecordExtraction and the underlying cause.
type SkipError struct {
	Index int
	Err   error
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("element #%d skipped: %v", e.Index+1, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is/As.
func (e *SkipError) Unwrap() []error {
	if e.Err == nil {
		return []error{history.ErrRecordExtraction}
	}
	return []error{history.ErrRecordExtraction, e.Err}
}

// isolate runs ex on one element, converting errors and panics into a skip.
func isolate(ex Extractor, index int, raw json.RawMessage) (res Result) {
	res.Index = index
	defer func() {
		if r := recover(); r != nil {
			res.Points = nil
			res.Err = &SkipError{Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	points, err := ex.Extract(raw)
	if err != nil {
		res.Err = &SkipError{Index: index, Err: err}
		return res
	}
	res.Points = points
	return res
}

// Run streams r, which must hold a document of the given format, and calls
// emit with one Result per top-level element in file order.
//
// It returns nil when the stream ends normally, an error wrapping
// history.ErrStructuralParse when the token stream becomes invalid, a read
// error from r unchanged apart from wrapping, or the first error returned by
// emit. Results already passed to emit stay valid in every case.
func Run(r io.Reader, format sniff.Format, opts history.Options, emit func(Result) error) error {
	ex, err := For(format, opts)
	if err != nil {
		return err
	}
	w := newWalker(r, format.Key())
	return w.walk(func(index int, raw json.RawMessage) error {
		return emit(isolate(ex, index, raw))
	})
}

// decodeElement unmarshals raw into v, wrapping the error with the schema name.
func decodeElement(format sniff.Format, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s element: %w", format, err)
	}
	return nil
}

// disabled is a record whose recognised variants are all switched off by
// the options. It yields no points and is not a skip.
type disabled struct{}

func (disabled) isRootRecord()     {}
func (disabled) isSegment()        {}
func (disabled) isTimelineObject() {}
