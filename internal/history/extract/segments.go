package extract

import (
	"encoding/json"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
	"github.com/banshee-data/locationhistory/internal/history/timestamp"
)

// Semantic segment exports wrap the records in {"semanticSegments": [...]}.
// Each segment is one of:
//
//	{"startTime", "endTime", "timelinePath": [{"point": "35.1°, -47.2°", "time": "..."}]}
//	{"startTime", "endTime", "visit": {"topCandidate": {"placeId", "semanticType",
//	    "probability", "placeLocation": {"latLng": "35.1°, -47.2°"}}}}
//	{"startTime", "endTime", "activity": {"start": {"latLng"}, "end": {"latLng"},
//	    "topCandidate": {"type": "WALKING"}}}
//	{"startTime", "endTime", "timelineMemory": {...}}

type latLngWire struct {
	LatLng json.RawMessage `json:"latLng"`
	Time   json.RawMessage `json:"time"`
}

type segmentPathPoint struct {
	Point     json.RawMessage `json:"point"`
	Time      json.RawMessage `json:"time"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type segmentVisitWire struct {
	StartTime    json.RawMessage `json:"startTime"`
	TopCandidate struct {
		PlaceID       *string         `json:"placeID"` // also matches "placeId"
		SemanticType  *string         `json:"semanticType"`
		Probability   json.RawMessage `json:"probability"`
		PlaceLocation latLngWire      `json:"placeLocation"`
	} `json:"topCandidate"`
}

type segmentActivityWire struct {
	Start        latLngWire `json:"start"`
	End          latLngWire `json:"end"`
	TopCandidate struct {
		Type string `json:"type"`
	} `json:"topCandidate"`
}

type segmentWire struct {
	StartTime      json.RawMessage      `json:"startTime"`
	EndTime        json.RawMessage      `json:"endTime"`
	TimelinePath   []segmentPathPoint   `json:"timelinePath"`
	Visit          *segmentVisitWire    `json:"visit"`
	Activity       *segmentActivityWire `json:"activity"`
	TimelineMemory json.RawMessage      `json:"timelineMemory"`
}

// segment is the closed set of semantic segment variants.
type segment interface{ isSegment() }

type segmentPath struct {
	start, end json.RawMessage
	samples    []segmentPathPoint
}

type segmentVisit struct {
	start json.RawMessage
	visit *segmentVisitWire
}

type segmentActivity struct {
	start, end json.RawMessage
	activity   *segmentActivityWire
}

type segmentMemory struct{}

func (segmentPath) isSegment()     {}
func (segmentVisit) isSegment()    {}
func (segmentActivity) isSegment() {}
func (segmentMemory) isSegment()   {}

// decodeSegment decodes raw and classifies it with precedence
// path > visit > activity among the categories opts enables, then memory.
// Only one variant is ever processed; a segment whose variants are all
// switched off is disabled.
func decodeSegment(raw json.RawMessage, opts history.Options) (segment, error) {
	var w segmentWire
	if err := decodeElement(sniff.SemanticSegments, raw, &w); err != nil {
		return nil, err
	}
	switch {
	case opts.IncludeRawPath && w.TimelinePath != nil:
		return segmentPath{start: w.StartTime, end: w.EndTime, samples: w.TimelinePath}, nil
	case opts.IncludeVisits && w.Visit != nil:
		return segmentVisit{start: w.StartTime, visit: w.Visit}, nil
	case opts.IncludeActivities && w.Activity != nil:
		return segmentActivity{start: w.StartTime, end: w.EndTime, activity: w.Activity}, nil
	case len(w.TimelineMemory) > 0:
		return segmentMemory{}, nil
	case w.TimelinePath != nil || w.Visit != nil || w.Activity != nil:
		return disabled{}, nil
	default:
		return nil, errNoVariant
	}
}

type segmentsExtractor struct {
	opts history.Options
}

func (segmentsExtractor) Format() sniff.Format { return sniff.SemanticSegments }

func (e segmentsExtractor) Extract(raw json.RawMessage) ([]history.Point, error) {
	seg, err := decodeSegment(raw, e.opts)
	if err != nil {
		return nil, err
	}
	switch s := seg.(type) {
	case segmentPath:
		return s.points(e.opts.InterpolateMissingTimestamps), nil
	case segmentVisit:
		return s.points()
	case segmentActivity:
		return s.points()
	case segmentMemory, disabled:
		return nil, nil
	default:
		return nil, errNoVariant
	}
}

func (s segmentPath) points(interpolate bool) []history.Point {
	samples := make([]pathSample, len(s.samples))
	for i, p := range s.samples {
		lat, lon, ok := coordString(p.Point)
		samples[i] = pathSample{
			lat: lat,
			lon: lon,
			ok:  ok,
			ts:  timestamp.Ptr(p.Time, p.Timestamp),
		}
	}
	return buildPath(samples, timestamp.Ptr(s.start), timestamp.Ptr(s.end), interpolate)
}

func (s segmentVisit) points() ([]history.Point, error) {
	c := s.visit.TopCandidate
	lat, lon, ok := coordString(c.PlaceLocation.LatLng)
	if !ok {
		return nil, errNoCoordinates
	}
	prob, err := probability(c.Probability)
	if err != nil {
		return nil, err
	}
	ts := timestamp.Ptr(s.visit.StartTime, s.start)
	return []history.Point{
		visitPoint(lat, lon, ts, optional(c.PlaceID), label(history.LabelUnknownLocation, c.SemanticType), prob),
	}, nil
}

func (s segmentActivity) points() ([]history.Point, error) {
	a := s.activity
	var points []history.Point
	if lat, lon, ok := coordString(a.Start.LatLng); ok {
		points = append(points, activityPoint(lat, lon, timestamp.Ptr(a.Start.Time, s.start), a.TopCandidate.Type))
	}
	if lat, lon, ok := coordString(a.End.LatLng); ok {
		points = append(points, activityPoint(lat, lon, timestamp.Ptr(a.End.Time, s.end), a.TopCandidate.Type))
	}
	if len(points) == 0 {
		return nil, errNoCoordinates
	}
	return points, nil
}
