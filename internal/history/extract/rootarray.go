package extract

import (
	"encoding/json"
	"math"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
	"github.com/banshee-data/locationhistory/internal/history/timestamp"
)

// Root array exports (the on-device timeline export) are a bare array of
// records such as:
//
//	{"startTime": "...", "endTime": "...",
//	 "visit": {"topCandidate": {"placeID": "...", "semanticType": "Home",
//	           "probability": "0.93", "placeLocation": "geo:35.1,-47.2"}}}
//	{"startTime": "...", "endTime": "...",
//	 "activity": {"start": "geo:...", "end": "geo:...",
//	              "topCandidate": {"type": "walking"}}}
//	{"startTime": "...", "endTime": "...",
//	 "timelinePath": [{"point": "geo:...", "durationMinutesOffsetFromStartTime": "4"}]}

type rootCandidate struct {
	PlaceID       *string         `json:"placeID"` // also matches "placeId"
	SemanticType  *string         `json:"semanticType"`
	Probability   json.RawMessage `json:"probability"`
	PlaceLocation json.RawMessage `json:"placeLocation"`
}

type rootVisitWire struct {
	StartTime    json.RawMessage `json:"startTime"`
	TopCandidate rootCandidate   `json:"topCandidate"`
}

type rootActivityWire struct {
	Start        json.RawMessage `json:"start"`
	End          json.RawMessage `json:"end"`
	StartTime    json.RawMessage `json:"startTime"`
	EndTime      json.RawMessage `json:"endTime"`
	TopCandidate struct {
		Type string `json:"type"`
	} `json:"topCandidate"`
}

type rootPathPoint struct {
	Point  json.RawMessage `json:"point"`
	Offset json.RawMessage `json:"durationMinutesOffsetFromStartTime"`
}

type rootRecordWire struct {
	StartTime      json.RawMessage   `json:"startTime"`
	EndTime        json.RawMessage   `json:"endTime"`
	Visit          *rootVisitWire    `json:"visit"`
	Activity       *rootActivityWire `json:"activity"`
	TimelinePath   []rootPathPoint   `json:"timelinePath"`
	TimelineMemory json.RawMessage   `json:"timelineMemory"`
}

// rootRecord is the closed set of root array record variants.
type rootRecord interface{ isRootRecord() }

type rootVisit struct {
	recordStart json.RawMessage
	visit       *rootVisitWire
}

type rootActivity struct {
	recordStart, recordEnd json.RawMessage
	activity               *rootActivityWire
}

type rootPath struct {
	start, end json.RawMessage
	samples    []rootPathPoint
}

type rootMemory struct{}

func (rootVisit) isRootRecord()    {}
func (rootActivity) isRootRecord() {}
func (rootPath) isRootRecord()     {}
func (rootMemory) isRootRecord()   {}

// decodeRootRecord decodes raw and classifies it among the categories opts
// enables: a visit, else an activity, else a path. A record whose only
// variants are switched off, or a memory, yields disabled or rootMemory;
// a record with no known variant is an error.
func decodeRootRecord(raw json.RawMessage, opts history.Options) (rootRecord, error) {
	var w rootRecordWire
	if err := decodeElement(sniff.RootArray, raw, &w); err != nil {
		return nil, err
	}
	switch {
	case opts.IncludeVisits && w.Visit != nil:
		return rootVisit{recordStart: w.StartTime, visit: w.Visit}, nil
	case opts.IncludeActivities && w.Activity != nil:
		return rootActivity{recordStart: w.StartTime, recordEnd: w.EndTime, activity: w.Activity}, nil
	case opts.IncludeRawPath && w.TimelinePath != nil:
		return rootPath{start: w.StartTime, end: w.EndTime, samples: w.TimelinePath}, nil
	case len(w.TimelineMemory) > 0:
		return rootMemory{}, nil
	case w.Visit != nil || w.Activity != nil || w.TimelinePath != nil:
		return disabled{}, nil
	default:
		return nil, errNoVariant
	}
}

type rootArrayExtractor struct {
	opts history.Options
}

func (rootArrayExtractor) Format() sniff.Format { return sniff.RootArray }

func (e rootArrayExtractor) Extract(raw json.RawMessage) ([]history.Point, error) {
	rec, err := decodeRootRecord(raw, e.opts)
	if err != nil {
		return nil, err
	}
	switch r := rec.(type) {
	case rootVisit:
		return r.points()
	case rootActivity:
		return r.points()
	case rootPath:
		return r.points(e.opts.InterpolateMissingTimestamps), nil
	case rootMemory, disabled:
		return nil, nil
	default:
		return nil, errNoVariant
	}
}

func (r rootVisit) points() ([]history.Point, error) {
	c := r.visit.TopCandidate
	lat, lon, ok := coordString(c.PlaceLocation)
	if !ok {
		return nil, errNoCoordinates
	}
	prob, err := probability(c.Probability)
	if err != nil {
		return nil, err
	}
	ts := timestamp.Ptr(r.visit.StartTime, r.recordStart)
	return []history.Point{
		visitPoint(lat, lon, ts, optional(c.PlaceID), label(history.LabelUnknownLocation, c.SemanticType), prob),
	}, nil
}

func (r rootActivity) points() ([]history.Point, error) {
	a := r.activity
	var points []history.Point
	if lat, lon, ok := coordString(a.Start); ok {
		points = append(points, activityPoint(lat, lon, timestamp.Ptr(a.StartTime, r.recordStart), a.TopCandidate.Type))
	}
	if lat, lon, ok := coordString(a.End); ok {
		points = append(points, activityPoint(lat, lon, timestamp.Ptr(a.EndTime, r.recordEnd), a.TopCandidate.Type))
	}
	if len(points) == 0 {
		return nil, errNoCoordinates
	}
	return points, nil
}

// points places each sample at record start plus its minute offset when the
// offset is present, and interpolates the rest across the record's span.
func (r rootPath) points(interpolate bool) []history.Point {
	start := timestamp.Ptr(r.start)
	end := timestamp.Ptr(r.end)

	samples := make([]pathSample, len(r.samples))
	for i, p := range r.samples {
		lat, lon, ok := coordString(p.Point)
		samples[i] = pathSample{lat: lat, lon: lon, ok: ok}
		if start == nil {
			continue
		}
		if mins, ok := minutes(p.Offset); ok {
			ms := *start + int64(math.Round(mins*60_000))
			samples[i].ts = &ms
		}
	}
	return buildPath(samples, start, end, interpolate)
}
