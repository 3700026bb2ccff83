package extract

import (
	"encoding/json"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
	"github.com/banshee-data/locationhistory/internal/history/timestamp"
)

// Legacy timeline exports wrap {"timelineObjects": [...]}; each object holds
// exactly one of placeVisit or activitySegment with E7 coordinates and a
// duration whose bounds are ISO strings (startTimestamp) or epoch ms strings
// (startTimestampMs) depending on the export vintage.

type durationWire struct {
	StartTimestamp   json.RawMessage `json:"startTimestamp"`
	StartTimestampMs json.RawMessage `json:"startTimestampMs"`
	EndTimestamp     json.RawMessage `json:"endTimestamp"`
	EndTimestampMs   json.RawMessage `json:"endTimestampMs"`
}

func (d durationWire) start() *int64 { return timestamp.Ptr(d.StartTimestamp, d.StartTimestampMs) }
func (d durationWire) end() *int64   { return timestamp.Ptr(d.EndTimestamp, d.EndTimestampMs) }

type e7Location struct {
	LatitudeE7   *json.Number `json:"latitudeE7"`
	LongitudeE7  *json.Number `json:"longitudeE7"`
	SemanticType *string      `json:"semanticType"`
	PlaceID      *string      `json:"placeId"`
}

type placeVisitWire struct {
	Location     *e7Location  `json:"location"`
	Duration     durationWire `json:"duration"`
	SemanticType *string      `json:"semanticType"`
	PlaceID      *string      `json:"placeId"`
}

type rawPathPoint struct {
	LatE7       *json.Number    `json:"latE7"`
	LngE7       *json.Number    `json:"lngE7"`
	TimestampMs json.RawMessage `json:"timestampMs"`
}

type activitySegmentWire struct {
	StartLocation     *e7Location  `json:"startLocation"`
	EndLocation       *e7Location  `json:"endLocation"`
	Duration          durationWire `json:"duration"`
	ActivityType      string       `json:"activityType"`
	SimplifiedRawPath *struct {
		Points []rawPathPoint `json:"points"`
	} `json:"simplifiedRawPath"`
}

type timelineObjectWire struct {
	PlaceVisit      *placeVisitWire      `json:"placeVisit"`
	ActivitySegment *activitySegmentWire `json:"activitySegment"`
}

// timelineObject is the closed set of timeline object variants.
type timelineObject interface{ isTimelineObject() }

type placeVisit struct{ *placeVisitWire }
type activitySegment struct{ *activitySegmentWire }

func (placeVisit) isTimelineObject()      {}
func (activitySegment) isTimelineObject() {}

// decodeTimelineObject picks a place visit, else an activity segment, among
// the categories opts enables.
func decodeTimelineObject(raw json.RawMessage, opts history.Options) (timelineObject, error) {
	var w timelineObjectWire
	if err := decodeElement(sniff.TimelineObjects, raw, &w); err != nil {
		return nil, err
	}
	switch {
	case opts.IncludeVisits && w.PlaceVisit != nil:
		return placeVisit{w.PlaceVisit}, nil
	case opts.IncludeActivities && w.ActivitySegment != nil:
		return activitySegment{w.ActivitySegment}, nil
	case w.PlaceVisit != nil || w.ActivitySegment != nil:
		return disabled{}, nil
	default:
		return nil, errNoVariant
	}
}

type timelineExtractor struct {
	opts history.Options
}

func (timelineExtractor) Format() sniff.Format { return sniff.TimelineObjects }

func (e timelineExtractor) Extract(raw json.RawMessage) ([]history.Point, error) {
	obj, err := decodeTimelineObject(raw, e.opts)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case placeVisit:
		return o.points()
	case activitySegment:
		return o.points(e.opts)
	case disabled:
		return nil, nil
	default:
		return nil, errNoVariant
	}
}

// points builds the visit point. The legacy format carries no probability.
func (v placeVisit) points() ([]history.Point, error) {
	loc := v.Location
	if loc == nil {
		return nil, errNoCoordinates
	}
	lat, lon, ok := e7Pair(loc.LatitudeE7, loc.LongitudeE7)
	if !ok {
		return nil, errNoCoordinates
	}
	return []history.Point{
		visitPoint(lat, lon, v.Duration.start(),
			optional(loc.PlaceID, v.PlaceID),
			label(history.LabelUnknownLocation, loc.SemanticType, v.SemanticType),
			0),
	}, nil
}

// points emits the start and end endpoints, then the simplified raw path when
// raw paths are enabled. Only called for enabled activities; a segment that
// yields nothing at all is an error.
func (a activitySegment) points(opts history.Options) ([]history.Point, error) {
	start, end := a.Duration.start(), a.Duration.end()

	var points []history.Point
	for _, ep := range []struct {
		loc *e7Location
		ts  *int64
	}{{a.StartLocation, start}, {a.EndLocation, end}} {
		if ep.loc == nil {
			continue
		}
		if lat, lon, ok := e7Pair(ep.loc.LatitudeE7, ep.loc.LongitudeE7); ok {
			points = append(points, activityPoint(lat, lon, ep.ts, a.ActivityType))
		}
	}

	if opts.IncludeRawPath && a.SimplifiedRawPath != nil {
		raw := a.SimplifiedRawPath.Points
		samples := make([]pathSample, len(raw))
		for i, p := range raw {
			lat, lon, ok := e7Pair(p.LatE7, p.LngE7)
			samples[i] = pathSample{lat: lat, lon: lon, ok: ok, ts: timestamp.Ptr(p.TimestampMs)}
		}
		points = append(points, buildPath(samples, start, end, opts.InterpolateMissingTimestamps)...)
	}

	if len(points) == 0 {
		return nil, errNoCoordinates
	}
	return points, nil
}
