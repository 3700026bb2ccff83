package extract

import (
	"encoding/json"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/sniff"
	"github.com/banshee-data/locationhistory/internal/history/timestamp"
)

// locationWire is one element of the legacy {"locations": [...]} export:
//
//	{"latitudeE7": 351000000, "longitudeE7": -472000000,
//	 "timestampMs": "1700000000000", "accuracy": 12}
//
// Newer copies of the same export carry "timestamp" as an ISO string.
type locationWire struct {
	LatitudeE7  *json.Number    `json:"latitudeE7"`
	LongitudeE7 *json.Number    `json:"longitudeE7"`
	TimestampMs json.RawMessage `json:"timestampMs"`
	Timestamp   json.RawMessage `json:"timestamp"`
}

// locationsExtractor emits every flat location as a path point labelled
// "Location". The format has no visits or activities, so the category
// options do not apply to it.
type locationsExtractor struct{}

func (locationsExtractor) Format() sniff.Format { return sniff.LocationsWrapped }

func (locationsExtractor) Extract(raw json.RawMessage) ([]history.Point, error) {
	var w locationWire
	if err := decodeElement(sniff.LocationsWrapped, raw, &w); err != nil {
		return nil, err
	}
	lat, lon, ok := e7Pair(w.LatitudeE7, w.LongitudeE7)
	if !ok {
		return nil, errNoCoordinates
	}
	ts := timestamp.Ptr(w.TimestampMs, w.Timestamp)
	return []history.Point{
		pathPoint(lat, lon, ts, history.StringPtr(history.LabelLocation)),
	}, nil
}
