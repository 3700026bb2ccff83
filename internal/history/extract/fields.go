package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/locationhistory/internal/history"
	"github.com/banshee-data/locationhistory/internal/history/geo"
	"github.com/banshee-data/locationhistory/internal/history/timestamp"
)

// coordString decodes a JSON string holding a free-text coordinate pair.
// Non-string values never match.
func coordString(raw json.RawMessage) (lat, lon float64, ok bool) {
	if len(raw) == 0 {
		return 0, 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, 0, false
	}
	return geo.DecodeString(s)
}

// e7Pair converts E7 integer fields to degrees. Both must be present and
// numeric.
func e7Pair(latE7, lonE7 *json.Number) (lat, lon float64, ok bool) {
	if latE7 == nil || lonE7 == nil {
		return 0, 0, false
	}
	la, ok1 := e7Int(*latE7)
	lo, ok2 := e7Int(*lonE7)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	lat, lon = geo.FromE7(la, lo)
	return lat, lon, true
}

func e7Int(n json.Number) (int64, bool) {
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(math.Round(f)), true
}

// number reads a JSON number or numeric string. present is false for
// missing, null and empty-string values.
func number(raw json.RawMessage) (f float64, present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, true, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false, nil
		}
		f, err = strconv.ParseFloat(s, 64)
		return f, true, err
	}
	err = json.Unmarshal(raw, &f)
	return f, true, err
}

// probability reads a confidence that may be a number or a numeric string.
// Missing values give 0; malformed ones are an error.
func probability(raw json.RawMessage) (float64, error) {
	f, _, err := number(raw)
	if err != nil {
		return 0, fmt.Errorf("probability: %w", err)
	}
	return f, nil
}

// minutes reads a numeric or numeric-string minute offset.
func minutes(raw json.RawMessage) (float64, bool) {
	f, present, err := number(raw)
	return f, present && err == nil
}

// label returns the first non-empty candidate, else fallback.
func label(fallback string, candidates ...*string) *string {
	for _, s := range candidates {
		if s != nil && *s != "" {
			return history.StringPtr(*s)
		}
	}
	return history.StringPtr(fallback)
}

// optional returns the first non-empty candidate, or nil.
func optional(candidates ...*string) *string {
	for _, s := range candidates {
		if s != nil && *s != "" {
			return history.StringPtr(*s)
		}
	}
	return nil
}

func visitPoint(lat, lon float64, ts *int64, placeID, semantic *string, prob float64) history.Point {
	return history.Point{
		Lat:          lat,
		Lon:          lon,
		Timestamp:    ts,
		PlaceID:      placeID,
		SemanticType: semantic,
		Probability:  prob,
		Source:       history.SourceVisit,
	}
}

func activityPoint(lat, lon float64, ts *int64, activityType string) history.Point {
	return history.Point{
		Lat:          lat,
		Lon:          lon,
		Timestamp:    ts,
		SemanticType: history.StringPtr(history.ActivityLabel(activityType)),
		Source:       history.SourceActivity,
	}
}

func pathPoint(lat, lon float64, ts *int64, semantic *string) history.Point {
	return history.Point{
		Lat:          lat,
		Lon:          lon,
		Timestamp:    ts,
		SemanticType: semantic,
		Source:       history.SourcePath,
	}
}

// pathSample is one decoded path entry before interpolation. ok is false when
// its coordinates could not be decoded; such entries still occupy an index.
type pathSample struct {
	lat, lon float64
	ok       bool
	ts       *int64
}

// buildPath interpolates missing sample times between start and end and
// returns the decodable samples as path points.
func buildPath(samples []pathSample, start, end *int64, interpolate bool) []history.Point {
	times := make([]*int64, len(samples))
	for i := range samples {
		times[i] = samples[i].ts
	}
	timestamp.FillPath(times, start, end, interpolate)

	points := make([]history.Point, 0, len(samples))
	for i, s := range samples {
		if !s.ok {
			continue
		}
		points = append(points, pathPoint(s.lat, s.lon, times[i], nil))
	}
	return points
}
