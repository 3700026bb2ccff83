// Package timestamp converts the timestamp encodings found in location
// history exports to epoch milliseconds and fills in missing path times.
//
// Supported encodings, in resolution order:
//
//	1700000000000                   number, truncated to integer ms
//	"1700000000000"                 all-digit string, integer ms
//	"2023-11-14T22:13:20Z"          ISO-8601 / RFC 3339, Z or offset
//	"2023-11-14T22:13:20.500+01:00" fractional seconds
//	"2023-11-14T22:13:20"           naive date-time, read as UTC
//	{"timestampMs": "5"}            container: timestampMs, then timestamp
//
// Absence is a normal outcome: every failure reports ok=false.
package timestamp

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// isoLayouts are tried in order after the all-digit check.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Normalize converts v to epoch milliseconds. v is typically a value decoded
// from JSON with UseNumber: json.Number, string, map[string]any, or nil.
// Zero, empty strings, booleans and unparseable values are unknown.
func Normalize(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return nonZero(ms)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return fromFloat(f)
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return nonZero(int64(t))
	case int64:
		return nonZero(t)
	case int32:
		return nonZero(int64(t))
	case string:
		return fromString(t)
	case map[string]any:
		if inner, ok := t["timestampMs"]; ok {
			return Normalize(inner)
		}
		if inner, ok := t["timestamp"]; ok {
			return Normalize(inner)
		}
		return 0, false
	default:
		return 0, false
	}
}

// NormalizeRaw decodes raw JSON and normalises the result. An empty or null
// message is unknown.
func NormalizeRaw(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	return Normalize(v)
}

// First returns the first of raws that normalises to a known time.
func First(raws ...json.RawMessage) (int64, bool) {
	for _, raw := range raws {
		if ms, ok := NormalizeRaw(raw); ok {
			return ms, true
		}
	}
	return 0, false
}

// Ptr is First returning a pointer, nil when unknown.
func Ptr(raws ...json.RawMessage) *int64 {
	ms, ok := First(raws...)
	if !ok {
		return nil
	}
	return &ms
}

func fromString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if isDigits(s) {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return nonZero(ms)
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

func fromFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, false
	}
	return nonZero(int64(f))
}

func nonZero(ms int64) (int64, bool) {
	return ms, ms != 0
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
