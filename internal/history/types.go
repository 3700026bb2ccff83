// Package history defines the canonical location point produced from a
// location-history export, the options that control extraction, and the
// diagnostics events emitted while a file is ingested.
//
// The parsing itself lives in the sub-packages:
//
//	timestamp  heterogeneous timestamp normalisation and path interpolation
//	geo        coordinate string and E7 decoding
//	sniff      schema detection from the first bytes of a file
//	extract    streaming per-schema extractors
//	pipeline   orchestration, failure isolation and the public entry point
package history

// Source identifies what kind of source record a point came from.
type Source string

const (
	// SourcePath is a raw tracked sample with no semantics of its own.
	SourcePath Source = "path"
	// SourceVisit is a dwell event at a place.
	SourceVisit Source = "visit"
	// SourceActivity is one endpoint of a movement between two places.
	SourceActivity Source = "activity"
)

// Semantic labels shared by the extractors.
const (
	LabelLocation        = "Location"
	LabelUnknownLocation = "Unknown Location"
	LabelUnknownActivity = "Unknown"
)

// Point is one geolocated record in the canonical output sequence. It is built
// once from a single source element (a path sample, a visit, or one endpoint of
// an activity) and never modified afterwards.
type Point struct {
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Timestamp    *int64  `json:"timestamp"` // epoch milliseconds, nil when unknown
	PlaceID      *string `json:"placeID"`
	SemanticType *string `json:"semanticType"`
	Probability  float64 `json:"probability"`
	Source       Source  `json:"source"`
}

// HasTimestamp reports whether the point carries a known time.
func (p Point) HasTimestamp() bool {
	return p.Timestamp != nil
}

// ActivityLabel formats the semantic label used for activity endpoints.
func ActivityLabel(activityType string) string {
	if activityType == "" {
		activityType = LabelUnknownActivity
	}
	return "Activity (" + activityType + ")"
}

// Options selects which record categories are extracted and whether missing
// path timestamps are interpolated. It is passed by value and never mutated by
// the pipeline.
type Options struct {
	IncludeVisits                bool
	IncludeActivities            bool
	IncludeRawPath               bool
	InterpolateMissingTimestamps bool
	InputPath                    string
}

// DefaultOptions enables every category and interpolation.
func DefaultOptions() Options {
	return Options{
		IncludeVisits:                true,
		IncludeActivities:            true,
		IncludeRawPath:               true,
		InterpolateMissingTimestamps: true,
	}
}

// WithInput returns a copy of o reading from path.
func (o Options) WithInput(path string) Options {
	o.InputPath = path
	return o
}

// Int64Ptr and StringPtr build the optional point fields.
func Int64Ptr(v int64) *int64 { return &v }

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string { return &s }
