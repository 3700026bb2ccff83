package history

import (
	"gonum.org/v1/gonum/floats"
)

// Summary describes an extracted point sequence.
type Summary struct {
	Total          int            `json:"total"`
	BySource       map[Source]int `json:"by_source"`
	WithTimestamp  int            `json:"with_timestamp"`
	MinLat         float64        `json:"min_lat"`
	MaxLat         float64        `json:"max_lat"`
	MinLon         float64        `json:"min_lon"`
	MaxLon         float64        `json:"max_lon"`
	FirstTimestamp *int64         `json:"first_timestamp,omitempty"`
	LastTimestamp  *int64         `json:"last_timestamp,omitempty"`
}

// Summarize computes counts, the bounding box and the time span of points.
// The bounding box is zero for an empty sequence.
func Summarize(points []Point) Summary {
	s := Summary{
		Total:    len(points),
		BySource: make(map[Source]int),
	}
	if len(points) == 0 {
		return s
	}

	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	var stamps []float64
	for i, p := range points {
		lats[i] = p.Lat
		lons[i] = p.Lon
		s.BySource[p.Source]++
		if p.Timestamp != nil {
			stamps = append(stamps, float64(*p.Timestamp))
		}
	}

	s.MinLat, s.MaxLat = floats.Min(lats), floats.Max(lats)
	s.MinLon, s.MaxLon = floats.Min(lons), floats.Max(lons)
	s.WithTimestamp = len(stamps)
	if len(stamps) > 0 {
		s.FirstTimestamp = Int64Ptr(int64(floats.Min(stamps)))
		s.LastTimestamp = Int64Ptr(int64(floats.Max(stamps)))
	}
	return s
}
