package timestamp

import "math"

// Interpolate returns the time of the point at index within a path of count
// points spanning start..end, assuming uniform spacing along the path:
//
//	start + (end-start) * index / max(count-1, 1)
//
// The result is rounded to the nearest millisecond.
func Interpolate(start, end int64, index, count int) int64 {
	denom := count - 1
	if denom < 1 {
		denom = 1
	}
	progress := float64(index) / float64(denom)
	return start + int64(math.Round(float64(end-start)*progress))
}

// FillPath sets the missing entries of times, which holds one slot per path
// point. Nothing is filled unless enabled is true and both segment bounds are
// known. Existing entries are never overwritten.
func FillPath(times []*int64, start, end *int64, enabled bool) {
	if !enabled || start == nil || end == nil {
		return
	}
	for i := range times {
		if times[i] != nil {
			continue
		}
		ms := Interpolate(*start, *end, i, len(times))
		times[i] = &ms
	}
}
