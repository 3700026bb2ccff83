// Package geo decodes the coordinate encodings used by location history
// exports: free-text strings such as "geo:35.1,-47.2" or "35.1°, -47.2°", and
// integer degrees scaled by 1e7.
package geo

import (
	"regexp"
	"strconv"
)

// E7 is the scale factor between E7 integers and degrees.
const E7 = 1e-7

var decimalRE = regexp.MustCompile(`-?\d+\.\d+`)

// DecodeString extracts a latitude/longitude pair from s. It succeeds only when
// s contains exactly two signed decimal numbers; they are returned in the
// order they appear. No prefix is assumed.
func DecodeString(s string) (lat, lon float64, ok bool) {
	matches := decimalRE.FindAllString(s, 3)
	if len(matches) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(matches[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// FromE7 converts E7-scaled integers to degrees.
func FromE7(latE7, lonE7 int64) (lat, lon float64) {
	return float64(latE7) * E7, float64(lonE7) * E7
}

// ToE7 converts degrees to E7 integers, rounding to the nearest unit.
func ToE7(lat, lon float64) (latE7, lonE7 int64) {
	return round(lat / E7), round(lon / E7)
}

func round(f float64) int64 {
	if f < 0 {
		return int64(f - 0.5)
	}
	return int64(f + 0.5)
}
