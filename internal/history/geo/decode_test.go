package geo

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeString(t *testing.T) {
	tests := []struct {
		in      string
		lat     float64
		lon     float64
		wantOK  bool
		comment string
	}{
		{"geo:35.1,-47.2", 35.1, -47.2, true, "geo uri"},
		{"35.6812345°, 139.7671234°", 35.6812345, 139.7671234, true, "degree symbols"},
		{"-33.865143,151.209900", -33.865143, 151.2099, true, "bare pair"},
		{"no numbers here", 0, 0, false, "nothing"},
		{"one 1.0 number", 0, 0, false, "needs exactly two"},
		{"1.0 2.0 3.0", 0, 0, false, "three is too many"},
		{"geo:35,-47", 0, 0, false, "integers are not decimals"},
		{"", 0, 0, false, "empty"},
	}
	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			lat, lon, ok := DecodeString(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.lat, lat, 1e-12)
			assert.InDelta(t, tt.lon, lon, 1e-12)
		})
	}
}

func TestFromE7(t *testing.T) {
	lat, lon := FromE7(351000000, -472000000)
	assert.InDelta(t, 35.1, lat, 1e-9)
	assert.InDelta(t, -47.2, lon, 1e-9)
}

func TestE7RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		lat := r.Float64()*180 - 90
		lon := r.Float64()*360 - 180

		latE7, lonE7 := ToE7(lat, lon)
		gotLat, gotLon := FromE7(latE7, lonE7)
		if math.Abs(gotLat-lat) > 1e-7 || math.Abs(gotLon-lon) > 1e-7 {
			t.Fatalf("round trip (%v,%v) -> (%d,%d) -> (%v,%v)", lat, lon, latE7, lonE7, gotLat, gotLon)
		}
	}
}

func TestFromE7IsExactScaling(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 900000000, -1800000000, 123456789} {
		lat, lon := FromE7(v, -v)
		assert.Equal(t, float64(v)*1e-7, lat)
		assert.Equal(t, float64(-v)*1e-7, lon)
	}
}
