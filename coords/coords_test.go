package coords

import (
	"math"
	"testing"
)

func TestTransformNearGreenwich(t *testing.T) {
	// A central-London grid reference near the Greenwich meridian, so the
	// resulting longitude/latitude land in the London area.
	lon, lat := Transform(530000, 180000)

	if lon < -1 || lon > 1 {
		t.Errorf("longitude %f out of expected London-area range", lon)
	}
	if lat < 51 || lat > 52 {
		t.Errorf("latitude %f out of expected London-area range", lat)
	}
}

func TestTransformMonotonic(t *testing.T) {
	lon1, _ := Transform(500000, 200000)
	lon2, _ := Transform(510000, 200000)
	if !(lon2 > lon1) {
		t.Errorf("expected longitude to increase with easting: lon1=%f lon2=%f", lon1, lon2)
	}
}

func TestIsMissing(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"0.000000000", true},
		{"0", true},
		{"532145.0", false},
		{"-1.234", false},
	}
	for _, tt := range tests {
		if got := IsMissing(tt.value); got != tt.want {
			t.Errorf("IsMissing(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestTransformFinite(t *testing.T) {
	lon, lat := Transform(400000, 100000)
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		t.Fatalf("Transform produced non-finite result: lon=%f lat=%f", lon, lat)
	}
}
