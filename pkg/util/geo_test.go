package util

import (
	"math"
	"testing"
)

func TestApproximateLocationStaysNearby(t *testing.T) {
	lat, lng := 39.742043, -104.991531
	for i := 0; i < 100; i++ {
		got := ApproximateLocation(lat, lng)
		// Rounding moves at most half a cell (0.0005), jitter at most 0.0005.
		if math.Abs(got.Lat-lat) > 0.002 {
			t.Fatalf("lat drifted too far: %f -> %f", lat, got.Lat)
		}
		if math.Abs(got.Lng-lng) > 0.002 {
			t.Fatalf("lng drifted too far: %f -> %f", lng, got.Lng)
		}
	}
}

func TestApproximateLocationNonDeterministic(t *testing.T) {
	lat, lng := 39.742043, -104.991531
	first := ApproximateLocation(lat, lng)
	same := true
	for i := 0; i < 20; i++ {
		next := ApproximateLocation(lat, lng)
		if next != first {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected jitter to vary across calls")
	}
}
