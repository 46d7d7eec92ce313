package util

import (
	"math"
	"math/rand"

	"github.com/quietroute/optout-api/pkg/model"
)

// jitterDegrees bounds the random offset applied to each axis, roughly 55m.
const jitterDegrees = 0.0005

// ApproximateLocation coarsens a coordinate pair for storage and display:
// rounded to three decimal places (~110m cells) with a uniform random jitter
// of up to ±55m per axis. The output never equals the true input and two
// calls for the same input differ, so stored points cannot re-identify a
// household or support exact distance math.
func ApproximateLocation(lat, lng float64) model.GeoPoint {
	return model.GeoPoint{
		Lat: roundTo3(lat) + jitter(),
		Lng: roundTo3(lng) + jitter(),
	}
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func jitter() float64 {
	return (rand.Float64()*2 - 1) * jitterDegrees
}
