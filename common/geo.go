package common

import (
	"math"

	"github.com/paulmach/orb"
)

// EarthRadiusMean is the mean radius of the earth in meters.
// Note that orb.EarthRadius is the equatorial radius (6378137),
// so orb/geo distances run about 0.1% longer than ours.
const EarthRadiusMean = 6371000.0

// Distance returns the great-circle distance in meters between two points
// using the haversine formula.
// Points are orb.Points, which are [lng, lat].
func Distance(a, b orb.Point) float64 {
	if a.Equal(b) {
		return 0
	}
	phi0 := Radians(a.Lat())
	phi1 := Radians(b.Lat())
	dPhi := phi1 - phi0
	dLambda := Radians(b.Lon() - a.Lon())

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi0)*math.Cos(phi1)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	// Rounding can push h a hair outside [0,1] for near-antipodal points,
	// and sqrt(1-h) would go NaN.
	h = Clamp(h, 0, 1)
	return EarthRadiusMean * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
