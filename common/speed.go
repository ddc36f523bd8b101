package common

// All units are metric: speed in m/s, distance in meters, acceleration in m/s^2.
// Speed limits are posted (and resolved) in km/h.

const kmhPerMps = 3.6

// KmhToMps converts a speed in km/h to m/s.
func KmhToMps(kmh float64) float64 {
	return kmh / kmhPerMps
}

// MpsToKmh converts a speed in m/s to km/h.
func MpsToKmh(mps float64) float64 {
	return mps * kmhPerMps
}

const MetersPerMile = 1609.344
const MetersPerNauticalMile = 1852.0

// MphToKmh converts miles per hour to km/h.
func MphToKmh(mph float64) float64 {
	return mph * MetersPerMile / 1000
}

// KnotsToKmh converts knots to km/h.
func KnotsToKmh(knots float64) float64 {
	return knots * MetersPerNauticalMile / 1000
}
