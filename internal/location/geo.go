package location

import "math"

const earthRadius = 6371000.0 // meters

// DistanceMeters returns the great-circle distance between two coordinates
// given in degrees.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}

	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1Rad)*math.Cos(lat2Rad)*sinLon*sinLon
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadius * c
}

// SpeedBetween returns the average speed in m/s needed to travel from a to b.
// It returns 0 when b is not later than a.
func SpeedBetween(a, b TrackPoint) float64 {
	dt := float64(b.TimestampMs-a.TimestampMs) / 1000
	if dt <= 0 {
		return 0
	}
	return DistanceMeters(a.Lat, a.Lon, b.Lat, b.Lon) / dt
}
