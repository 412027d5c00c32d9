package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters(t *testing.T) {
	assert.Equal(t, 0.0, DistanceMeters(55.75, 37.61, 55.75, 37.61))

	// one degree of latitude is about 111.2 km everywhere
	assert.InDelta(t, 111195, DistanceMeters(10, 20, 11, 20), 10)

	// Moscow to Saint Petersburg
	assert.InDelta(t, 634000, DistanceMeters(55.7558, 37.6173, 59.9343, 30.3351), 2000)

	assert.InDelta(t, DistanceMeters(1, 2, 3, 4), DistanceMeters(3, 4, 1, 2), 1e-6, "symmetric")
}

func TestSpeedBetween(t *testing.T) {
	a := TrackPoint{TimestampMs: 0, Lat: 0, Lon: 0}
	// 0.0001 degrees of latitude is about 11.12 m
	b := TrackPoint{TimestampMs: 4000, Lat: 0.0001, Lon: 0}

	assert.InDelta(t, 11.1195/4, SpeedBetween(a, b), 1e-3)
	assert.Equal(t, 0.0, SpeedBetween(b, a), "non-increasing time yields zero")
	assert.Equal(t, 0.0, SpeedBetween(a, TrackPoint{TimestampMs: 0, Lat: 1}))
}
