package assessment

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Half width of the tolerance band around a zone's average speed, in m/s.
const speedBandHalfWidth = 1.0

// rangeTolerance is the slack allowed when checking a stored band against the formula.
const rangeTolerance = 0.01

var (
	ErrZoneCount        = errors.New("calibration must contain exactly 5 zones")
	ErrNonPositiveSpeed = errors.New("average speed must be positive")
	ErrInvalidRange     = errors.New("speed range must satisfy max > min >= 0")
	ErrRangeFormula     = errors.New("speed range does not match [avg-1, avg+1]")
)

// SpeedRange is the tolerated speed band for a zone.
type SpeedRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether speed lies inside the band.
func (r SpeedRange) Contains(speed float64) bool {
	return speed >= r.Min && speed <= r.Max
}

// ZoneCalibration is the personal calibration result for one zone.
type ZoneCalibration struct {
	Name       ZoneName   `json:"name"`
	AvgSpeed   float64    `json:"avgSpeed"`
	SpeedRange SpeedRange `json:"speedRange"`
}

// UserCalibrationData is the profile produced by a completed session.
type UserCalibrationData struct {
	UserID    string            `json:"userId"`
	Timestamp time.Time         `json:"timestamp"`
	Zones     []ZoneCalibration `json:"zones"`
}

// CalculateAverageSpeed returns the mean of the in-band speeds, or 0 when none remain.
func CalculateAverageSpeed(samples []SpeedDataPoint) float64 {
	inRange := filterRange(samples)
	if len(inRange) == 0 {
		return 0
	}
	var sum float64
	for _, s := range inRange {
		sum += s.Speed
	}
	return sum / float64(len(inRange))
}

// CalculateSpeedRange returns [max(0, avg-1), avg+1].
func CalculateSpeedRange(avgSpeed float64) SpeedRange {
	return SpeedRange{
		Min: math.Max(0, avgSpeed-speedBandHalfWidth),
		Max: avgSpeed + speedBandHalfWidth,
	}
}

// ProcessZoneData filters samples and derives the zone's calibration. It
// returns false when no sample survives filtering.
func ProcessZoneData(zone TrainingZone, samples []SpeedDataPoint) (ZoneCalibration, bool) {
	filtered := FilterOutliers(samples, zone)
	if len(filtered) == 0 {
		return ZoneCalibration{}, false
	}
	var sum float64
	for _, s := range filtered {
		sum += s.Speed
	}
	avg := sum / float64(len(filtered))
	return ZoneCalibration{
		Name:       zone.Name,
		AvgSpeed:   avg,
		SpeedRange: CalculateSpeedRange(avg),
	}, true
}

// BuildProfile derives a profile from the valid buffers of a session. Zones
// whose buffer is invalid or yields no usable samples are left out, so the
// result may hold fewer than five entries.
func BuildProfile(userID string, zones []TrainingZone, buffers []ZoneDataBuffer, now time.Time) UserCalibrationData {
	profile := UserCalibrationData{
		UserID:    userID,
		Timestamp: now.UTC(),
		Zones:     make([]ZoneCalibration, 0, len(zones)),
	}
	for i, zone := range zones {
		if i >= len(buffers) {
			break
		}
		buf := buffers[i]
		if !buf.IsValid || len(buf.Samples) == 0 {
			continue
		}
		if cal, ok := ProcessZoneData(zone, buf.Samples); ok {
			profile.Zones = append(profile.Zones, cal)
		}
	}
	return profile
}

// ValidateCalibrationData returns nil when profile holds five zones with a
// positive average and a band matching the ±1 formula.
func ValidateCalibrationData(profile UserCalibrationData) error {
	if len(profile.Zones) != len(AllZoneNames) {
		return fmt.Errorf("%w: got %d", ErrZoneCount, len(profile.Zones))
	}
	for _, z := range profile.Zones {
		if z.AvgSpeed <= 0 {
			return fmt.Errorf("zone %s: %w: %v", z.Name, ErrNonPositiveSpeed, z.AvgSpeed)
		}
		if z.SpeedRange.Min < 0 || z.SpeedRange.Max <= z.SpeedRange.Min {
			return fmt.Errorf("zone %s: %w: [%v, %v]", z.Name, ErrInvalidRange, z.SpeedRange.Min, z.SpeedRange.Max)
		}
		want := CalculateSpeedRange(z.AvgSpeed)
		if math.Abs(z.SpeedRange.Min-want.Min) > rangeTolerance || math.Abs(z.SpeedRange.Max-want.Max) > rangeTolerance {
			return fmt.Errorf("zone %s: %w: got [%v, %v], want [%v, %v]",
				z.Name, ErrRangeFormula, z.SpeedRange.Min, z.SpeedRange.Max, want.Min, want.Max)
		}
	}
	return nil
}

// ZoneSpeedRecommendation returns the stored band for name.
func ZoneSpeedRecommendation(profile UserCalibrationData, name ZoneName) (SpeedRange, bool) {
	for _, z := range profile.Zones {
		if z.Name == name {
			return z.SpeedRange, true
		}
	}
	return SpeedRange{}, false
}

// Percentile returns the p-th percentile (0-100) of the sample speeds using
// linear interpolation between closest ranks. It returns 0 for no samples.
func Percentile(samples []SpeedDataPoint, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	speeds := make([]float64, len(samples))
	for i, s := range samples {
		speeds[i] = s.Speed
	}
	sort.Float64s(speeds)

	p = math.Min(100, math.Max(0, p))
	index := p / 100 * float64(len(speeds)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return speeds[lower]
	}
	weight := index - float64(lower)
	return speeds[lower]*(1-weight) + speeds[upper]*weight
}
