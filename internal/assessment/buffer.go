package assessment

import "time"

// Seventy percent of the expected sample count must survive filtering.
const (
	sufficientNumerator   = 7
	sufficientDenominator = 10
)

// ZoneDataBuffer accumulates the samples collected for one zone of one session.
type ZoneDataBuffer struct {
	ZoneID  int              `json:"zoneId"`
	Samples []SpeedDataPoint `json:"speedData"`
	IsValid bool             `json:"isValid"`
}

// NewZoneDataBuffers creates one empty buffer per zone.
func NewZoneDataBuffers(zones []TrainingZone) []*ZoneDataBuffer {
	buffers := make([]*ZoneDataBuffer, len(zones))
	for i, z := range zones {
		buffers[i] = &ZoneDataBuffer{ZoneID: z.ID}
	}
	return buffers
}

// Append adds a raw sample in collection order.
func (b *ZoneDataBuffer) Append(p SpeedDataPoint) {
	b.Samples = append(b.Samples, p)
}

// Clone returns a deep copy.
func (b *ZoneDataBuffer) Clone() ZoneDataBuffer {
	c := *b
	c.Samples = append([]SpeedDataPoint(nil), b.Samples...)
	return c
}

// RequiredSamples returns floor(floor(duration/interval) * 0.7).
func RequiredSamples(zone TrainingZone, sampleInterval time.Duration) int {
	if sampleInterval <= 0 {
		return 0
	}
	// integer math keeps 360*0.7 at 252
	expected := int64(zone.Duration / sampleInterval)
	return int(expected * sufficientNumerator / sufficientDenominator)
}

// HasSufficientData filters the buffer, replaces its samples with the filtered
// result and reports whether enough samples survived.
//
// The rewrite is destructive: a second call would smooth already smoothed data.
// Call it exactly once per zone attempt, at the zone's end.
func (b *ZoneDataBuffer) HasSufficientData(zone TrainingZone, sampleInterval time.Duration) bool {
	b.Samples = FilterOutliers(b.Samples, zone)
	return len(b.Samples) >= RequiredSamples(zone, sampleInterval)
}
