package bt

import "fmt"

// RSCMeasurement is one notification of the RSC Measurement characteristic.
type RSCMeasurement struct {
	SpeedMps float64 // instantaneous speed
	Cadence  uint8   // steps per minute

	HasStrideLength bool
	StrideLengthM   float64

	HasTotalDistance bool
	TotalDistanceM   float64

	// Running is false when the sensor reports walking.
	Running bool
}

// ParseRSCMeasurement parses the RSC Measurement characteristic.
// See: https://www.bluetooth.com/specifications/specs/running-speed-and-cadence-service-1-0/
func ParseRSCMeasurement(buf []byte) (RSCMeasurement, error) {
	if len(buf) < 4 {
		return RSCMeasurement{}, fmt.Errorf("RSC data too short: %d bytes", len(buf))
	}

	flags := buf[0]
	m := RSCMeasurement{
		HasStrideLength:  flags&rscFlagStrideLength != 0,
		HasTotalDistance: flags&rscFlagTotalDistance != 0,
		Running:          flags&rscFlagRunning != 0,
	}

	// Instantaneous Speed (UINT16, 1/256 m/s resolution)
	rawSpeed := uint16(buf[1]) | (uint16(buf[2]) << 8)
	m.SpeedMps = float64(rawSpeed) / 256.0

	// Instantaneous Cadence (UINT8, 1/min)
	m.Cadence = buf[3]
	offset := 4

	// Instantaneous Stride Length (UINT16, 1/100 m resolution)
	if m.HasStrideLength {
		if offset+2 > len(buf) {
			return RSCMeasurement{}, fmt.Errorf("RSC data too short for stride length at offset %d", offset)
		}
		raw := uint16(buf[offset]) | (uint16(buf[offset+1]) << 8)
		m.StrideLengthM = float64(raw) / 100.0
		offset += 2
	}

	// Total Distance (UINT32, 1/10 m resolution)
	if m.HasTotalDistance {
		if offset+4 > len(buf) {
			return RSCMeasurement{}, fmt.Errorf("RSC data too short for total distance at offset %d", offset)
		}
		raw := uint32(buf[offset]) | uint32(buf[offset+1])<<8 | uint32(buf[offset+2])<<16 | uint32(buf[offset+3])<<24
		m.TotalDistanceM = float64(raw) / 10.0
	}

	return m, nil
}
