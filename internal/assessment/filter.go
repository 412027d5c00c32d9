package assessment

// Plausible speed band in m/s. Samples outside it are treated as sensor noise.
const (
	MinPlausibleSpeed = 0.5
	MaxPlausibleSpeed = 15.0

	smoothingWindow = 3
	// smoothing only kicks in above this many in-range samples
	smoothingMinSamples = 3
)

// SpeedDataPoint is one speed reading. Timestamp is in milliseconds.
type SpeedDataPoint struct {
	Speed     float64 `json:"speed"`
	Timestamp int64   `json:"timestamp"`
}

// FilterOutliers drops samples outside the plausible speed band and, when more
// than three remain, smooths them with a centered moving average. The band is
// the same for every zone. The input slice is never modified.
func FilterOutliers(samples []SpeedDataPoint, _ TrainingZone) []SpeedDataPoint {
	inRange := filterRange(samples)
	if len(inRange) > smoothingMinSamples {
		return movingAverage(inRange, smoothingWindow)
	}
	return inRange
}

func isPlausibleSpeed(speed float64) bool {
	return speed >= MinPlausibleSpeed && speed <= MaxPlausibleSpeed
}

func filterRange(samples []SpeedDataPoint) []SpeedDataPoint {
	out := make([]SpeedDataPoint, 0, len(samples))
	for _, s := range samples {
		if isPlausibleSpeed(s.Speed) {
			out = append(out, s)
		}
	}
	return out
}

// movingAverage replaces each speed with the mean of its centered window.
// Windows shrink at the edges.
func movingAverage(samples []SpeedDataPoint, window int) []SpeedDataPoint {
	half := window / 2
	out := make([]SpeedDataPoint, len(samples))
	for i := range samples {
		start := max(0, i-half)
		end := min(len(samples), i+half+1)
		var sum float64
		for j := start; j < end; j++ {
			sum += samples[j].Speed
		}
		out[i] = SpeedDataPoint{
			Speed:     sum / float64(end-start),
			Timestamp: samples[i].Timestamp,
		}
	}
	return out
}
