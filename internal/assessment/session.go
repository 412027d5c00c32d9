package assessment

import "time"

// ZoneLap is one attempt at a zone. A zone repeated after a data failure
// produces one lap per attempt. Samples are the raw readings, before filtering.
type ZoneLap struct {
	ZoneIndex int              `json:"zoneIndex"`
	Zone      TrainingZone     `json:"zone"`
	StartTime time.Time        `json:"startTime"`
	EndTime   time.Time        `json:"endTime"`
	Completed bool             `json:"completed"`
	Samples   []SpeedDataPoint `json:"samples"`
}

// Duration returns the wall time the lap covered.
func (l ZoneLap) Duration() time.Duration {
	if l.EndTime.IsZero() {
		return 0
	}
	return l.EndTime.Sub(l.StartTime)
}

// AvgSpeed returns the mean of the in-band raw speeds.
func (l ZoneLap) AvgSpeed() float64 {
	return CalculateAverageSpeed(l.Samples)
}

// MaxSpeed returns the highest in-band raw speed.
func (l ZoneLap) MaxSpeed() float64 {
	var top float64
	for _, s := range l.Samples {
		if isPlausibleSpeed(s.Speed) && s.Speed > top {
			top = s.Speed
		}
	}
	return top
}

// SessionSummary describes one session for export.
type SessionSummary struct {
	ID         string               `json:"id"`
	UserID     string               `json:"userId"`
	StartTime  time.Time            `json:"startTime"`
	EndTime    time.Time            `json:"endTime"`
	ActiveTime time.Duration        `json:"activeTime"`
	Completed  bool                 `json:"completed"`
	Laps       []ZoneLap            `json:"laps"`
	Profile    *UserCalibrationData `json:"profile,omitempty"`
}

// closeLapLocked ends the open lap, if any.
func (e *Engine) closeLapLocked(now time.Time, completed bool) {
	n := len(e.laps)
	if n == 0 || !e.laps[n-1].EndTime.IsZero() {
		return
	}
	e.laps[n-1].EndTime = now
	e.laps[n-1].Completed = completed
}

func (e *Engine) buildSummaryLocked() SessionSummary {
	summary := SessionSummary{
		ID:         e.sessionID,
		UserID:     e.cfg.UserID,
		StartTime:  e.startTime,
		EndTime:    e.endTime,
		ActiveTime: e.elapsedLocked(e.clock.Now()),
		Completed:  e.completed,
		Laps:       make([]ZoneLap, len(e.laps)),
	}
	for i, lap := range e.laps {
		lap.Samples = append([]SpeedDataPoint(nil), lap.Samples...)
		summary.Laps[i] = lap
	}
	if e.profile != nil {
		profile := *e.profile
		profile.Zones = append([]ZoneCalibration(nil), e.profile.Zones...)
		summary.Profile = &profile
	}
	return summary
}
