// Package fitexport writes an assessment session as a FIT activity file so it
// can be imported into training platforms.
package fitexport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/saraylo/assessment-trainer/internal/assessment"
)

const serialNumber = 20240

// FileName returns the export name for a session.
func FileName(sessionID string) string {
	return fmt.Sprintf("assessment-%s.fit", sessionID)
}

// WriteFile writes the session into dir and returns the file path.
func WriteFile(dir string, summary assessment.SessionSummary) (string, error) {
	if summary.ID == "" {
		return "", errors.New("session has no id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(summary.ID))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := Write(f, summary); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// Write encodes the session: a file id, one record per raw sample, one lap
// per zone attempt, a timer stop event and a running session.
func Write(w io.Writer, summary assessment.SessionSummary) error {
	start := summary.StartTime
	if start.IsZero() {
		return errors.New("session was never started")
	}
	end := summary.EndTime
	if end.IsZero() {
		end = start.Add(summary.ActiveTime)
	}

	fit := proto.FIT{}

	fileID := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		Product:      0,
		SerialNumber: serialNumber,
		TimeCreated:  start,
	}
	fit.Messages = append(fit.Messages, fileID.ToMesg(nil))

	var (
		sessionSum   float64
		sessionCount int
		sessionMax   float64
	)
	for _, lap := range summary.Laps {
		for _, s := range lap.Samples {
			record := mesgdef.Record{
				Timestamp:     time.UnixMilli(s.Timestamp),
				EnhancedSpeed: speedToFit(s.Speed),
			}
			fit.Messages = append(fit.Messages, record.ToMesg(nil))
		}
		avg := lap.AvgSpeed()
		if avg > 0 {
			sessionSum += avg * float64(len(lap.Samples))
			sessionCount += len(lap.Samples)
		}
		if m := lap.MaxSpeed(); m > sessionMax {
			sessionMax = m
		}
	}

	event := mesgdef.Event{
		Timestamp: end,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStopAll,
	}
	fit.Messages = append(fit.Messages, event.ToMesg(nil))

	for i, lap := range summary.Laps {
		lapEnd := lap.EndTime
		if lapEnd.IsZero() {
			lapEnd = end
		}
		elapsed := durationToFit(lapEnd.Sub(lap.StartTime))
		lapMesg := mesgdef.Lap{
			MessageIndex:     typedef.MessageIndex(i),
			Timestamp:        lapEnd,
			StartTime:        lap.StartTime,
			TotalElapsedTime: elapsed,
			TotalTimerTime:   elapsed,
			EnhancedAvgSpeed: speedToFit(lap.AvgSpeed()),
			EnhancedMaxSpeed: speedToFit(lap.MaxSpeed()),
			Event:            typedef.EventLap,
			EventType:        typedef.EventTypeStop,
		}
		fit.Messages = append(fit.Messages, lapMesg.ToMesg(nil))
	}

	var sessionAvg float64
	if sessionCount > 0 {
		sessionAvg = sessionSum / float64(sessionCount)
	}
	session := mesgdef.Session{
		Timestamp:        end,
		StartTime:        start,
		TotalElapsedTime: durationToFit(end.Sub(start)),
		TotalTimerTime:   durationToFit(summary.ActiveTime),
		NumLaps:          uint16(len(summary.Laps)),
		EnhancedAvgSpeed: speedToFit(sessionAvg),
		EnhancedMaxSpeed: speedToFit(sessionMax),
		Sport:            typedef.SportRunning,
		SubSport:         typedef.SubSportTrack,
		Event:            typedef.EventSession,
		EventType:        typedef.EventTypeStop,
		Trigger:          typedef.SessionTriggerActivityEnd,
	}
	fit.Messages = append(fit.Messages, session.ToMesg(nil))

	if err := encoder.New(w).Encode(&fit); err != nil {
		return fmt.Errorf("encode fit: %w", err)
	}
	return nil
}

// speedToFit converts m/s to the mm/s scale FIT speeds use.
func speedToFit(mps float64) uint32 {
	if mps <= 0 {
		return 0
	}
	return uint32(mps * 1000)
}

// durationToFit converts to the millisecond scale of FIT elapsed times.
func durationToFit(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d.Milliseconds())
}
