package main

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/audio"
	"github.com/saraylo/assessment-trainer/internal/clock"
	"github.com/saraylo/assessment-trainer/internal/events"
)

type fakeSession struct {
	states *events.CallbackEvent[assessment.AssessmentTrainingState]

	mu      sync.Mutex
	resumed int
}

func newFakeSession() *fakeSession {
	return &fakeSession{states: events.NewCallbackEvent[assessment.AssessmentTrainingState](true)}
}

func (f *fakeSession) OnStateChange(fn func(assessment.AssessmentTrainingState)) func() {
	return f.states.Listen(fn)
}

func (f *fakeSession) ResumeTraining() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed++
}

func (f *fakeSession) resumes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumed
}

func running(zone int) assessment.AssessmentTrainingState {
	return assessment.AssessmentTrainingState{IsActive: true, CurrentZoneIndex: zone, Phase: assessment.PhaseRunning}
}

func paused(zone int) assessment.AssessmentTrainingState {
	return assessment.AssessmentTrainingState{IsActive: true, IsPaused: true, CurrentZoneIndex: zone, Phase: assessment.PhasePaused, RepeatPending: true}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func pending(ch <-chan error) bool {
	select {
	case <-ch:
		return false
	default:
		return true
	}
}

func TestSessionWatch_StopIsReported(t *testing.T) {
	s := newFakeSession()
	w := watchSession(s, clock.NewManual(time.Unix(0, 0)), false, quietLogger())
	defer w.Close()

	s.states.Notify(running(0))
	require.True(t, pending(w.Done()))

	s.states.Notify(assessment.AssessmentTrainingState{Phase: assessment.PhaseIdle})
	select {
	case err := <-w.Done():
		assert.NoError(t, err)
	default:
		t.Fatal("stop was not reported")
	}
}

func TestSessionWatch_CompletionIsNotReported(t *testing.T) {
	s := newFakeSession()
	w := watchSession(s, clock.NewManual(time.Unix(0, 0)), true, quietLogger())
	defer w.Close()

	s.states.Notify(running(4))
	s.states.Notify(assessment.AssessmentTrainingState{IsCompleted: true, Phase: assessment.PhaseCompleted})
	assert.True(t, pending(w.Done()))
}

func TestSessionWatch_AutoResumeAfterDelay(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	s := newFakeSession()
	w := watchSession(s, clk, true, quietLogger())
	defer w.Close()

	s.states.Notify(running(1))
	s.states.Notify(paused(1))
	s.states.Notify(paused(1))

	clk.Advance(autoResumeDelay - time.Second)
	assert.Equal(t, 0, s.resumes())
	clk.Advance(time.Second)
	assert.Equal(t, 1, s.resumes(), "repeated pause snapshots schedule one resume")
	assert.True(t, pending(w.Done()))
}

func TestSessionWatch_StallsAfterRepeatedPausesInOneZone(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	s := newFakeSession()
	w := watchSession(s, clk, true, quietLogger())
	defer w.Close()

	for i := 0; i < maxAutoResumes; i++ {
		s.states.Notify(paused(2))
		clk.Advance(autoResumeDelay)
		s.states.Notify(running(2))
	}
	require.Equal(t, maxAutoResumes, s.resumes())
	require.True(t, pending(w.Done()))

	s.states.Notify(paused(2))
	select {
	case err := <-w.Done():
		assert.ErrorIs(t, err, errSessionStalled)
	default:
		t.Fatal("stall was not reported")
	}
	clk.Advance(time.Minute)
	assert.Equal(t, maxAutoResumes, s.resumes())
}

func TestSessionWatch_NewZoneResetsResumeBudget(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	s := newFakeSession()
	w := watchSession(s, clk, true, quietLogger())
	defer w.Close()

	for zone := 0; zone < 2; zone++ {
		for i := 0; i < maxAutoResumes; i++ {
			s.states.Notify(paused(zone))
			clk.Advance(autoResumeDelay)
			s.states.Notify(running(zone))
		}
	}
	assert.Equal(t, 2*maxAutoResumes, s.resumes())
	assert.True(t, pending(w.Done()))
}

func TestSessionWatch_ServerResumesWhenAutoResumeIsOff(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	s := newFakeSession()
	w := watchSession(s, clk, false, quietLogger())
	defer w.Close()

	s.states.Notify(running(0))
	s.states.Notify(paused(0))
	clk.Advance(time.Hour)
	assert.Equal(t, 0, s.resumes())
	assert.True(t, pending(w.Done()))
}

type silentProvider struct{}

func (silentProvider) StartCollecting(func(assessment.SpeedDataPoint), func(string), time.Duration) error {
	return nil
}

func (silentProvider) StopCollecting() {}

type mutedCues struct{}

func (mutedCues) Play(audio.Cue) {}

type discardSaver struct{}

func (discardSaver) Save(context.Context, assessment.UserCalibrationData) error { return nil }

// A sensor that never delivers makes every zone attempt end without data.
func TestSessionWatch_EngineWithoutSamplesStalls(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	zones := assessment.DefaultZones()
	for i := range zones {
		zones[i].Duration = 10 * time.Second
	}
	var changes []int
	engine := assessment.NewEngine(
		assessment.EngineConfig{UserID: "runner-1", Zones: zones, SampleInterval: time.Second},
		assessment.Callbacks{
			OnZoneChange:       func(i int) { changes = append(changes, i) },
			OnTrainingComplete: func(assessment.UserCalibrationData) {},
			OnError:            func(assessment.AssessmentError) {},
		},
		assessment.Deps{
			Provider: silentProvider{},
			Cues:     mutedCues{},
			Store:    discardSaver{},
			Clock:    clk,
			Logger:   quietLogger(),
		},
	)
	w := watchSession(engine, clk, true, quietLogger())
	defer w.Close()
	require.NoError(t, engine.StartTraining())

	for i := 0; i < maxAutoResumes; i++ {
		clk.Advance(10*time.Second + autoResumeDelay)
		require.True(t, pending(w.Done()))
	}
	assert.Equal(t, []int{0, 0, 0, 0}, changes, "each resume repeats the zone")

	clk.Advance(10 * time.Second)
	select {
	case err := <-w.Done():
		assert.ErrorIs(t, err, errSessionStalled)
	default:
		t.Fatal("stall was not reported")
	}

	engine.StopTraining()
	assert.False(t, engine.State().IsActive)
}
