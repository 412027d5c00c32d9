package assessment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saraylo/assessment-trainer/internal/audio"
	"github.com/saraylo/assessment-trainer/internal/clock"
	"github.com/saraylo/assessment-trainer/internal/events"
)

// DefaultSampleInterval is the provider sampling period used when none is configured.
const DefaultSampleInterval = time.Second

const (
	countdownStep  = time.Second
	retryDelay     = time.Second
	persistTimeout = 5 * time.Second
)

// ErrAlreadyActive is returned by StartTraining while a session is running.
var ErrAlreadyActive = errors.New("training is already active")

// SampleProvider delivers speed samples no faster than interval. Failures are
// reported through onError, never by panicking into the engine. Providers must
// not hold their own locks while invoking the callbacks.
type SampleProvider interface {
	StartCollecting(onSample func(SpeedDataPoint), onError func(message string), interval time.Duration) error
	StopCollecting()
}

// CalibrationSaver persists a finished profile.
type CalibrationSaver interface {
	Save(ctx context.Context, profile UserCalibrationData) error
}

// Phase is the engine state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseCountdown
	PhasePaused
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseCountdown:
		return "countdown"
	case PhasePaused:
		return "paused"
	case PhaseCompleted:
		return "completed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// AssessmentTrainingState is a snapshot of a session. Buffers are deep copies.
type AssessmentTrainingState struct {
	SessionID        string           `json:"sessionId"`
	Phase            Phase            `json:"phase"`
	IsActive         bool             `json:"isActive"`
	IsPaused         bool             `json:"isPaused"`
	IsCompleted      bool             `json:"isCompleted"`
	CurrentZoneIndex int              `json:"currentZoneIndex"`
	StartTime        time.Time        `json:"startTime"`
	CurrentTime      time.Time        `json:"currentTime"`
	ElapsedTime      time.Duration    `json:"elapsedTime"`
	ElapsedInZone    time.Duration    `json:"elapsedInZone"`
	RemainingInZone  time.Duration    `json:"remainingInZone"`
	RepeatPending    bool             `json:"repeatPending"`
	ZoneBuffers      []ZoneDataBuffer `json:"zoneBuffers"`
}

// EngineConfig holds per-session settings.
type EngineConfig struct {
	UserID         string
	Zones          []TrainingZone
	SampleInterval time.Duration

	// RequireValidProfile skips persisting profiles that fail validation.
	// By default every completed profile is persisted.
	RequireValidProfile bool
}

// Callbacks are invoked synchronously from the engine's handlers, after the
// engine lock is released. They must not block.
type Callbacks struct {
	OnZoneChange       func(zoneIndex int)
	OnTrainingComplete func(profile UserCalibrationData)
	OnError            func(err AssessmentError)
}

// Deps are the engine's collaborators.
type Deps struct {
	Provider SampleProvider
	Cues     CuePlayer
	Store    CalibrationSaver
	Clock    clock.Clock
	Logger   *log.Logger
}

// Engine runs one assessment session at a time: it sequences the zones, arms
// their timers, collects samples and produces the calibration profile.
type Engine struct {
	cfg      EngineConfig
	cb       Callbacks
	provider SampleProvider
	cues     CuePlayer
	store    CalibrationSaver
	clock    clock.Clock
	logger   *log.Logger
	policy   *ErrorPolicy

	stateEvent    *events.CallbackEvent[AssessmentTrainingState]
	errorEvent    *events.CallbackEvent[AssessmentError]
	completeEvent *events.CallbackEvent[SessionSummary]

	// Session state (protected by mu)
	mu               sync.Mutex
	sessionID        string
	phase            Phase
	pausedFrom       Phase
	active           bool
	paused           bool
	completed        bool
	zoneIdx          int
	startTime        time.Time
	currentTime      time.Time
	endTime          time.Time
	accumulated      time.Duration
	activeSince      time.Time
	zoneStartElapsed time.Duration
	warningFired     bool
	repeatPending    bool
	lastTimestamp    int64
	buffers          []*ZoneDataBuffer
	laps             []ZoneLap
	profile          *UserCalibrationData

	// Timers belong to generation gen. Cancelling bumps gen so a callback
	// that already started running sees it is stale.
	gen             uint64
	warningTimer    clock.Timer
	transitionTimer clock.Timer
	countdownTimer  clock.Timer
	retryTimer      clock.Timer
}

// NewEngine creates an engine. Every callback and dependency is required.
func NewEngine(cfg EngineConfig, cb Callbacks, deps Deps) *Engine {
	if cb.OnZoneChange == nil {
		panic("Engine: OnZoneChange cannot be nil")
	}
	if cb.OnTrainingComplete == nil {
		panic("Engine: OnTrainingComplete cannot be nil")
	}
	if cb.OnError == nil {
		panic("Engine: OnError cannot be nil")
	}
	if deps.Provider == nil {
		panic("Engine: provider cannot be nil")
	}
	if deps.Cues == nil {
		panic("Engine: cues cannot be nil")
	}
	if deps.Store == nil {
		panic("Engine: store cannot be nil")
	}
	if deps.Clock == nil {
		panic("Engine: clock cannot be nil")
	}
	if deps.Logger == nil {
		panic("Engine: logger cannot be nil")
	}
	if len(cfg.Zones) == 0 {
		cfg.Zones = DefaultZones()
	}
	if err := ValidateZones(cfg.Zones); err != nil {
		panic("Engine: " + err.Error())
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	cfg.Zones = append([]TrainingZone(nil), cfg.Zones...)

	e := &Engine{
		cfg:           cfg,
		cb:            cb,
		provider:      deps.Provider,
		cues:          deps.Cues,
		store:         deps.Store,
		clock:         deps.Clock,
		logger:        deps.Logger,
		stateEvent:    events.NewCallbackEvent[AssessmentTrainingState](true),
		errorEvent:    events.NewCallbackEvent[AssessmentError](false),
		completeEvent: events.NewCallbackEvent[SessionSummary](false),
		phase:         PhaseIdle,
		buffers:       NewZoneDataBuffers(cfg.Zones),
	}
	e.policy = NewErrorPolicy(deps.Clock, deps.Cues, deps.Logger, e.reportError)
	return e
}

// Zones returns the zones of this engine.
func (e *Engine) Zones() []TrainingZone {
	return append([]TrainingZone(nil), e.cfg.Zones...)
}

// Policy exposes the error policy, mainly for inspection.
func (e *Engine) Policy() *ErrorPolicy {
	return e.policy
}

// OnStateChange registers a listener for state snapshots. The most recent
// snapshot is replayed to late listeners.
func (e *Engine) OnStateChange(fn func(AssessmentTrainingState)) func() {
	return e.stateEvent.Listen(fn)
}

// OnErrorReported registers an additional listener for reported errors.
func (e *Engine) OnErrorReported(fn func(AssessmentError)) func() {
	return e.errorEvent.Listen(fn)
}

// OnSessionComplete registers a listener called with the summary of every completed session.
func (e *Engine) OnSessionComplete(fn func(SessionSummary)) func() {
	return e.completeEvent.Listen(fn)
}

// actions are side effects collected under the lock and run after it is released.
type actions []func()

func (a *actions) add(fn func()) {
	*a = append(*a, fn)
}

func (a actions) run() {
	for _, fn := range a {
		fn()
	}
}

// StartTraining begins a new session. It is a no-op returning ErrAlreadyActive
// while a session is running.
func (e *Engine) StartTraining() error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		e.logger.Printf("Engine: training is already active")
		return ErrAlreadyActive
	}

	now := e.clock.Now()
	e.cancelTimersLocked()
	e.sessionID = uuid.NewString()
	e.active = true
	e.paused = false
	e.completed = false
	e.zoneIdx = 0
	e.startTime = now
	e.currentTime = now
	e.endTime = time.Time{}
	e.accumulated = 0
	e.activeSince = now
	e.repeatPending = false
	e.lastTimestamp = math.MinInt64
	e.buffers = NewZoneDataBuffers(e.cfg.Zones)
	e.laps = nil
	e.profile = nil

	var acts actions
	acts.add(e.policy.ResetAll)
	acts.add(e.startCollecting)
	e.startZoneLocked(&acts)
	sessionID := e.sessionID
	e.mu.Unlock()

	e.logger.Printf("Engine: session %s started (%d zones, interval %v)", sessionID, len(e.cfg.Zones), e.cfg.SampleInterval)
	acts.run()
	return nil
}

// PauseTraining pauses a running session. It is a no-op when no session is
// active or the session is already paused.
func (e *Engine) PauseTraining() {
	e.mu.Lock()
	if !e.active || e.paused {
		e.mu.Unlock()
		return
	}
	e.pauseLocked(e.clock.Now())
	zoneIdx := e.zoneIdx
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.provider.StopCollecting()
	e.policy.HandleUserInterrupt(zoneIdx, nil)
	e.logger.Printf("Engine: paused in zone %d", zoneIdx)
	e.stateEvent.Notify(state)
}

// ResumeTraining resumes a paused session. A zone flagged for repeat starts
// over; otherwise its timers are re-armed for the remaining time.
func (e *Engine) ResumeTraining() {
	e.mu.Lock()
	if !e.active || !e.paused {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	e.paused = false
	e.activeSince = now
	e.currentTime = now
	zoneIdx := e.zoneIdx

	var acts actions
	acts.add(e.startCollecting)
	acts.add(func() { e.cues.Play(audio.ResumeCue(zoneIdx + 1)) })

	switch {
	case e.repeatPending:
		e.repeatPending = false
		e.logger.Printf("Engine: repeating zone %d", zoneIdx)
		e.startZoneLocked(&acts)
	case e.pausedFrom == PhaseCountdown:
		e.startCountdownLocked(&acts)
		e.notifyStateLocked(&acts)
	default:
		e.phase = PhaseRunning
		remaining := e.cfg.Zones[zoneIdx].Duration - e.elapsedInZoneLocked(now)
		if remaining < 0 {
			remaining = 0
		}
		e.armZoneTimersLocked(remaining)
		e.notifyStateLocked(&acts)
	}
	e.mu.Unlock()

	e.logger.Printf("Engine: resumed in zone %d", zoneIdx)
	acts.run()
}

// StopTraining aborts the session from any state without computing a profile.
func (e *Engine) StopTraining() {
	e.mu.Lock()
	now := e.clock.Now()
	e.cancelTimersLocked()
	if e.active {
		e.accumulated = e.elapsedLocked(now)
		e.closeLapLocked(now, false)
		e.endTime = now
	}
	e.activeSince = time.Time{}
	e.active = false
	e.paused = false
	e.repeatPending = false
	if !e.completed {
		e.phase = PhaseIdle
	}
	state := e.buildStateLocked()
	e.mu.Unlock()

	e.provider.StopCollecting()
	e.logger.Printf("Engine: stopped")
	e.stateEvent.Notify(state)
}

// State returns a snapshot of the current session.
func (e *Engine) State() AssessmentTrainingState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildStateLocked()
}

// Summary returns the session record used for exports.
func (e *Engine) Summary() SessionSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buildSummaryLocked()
}

// LastProfile returns the profile of the most recently completed session.
func (e *Engine) LastProfile() (UserCalibrationData, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return UserCalibrationData{}, false
	}
	return *e.profile, true
}

// --- Private methods: *Locked methods MUST be called with mu held ---

func (e *Engine) startCollecting() {
	if err := e.provider.StartCollecting(e.handleSample, e.handleProviderError, e.cfg.SampleInterval); err != nil {
		e.handleProviderError(fmt.Sprintf("start collecting: %v", err))
	}
}

func (e *Engine) elapsedLocked(now time.Time) time.Duration {
	if e.activeSince.IsZero() {
		return e.accumulated
	}
	return e.accumulated + now.Sub(e.activeSince)
}

func (e *Engine) elapsedInZoneLocked(now time.Time) time.Duration {
	return e.elapsedLocked(now) - e.zoneStartElapsed
}

func (e *Engine) cancelTimersLocked() {
	e.gen++
	for _, t := range []*clock.Timer{&e.warningTimer, &e.transitionTimer, &e.countdownTimer, &e.retryTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
}

func (e *Engine) pauseLocked(now time.Time) {
	e.cancelTimersLocked()
	e.accumulated = e.elapsedLocked(now)
	e.activeSince = time.Time{}
	e.currentTime = now
	e.pausedFrom = e.phase
	e.phase = PhasePaused
	e.paused = true
}

// startZoneLocked begins the current zone from zero.
func (e *Engine) startZoneLocked(acts *actions) {
	now := e.clock.Now()
	zoneIdx := e.zoneIdx
	zone := e.cfg.Zones[zoneIdx]

	e.phase = PhaseRunning
	e.zoneStartElapsed = e.elapsedLocked(now)
	e.warningFired = false
	e.laps = append(e.laps, ZoneLap{ZoneIndex: zoneIdx, Zone: zone, StartTime: now})
	e.armZoneTimersLocked(zone.Duration)

	acts.add(func() {
		e.cues.Play(audio.ZoneStartCue(zone.ID, zone.TargetEffort.Min, zone.TargetEffort.Max))
	})
	acts.add(func() { e.cb.OnZoneChange(zoneIdx) })
	acts.add(func() { e.logger.Printf("Engine: started zone %d (%s, %v)", zoneIdx, zone.Name.DisplayName(), zone.Duration) })
	e.notifyStateLocked(acts)
}

// armZoneTimersLocked schedules the end warning and the transition for a zone
// that has remaining time left.
func (e *Engine) armZoneTimersLocked(remaining time.Duration) {
	gen := e.gen
	hasNext := e.zoneIdx < len(e.cfg.Zones)-1
	if hasNext && !e.warningFired {
		if at := remaining - WarningOffset; at > 0 {
			e.warningTimer = e.clock.AfterFunc(at, func() { e.handleZoneEndWarning(gen) })
		}
	}
	e.transitionTimer = e.clock.AfterFunc(remaining, func() { e.handleZoneTransition(gen) })
}

func (e *Engine) handleZoneEndWarning(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.phase != PhaseRunning || e.warningFired {
		e.mu.Unlock()
		return
	}
	e.warningTimer = nil
	e.warningFired = true
	current := e.cfg.Zones[e.zoneIdx]
	next := e.cfg.Zones[e.zoneIdx+1]
	e.mu.Unlock()

	e.cues.Play(audio.ZoneEndWarningCue(current.ID, next.ID))
}

func (e *Engine) handleZoneTransition(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.phase != PhaseRunning {
		e.mu.Unlock()
		return
	}
	e.transitionTimer = nil
	if e.warningTimer != nil {
		e.warningTimer.Stop()
		e.warningTimer = nil
	}

	now := e.clock.Now()
	e.currentTime = now
	zoneIdx := e.zoneIdx
	zone := e.cfg.Zones[zoneIdx]
	buf := e.buffers[zoneIdx]

	var acts actions
	if !buf.HasSufficientData(zone, e.cfg.SampleInterval) {
		e.closeLapLocked(now, false)
		e.pauseLocked(now)
		e.repeatPending = true
		kept, required := len(buf.Samples), RequiredSamples(zone, e.cfg.SampleInterval)

		acts.add(e.provider.StopCollecting)
		acts.add(func() { e.cues.Play(audio.PauseCue(zoneIdx + 1)) })
		acts.add(func() {
			e.logger.Printf("Engine: zone %d has %d usable samples, %d required", zoneIdx, kept, required)
			e.reportError(AssessmentError{
				Kind:       ErrorKindDataLoss,
				ZoneID:     zoneIdx,
				Message:    fmt.Sprintf("Insufficient data collected for %s zone. Please repeat this zone.", zone.Name.DisplayName()),
				NeedsRetry: true,
			})
		})
		acts.add(func() { e.cues.Play(audio.ErrorCue()) })
		e.notifyStateLocked(&acts)
		e.mu.Unlock()
		acts.run()
		return
	}

	buf.IsValid = true
	e.closeLapLocked(now, true)
	if zoneIdx < len(e.cfg.Zones)-1 {
		e.startCountdownLocked(&acts)
		e.notifyStateLocked(&acts)
	} else {
		e.completeLocked(now, &acts)
	}
	e.mu.Unlock()
	acts.run()
}

// startCountdownLocked speaks 5..0 one second apart and advances to the next
// zone one second after "0". Samples are dropped while it runs.
func (e *Engine) startCountdownLocked(acts *actions) {
	e.phase = PhaseCountdown
	gen := e.gen
	acts.add(func() { e.cues.Play(audio.CountdownCue(audio.CountdownFrom)) })
	e.countdownTimer = e.clock.AfterFunc(countdownStep, func() { e.handleCountdown(gen, audio.CountdownFrom-1) })
}

func (e *Engine) handleCountdown(gen uint64, n int) {
	e.mu.Lock()
	if gen != e.gen || e.phase != PhaseCountdown {
		e.mu.Unlock()
		return
	}

	var acts actions
	if n >= 0 {
		acts.add(func() { e.cues.Play(audio.CountdownCue(n)) })
		e.countdownTimer = e.clock.AfterFunc(countdownStep, func() { e.handleCountdown(gen, n-1) })
	} else {
		e.countdownTimer = nil
		e.zoneIdx++
		e.startZoneLocked(&acts)
	}
	e.mu.Unlock()
	acts.run()
}

func (e *Engine) completeLocked(now time.Time, acts *actions) {
	e.cancelTimersLocked()
	e.accumulated = e.elapsedLocked(now)
	e.activeSince = time.Time{}
	e.active = false
	e.paused = false
	e.completed = true
	e.phase = PhaseCompleted
	e.endTime = now

	buffers := make([]ZoneDataBuffer, len(e.buffers))
	for i, b := range e.buffers {
		buffers[i] = b.Clone()
	}
	profile := BuildProfile(e.cfg.UserID, e.cfg.Zones, buffers, now)
	e.profile = &profile
	summary := e.buildSummaryLocked()

	acts.add(e.provider.StopCollecting)
	acts.add(func() { e.persist(profile) })
	acts.add(func() {
		e.logger.Printf("Engine: session %s completed with %d calibrated zones", summary.ID, len(profile.Zones))
	})
	acts.add(func() { e.cb.OnTrainingComplete(profile) })
	acts.add(func() { e.completeEvent.Notify(summary) })
	e.notifyStateLocked(acts)
}

func (e *Engine) persist(profile UserCalibrationData) {
	if err := ValidateCalibrationData(profile); err != nil {
		e.logger.Printf("Engine: calibration profile failed validation: %v", err)
		if e.cfg.RequireValidProfile {
			e.logger.Printf("Engine: invalid profile not persisted")
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.store.Save(ctx, profile); err != nil {
		e.logger.Printf("Engine: failed to save calibration: %v", err)
		e.reportError(AssessmentError{
			Kind:    ErrorKindDataLoss,
			ZoneID:  -1,
			Message: fmt.Sprintf("Failed to process calibration data: %v", err),
		})
		return
	}
	e.logger.Printf("Engine: calibration saved for user %q", profile.UserID)
}

// handleSample appends a sample to the current zone while the session is
// running. Samples arriving in any other phase are dropped.
func (e *Engine) handleSample(p SpeedDataPoint) {
	e.mu.Lock()
	if !e.active || e.paused || e.phase != PhaseRunning {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	e.currentTime = now
	zoneIdx := e.zoneIdx

	kind, details := classifySample(p, e.lastTimestamp)
	if p.Timestamp > e.lastTimestamp {
		e.lastTimestamp = p.Timestamp
	}
	e.buffers[zoneIdx].Append(p)
	if n := len(e.laps); n > 0 {
		e.laps[n-1].Samples = append(e.laps[n-1].Samples, p)
	}
	e.mu.Unlock()

	if kind != AnomalyNone {
		e.policy.HandleAnomaly(zoneIdx, kind, details, nil)
	}
}

func classifySample(p SpeedDataPoint, lastTimestamp int64) (AnomalyKind, string) {
	switch {
	case math.IsNaN(p.Speed) || math.IsInf(p.Speed, 0) || p.Speed < 0:
		return AnomalySensorMalfunction, fmt.Sprintf("invalid speed reading %v", p.Speed)
	case p.Speed > MaxPlausibleSpeed:
		return AnomalySpeedSpike, fmt.Sprintf("speed %.2f m/s above %.1f m/s", p.Speed, MaxPlausibleSpeed)
	case lastTimestamp != math.MinInt64 && p.Timestamp < lastTimestamp:
		return AnomalyTimestampRegression, fmt.Sprintf("timestamp %d before %d", p.Timestamp, lastTimestamp)
	}
	return AnomalyNone, ""
}

// handleProviderError routes transport failures through the retry policy.
// Once the retry budget is spent the session pauses and the zone must be repeated.
func (e *Engine) handleProviderError(message string) {
	e.mu.Lock()
	if !e.active || e.paused {
		e.mu.Unlock()
		e.logger.Printf("Engine: ignoring provider error while not running: %s", message)
		return
	}
	zoneIdx := e.zoneIdx
	gen := e.gen
	e.mu.Unlock()

	retried := e.policy.HandleDataLoss(zoneIdx, message, func() { e.scheduleRetry(gen) })
	if !retried {
		e.pauseForRepeat(gen)
	}
}

func (e *Engine) scheduleRetry(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen || !e.active || e.paused {
		return
	}
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	e.retryTimer = e.clock.AfterFunc(retryDelay, func() { e.retryCollecting(gen) })
}

func (e *Engine) retryCollecting(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || !e.active || e.paused {
		e.mu.Unlock()
		return
	}
	e.retryTimer = nil
	e.mu.Unlock()

	e.logger.Printf("Engine: restarting sample collection")
	e.provider.StopCollecting()
	e.startCollecting()
}

func (e *Engine) pauseForRepeat(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || !e.active || e.paused {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	zoneIdx := e.zoneIdx
	// During the countdown zoneIdx is the zone that just passed; it stays
	// complete and resuming restarts the countdown.
	inCountdown := e.phase == PhaseCountdown
	if !inCountdown {
		e.closeLapLocked(now, false)
	}
	e.pauseLocked(now)
	e.repeatPending = !inCountdown

	var acts actions
	acts.add(e.provider.StopCollecting)
	acts.add(func() { e.cues.Play(audio.PauseCue(zoneIdx + 1)) })
	e.notifyStateLocked(&acts)
	e.mu.Unlock()

	if inCountdown {
		e.logger.Printf("Engine: paused before zone %d after repeated data loss", zoneIdx+1)
	} else {
		e.logger.Printf("Engine: zone %d paused for repeat after repeated data loss", zoneIdx)
	}
	acts.run()
}

func (e *Engine) reportError(err AssessmentError) {
	e.cb.OnError(err)
	e.errorEvent.Notify(err)
}

func (e *Engine) notifyStateLocked(acts *actions) {
	state := e.buildStateLocked()
	acts.add(func() { e.stateEvent.Notify(state) })
}

func (e *Engine) buildStateLocked() AssessmentTrainingState {
	now := e.clock.Now()
	state := AssessmentTrainingState{
		SessionID:        e.sessionID,
		Phase:            e.phase,
		IsActive:         e.active,
		IsPaused:         e.paused,
		IsCompleted:      e.completed,
		CurrentZoneIndex: e.zoneIdx,
		StartTime:        e.startTime,
		CurrentTime:      e.currentTime,
		ElapsedTime:      e.elapsedLocked(now),
		RepeatPending:    e.repeatPending,
		ZoneBuffers:      make([]ZoneDataBuffer, len(e.buffers)),
	}
	for i, b := range e.buffers {
		state.ZoneBuffers[i] = b.Clone()
	}
	if e.active && e.phase != PhaseCountdown && !e.repeatPending {
		state.ElapsedInZone = e.elapsedInZoneLocked(now)
		state.RemainingInZone = max(0, e.cfg.Zones[e.zoneIdx].Duration-state.ElapsedInZone)
	}
	return state
}
