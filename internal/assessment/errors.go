package assessment

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/saraylo/assessment-trainer/internal/audio"
	"github.com/saraylo/assessment-trainer/internal/clock"
)

// ErrorKind classifies errors reported by an assessment session.
type ErrorKind int

const (
	// ErrorKindDataLoss covers sensor or connectivity failures and zones that
	// ended with too few usable samples.
	ErrorKindDataLoss ErrorKind = iota
	// ErrorKindUserInterrupt is an explicit pause by the user.
	ErrorKindUserInterrupt
	// ErrorKindAnomaly is a non-fatal implausible reading.
	ErrorKindAnomaly
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindDataLoss:
		return "DATA_LOSS"
	case ErrorKindUserInterrupt:
		return "USER_INTERRUPT"
	case ErrorKindAnomaly:
		return "ANOMALY"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AnomalyKind narrows an ANOMALY error.
type AnomalyKind int

const (
	AnomalyNone AnomalyKind = iota
	AnomalySpeedSpike
	AnomalySensorMalfunction
	AnomalyTimestampRegression
)

func (k AnomalyKind) String() string {
	switch k {
	case AnomalyNone:
		return ""
	case AnomalySpeedSpike:
		return "SPEED_SPIKE"
	case AnomalySensorMalfunction:
		return "SENSOR_MALFUNCTION"
	case AnomalyTimestampRegression:
		return "TIMESTAMP_REGRESSION"
	}
	return fmt.Sprintf("AnomalyKind(%d)", int(k))
}

func (k AnomalyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// audible anomalies get an error cue.
func (k AnomalyKind) audible() bool {
	return k == AnomalySpeedSpike || k == AnomalySensorMalfunction
}

// AssessmentError is handed to the session's error sink. ZoneID is the
// 0-based zone index, or -1 when the error is not tied to a zone.
type AssessmentError struct {
	Kind       ErrorKind   `json:"type"`
	Anomaly    AnomalyKind `json:"anomaly,omitempty"`
	ZoneID     int         `json:"zoneId"`
	Message    string      `json:"message"`
	NeedsRetry bool        `json:"needsRetry"`
}

func (e AssessmentError) Error() string {
	if e.Anomaly != AnomalyNone {
		return fmt.Sprintf("%s/%s (zone %d): %s", e.Kind, e.Anomaly, e.ZoneID, e.Message)
	}
	return fmt.Sprintf("%s (zone %d): %s", e.Kind, e.ZoneID, e.Message)
}

// Retry policy constants.
const (
	MaxRetries    = 3
	DataLossDecay = 30 * time.Second
	AnomalyDecay  = 60 * time.Second
)

// CuePlayer queues a spoken cue. Implementations must not block.
type CuePlayer interface {
	Play(cue audio.Cue)
}

type errorKey struct {
	kind   ErrorKind
	zoneID int
}

type errorEntry struct {
	count int
	timer clock.Timer
	gen   uint64
}

// ErrorPolicy counts errors per (kind, zone) and bounds automatic retries.
// A counter is cleared when no error of the same key arrives within its decay window.
type ErrorPolicy struct {
	clock  clock.Clock
	cues   CuePlayer
	sink   func(AssessmentError)
	logger *log.Logger

	mu      sync.Mutex
	entries map[errorKey]*errorEntry
	nextGen uint64
}

// NewErrorPolicy creates a policy reporting every handled error to sink.
func NewErrorPolicy(clk clock.Clock, cues CuePlayer, logger *log.Logger, sink func(AssessmentError)) *ErrorPolicy {
	if clk == nil {
		panic("ErrorPolicy: clock cannot be nil")
	}
	if cues == nil {
		panic("ErrorPolicy: cues cannot be nil")
	}
	if logger == nil {
		panic("ErrorPolicy: logger cannot be nil")
	}
	if sink == nil {
		panic("ErrorPolicy: sink cannot be nil")
	}
	return &ErrorPolicy{
		clock:   clk,
		cues:    cues,
		sink:    sink,
		logger:  logger,
		entries: make(map[errorKey]*errorEntry),
	}
}

// HandleDataLoss records a transport failure for zoneID. While fewer than
// MaxRetries failures are on record it plays an error cue, reports a retriable
// error and calls onRetry; it returns true in that case. Otherwise it clears
// the counter, reports needsRetry=false (the zone must be repeated) and returns
// false without calling onRetry.
func (p *ErrorPolicy) HandleDataLoss(zoneID int, message string, onRetry func()) bool {
	attempt, permitted := p.record(errorKey{ErrorKindDataLoss, zoneID}, DataLossDecay, true)

	if !permitted {
		p.logger.Printf("ErrorPolicy: data loss in zone %d, retry budget exhausted: %s", zoneID, message)
		p.sink(AssessmentError{
			Kind:       ErrorKindDataLoss,
			ZoneID:     zoneID,
			Message:    fmt.Sprintf("%s: retry limit reached, repeat this zone", message),
			NeedsRetry: false,
		})
		return false
	}

	p.logger.Printf("ErrorPolicy: data loss in zone %d, retry %d of %d: %s", zoneID, attempt, MaxRetries, message)
	p.cues.Play(audio.ErrorCue())
	p.sink(AssessmentError{
		Kind:       ErrorKindDataLoss,
		ZoneID:     zoneID,
		Message:    fmt.Sprintf("%s (attempt %d of %d)", message, attempt, MaxRetries),
		NeedsRetry: true,
	})
	if onRetry != nil {
		onRetry()
	}
	return true
}

// HandleUserInterrupt plays the pause cue, reports a USER_INTERRUPT and calls
// onHandle. Interrupts are never counted.
func (p *ErrorPolicy) HandleUserInterrupt(zoneID int, onHandle func()) {
	p.logger.Printf("ErrorPolicy: user interrupt in zone %d", zoneID)
	p.cues.Play(audio.PauseCue(zoneID + 1))
	p.sink(AssessmentError{
		Kind:    ErrorKindUserInterrupt,
		ZoneID:  zoneID,
		Message: "Training paused by user",
	})
	if onHandle != nil {
		onHandle()
	}
}

// HandleAnomaly records an anomaly for zoneID and always calls onHandle. The
// reported error has NeedsRetry set while the count is under MaxRetries.
func (p *ErrorPolicy) HandleAnomaly(zoneID int, kind AnomalyKind, details string, onHandle func()) {
	attempt, underLimit := p.record(errorKey{ErrorKindAnomaly, zoneID}, AnomalyDecay, false)

	p.logger.Printf("ErrorPolicy: anomaly %s in zone %d (count %d): %s", kind, zoneID, attempt, details)
	if underLimit && kind.audible() {
		p.cues.Play(audio.ErrorCue())
	}
	p.sink(AssessmentError{
		Kind:       ErrorKindAnomaly,
		Anomaly:    kind,
		ZoneID:     zoneID,
		Message:    details,
		NeedsRetry: underLimit,
	})
	if onHandle != nil {
		onHandle()
	}
}

// ResetErrors clears counters for one zone, or every counter when zoneID is nil.
func (p *ErrorPolicy) ResetErrors(zoneID *int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, entry := range p.entries {
		if zoneID != nil && key.zoneID != *zoneID {
			continue
		}
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(p.entries, key)
	}
}

// ResetAll clears every counter.
func (p *ErrorPolicy) ResetAll() {
	p.ResetErrors(nil)
}

// ErrorCount returns the current count for kind in zoneID.
func (p *ErrorPolicy) ErrorCount(kind ErrorKind, zoneID int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.entries[errorKey{kind, zoneID}]; ok {
		return entry.count
	}
	return 0
}

// record checks the count before incrementing. Under the limit it increments
// and re-arms the decay timer. At the limit it clears the entry when
// clearOnLimit is set; otherwise it keeps counting so the key stays over the
// limit until a full decay window passes without errors.
func (p *ErrorPolicy) record(key errorKey, decay time.Duration, clearOnLimit bool) (attempt int, permitted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		entry = &errorEntry{}
		p.entries[key] = entry
	}
	if entry.timer != nil {
		entry.timer.Stop()
		entry.timer = nil
	}

	permitted = entry.count < MaxRetries
	if !permitted && clearOnLimit {
		attempt = entry.count + 1
		delete(p.entries, key)
		return attempt, false
	}

	entry.count++
	p.nextGen++
	gen := p.nextGen
	entry.gen = gen
	entry.timer = p.clock.AfterFunc(decay, func() { p.decay(key, gen) })
	return entry.count, permitted
}

func (p *ErrorPolicy) decay(key errorKey, gen uint64) {
	p.mu.Lock()
	entry, ok := p.entries[key]
	if !ok || entry.gen != gen {
		p.mu.Unlock()
		return
	}
	delete(p.entries, key)
	p.mu.Unlock()
	p.logger.Printf("ErrorPolicy: %s counter for zone %d reset after quiet period", key.kind, key.zoneID)
}
