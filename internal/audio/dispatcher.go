package audio

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/saraylo/assessment-trainer/internal/clock"
	"github.com/saraylo/assessment-trainer/internal/events"
	"github.com/saraylo/assessment-trainer/internal/go_func_utils"
)

// Speaker turns text into sound. Speak blocks until the utterance has finished
// or ctx is cancelled.
type Speaker interface {
	Speak(ctx context.Context, text string, locale Locale) error
}

// SequenceStep is one cue of a delayed sequence. Delay is relative to the
// previous step.
type SequenceStep struct {
	Cue   Cue
	Delay time.Duration
}

// Dispatcher queues utterances and plays them one at a time in FIFO order.
type Dispatcher struct {
	speaker Speaker
	locale  Locale
	clock   clock.Clock
	logger  *log.Logger

	mu       sync.Mutex
	queue    []string
	muted    bool
	speaking bool
	cancel   context.CancelFunc

	spoken *events.CallbackEvent[string]

	wake         chan struct{}
	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// NewDispatcher creates a Dispatcher and starts its worker goroutine.
func NewDispatcher(speaker Speaker, locale Locale, clk clock.Clock, logger *log.Logger) *Dispatcher {
	if speaker == nil {
		panic("Dispatcher: speaker cannot be nil")
	}
	if clk == nil {
		panic("Dispatcher: clock cannot be nil")
	}
	if logger == nil {
		panic("Dispatcher: logger cannot be nil")
	}

	d := &Dispatcher{
		speaker:  speaker,
		locale:   locale,
		clock:    clk,
		logger:   logger,
		spoken:   events.NewCallbackEvent[string](false),
		wake:     make(chan struct{}, 1),
		doneChan: make(chan struct{}),
	}
	go_func_utils.SafeGoWG(&d.wg, logger, "audio dispatcher", d.run)
	return d
}

// Play renders cue and queues the phrase. Cues that cannot be rendered are dropped.
func (d *Dispatcher) Play(cue Cue) {
	text, ok := Render(cue, d.locale)
	if !ok {
		d.logger.Printf("Dispatcher: nothing to say for %s (zone=%d next=%d seconds=%d)",
			cue.Instruction, cue.Zone, cue.NextZone, cue.Seconds)
		return
	}
	d.Say(text)
}

// Say queues text. While muted the text is discarded.
func (d *Dispatcher) Say(text string) {
	d.mu.Lock()
	if d.muted {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, text)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// PlaySequence schedules cues with cumulative delays on the dispatcher clock.
// The returned function cancels the steps that have not been queued yet.
func (d *Dispatcher) PlaySequence(steps []SequenceStep) func() {
	var delay time.Duration
	timers := make([]clock.Timer, 0, len(steps))
	for _, step := range steps {
		delay += step.Delay
		cue := step.Cue
		timers = append(timers, d.clock.AfterFunc(delay, func() { d.Play(cue) }))
	}
	return func() {
		for _, t := range timers {
			t.Stop()
		}
	}
}

// Mute cancels the utterance in progress, drops the queue and ignores new
// requests until Unmute.
func (d *Dispatcher) Mute() {
	d.mu.Lock()
	d.muted = true
	d.queue = nil
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.logger.Printf("Dispatcher: muted")
}

func (d *Dispatcher) Unmute() {
	d.mu.Lock()
	d.muted = false
	d.mu.Unlock()
	d.logger.Printf("Dispatcher: unmuted")
}

func (d *Dispatcher) IsMuted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.muted
}

// Pending returns the number of queued utterances, including the one being spoken.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.queue)
	if d.speaking {
		n++
	}
	return n
}

// OnSpoken registers a listener called after each utterance completes.
func (d *Dispatcher) OnSpoken(fn func(text string)) func() {
	return d.spoken.Listen(fn)
}

// Shutdown stops the worker, cancelling the utterance in progress.
// Safe to call multiple times.
func (d *Dispatcher) Shutdown() {
	d.shutdownOnce.Do(func() {
		close(d.doneChan)
		d.mu.Lock()
		cancel := d.cancel
		d.queue = nil
		d.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		d.wg.Wait()
		d.logger.Printf("Dispatcher: shutdown complete")
	})
}

func (d *Dispatcher) run() {
	for {
		select {
		case <-d.doneChan:
			return
		case <-d.wake:
		}
		for d.speakNext() {
		}
	}
}

// speakNext plays the head of the queue. It returns false when the queue is
// empty or the dispatcher is shutting down.
func (d *Dispatcher) speakNext() bool {
	select {
	case <-d.doneChan:
		return false
	default:
	}

	d.mu.Lock()
	if len(d.queue) == 0 || d.muted {
		d.mu.Unlock()
		return false
	}
	text := d.queue[0]
	d.queue = d.queue[1:]
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.speaking = true
	d.mu.Unlock()

	err := d.speaker.Speak(ctx, text, d.locale)
	cancel()

	d.mu.Lock()
	d.cancel = nil
	d.speaking = false
	d.mu.Unlock()

	switch {
	case err == nil:
		d.spoken.Notify(text)
	case errors.Is(err, context.Canceled):
		d.logger.Printf("Dispatcher: utterance cancelled: %q", text)
	default:
		d.logger.Printf("Dispatcher: speak failed for %q: %v", text, err)
	}
	return true
}
