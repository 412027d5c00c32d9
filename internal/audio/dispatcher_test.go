package audio

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saraylo/assessment-trainer/internal/clock"
)

// gatedSpeaker blocks every utterance until release is signalled, recording
// the order in which utterances started.
type gatedSpeaker struct {
	mu        sync.Mutex
	started   []string
	finished  []string
	active    int
	maxActive int
	release   chan struct{}
}

func newGatedSpeaker() *gatedSpeaker {
	return &gatedSpeaker{release: make(chan struct{}, 16)}
}

func (s *gatedSpeaker) Speak(ctx context.Context, text string, _ Locale) error {
	s.mu.Lock()
	s.started = append(s.started, text)
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.release:
	}

	s.mu.Lock()
	s.finished = append(s.finished, text)
	s.mu.Unlock()
	return nil
}

func (s *gatedSpeaker) snapshot() (started, finished []string, maxActive int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...), append([]string(nil), s.finished...), s.maxActive
}

func newTestDispatcher(t *testing.T, speaker Speaker, clk clock.Clock) *Dispatcher {
	t.Helper()
	d := NewDispatcher(speaker, LocaleRU, clk, log.New(io.Discard, "", 0))
	t.Cleanup(d.Shutdown)
	return d
}

func TestDispatcher_SerializesInFIFOOrder(t *testing.T) {
	speaker := newGatedSpeaker()
	d := newTestDispatcher(t, speaker, clock.Real{})

	d.Say("one")
	d.Say("two")
	d.Say("three")

	require.Eventually(t, func() bool {
		started, _, _ := speaker.snapshot()
		return len(started) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 3, d.Pending())

	for i := 0; i < 3; i++ {
		speaker.release <- struct{}{}
	}

	require.Eventually(t, func() bool {
		_, finished, _ := speaker.snapshot()
		return len(finished) == 3
	}, time.Second, time.Millisecond)

	started, finished, maxActive := speaker.snapshot()
	assert.Equal(t, []string{"one", "two", "three"}, started)
	assert.Equal(t, []string{"one", "two", "three"}, finished)
	assert.Equal(t, 1, maxActive)
}

func TestDispatcher_MuteCancelsAndSuppresses(t *testing.T) {
	speaker := newGatedSpeaker()
	d := newTestDispatcher(t, speaker, clock.Real{})

	d.Say("in flight")
	d.Say("queued")
	require.Eventually(t, func() bool {
		started, _, _ := speaker.snapshot()
		return len(started) == 1
	}, time.Second, time.Millisecond)

	d.Mute()
	assert.True(t, d.IsMuted())
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, time.Millisecond)

	d.Say("ignored while muted")
	assert.Equal(t, 0, d.Pending())

	d.Unmute()
	d.Say("after unmute")
	speaker.release <- struct{}{}
	require.Eventually(t, func() bool {
		_, finished, _ := speaker.snapshot()
		return len(finished) == 1
	}, time.Second, time.Millisecond)

	started, finished, _ := speaker.snapshot()
	assert.Equal(t, []string{"in flight", "after unmute"}, started)
	assert.Equal(t, []string{"after unmute"}, finished)
}

func TestDispatcher_PlayRendersAndDropsInvalid(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	d := newTestDispatcher(t, NewLogSpeaker(logger), clock.Real{})

	var mu sync.Mutex
	var spoken []string
	d.OnSpoken(func(text string) {
		mu.Lock()
		spoken = append(spoken, text)
		mu.Unlock()
	})

	d.Play(CountdownCue(9))
	d.Play(CountdownCue(2))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(spoken) == 1
	}, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"2"}, spoken)
	mu.Unlock()
}

func TestDispatcher_PlaySequence(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	d := newTestDispatcher(t, NewLogSpeaker(log.New(io.Discard, "", 0)), clk)

	var mu sync.Mutex
	var spoken []string
	d.OnSpoken(func(text string) {
		mu.Lock()
		spoken = append(spoken, text)
		mu.Unlock()
	})

	cancel := d.PlaySequence([]SequenceStep{
		{Cue: CountdownCue(2), Delay: time.Second},
		{Cue: CountdownCue(1), Delay: time.Second},
		{Cue: CountdownCue(0), Delay: time.Second},
	})

	clk.Advance(2 * time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(spoken) == 2
	}, time.Second, time.Millisecond)

	cancel()
	clk.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{"2", "1"}, spoken)
	mu.Unlock()
}

func TestCommandSpeaker_MissingBinaryIsNoop(t *testing.T) {
	s := NewCommandSpeaker("definitely-not-a-speech-engine", 0, log.New(io.Discard, "", 0))
	assert.False(t, s.Available())
	assert.NoError(t, s.Speak(context.Background(), "hello", LocaleEN))
}
