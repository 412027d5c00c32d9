package main

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/clock"
)

const (
	// autoResumeDelay leaves room for the pause cue before the zone restarts.
	autoResumeDelay = 5 * time.Second
	// maxAutoResumes bounds automatic resumes within one zone.
	maxAutoResumes = assessment.MaxRetries
)

var errSessionStalled = errors.New("session keeps pausing in the same zone; check the speed source and run again")

type sessionControl interface {
	OnStateChange(fn func(assessment.AssessmentTrainingState)) func()
	ResumeTraining()
}

// sessionWatch follows the engine state for the run command. It reports on
// done when a started session goes idle (stopped), or with errSessionStalled
// when automatic resumes are exhausted. Completion is not reported here.
type sessionWatch struct {
	ctrl       sessionControl
	clk        clock.Clock
	autoResume bool
	logger     *log.Logger
	done       chan error
	unregister func()

	mu         sync.Mutex
	seenActive bool
	finished   bool
	zone       int
	resumes    int
	resumeAt   clock.Timer
}

// watchSession must be called before the session starts. With autoResume set
// every pause is resumed after autoResumeDelay since nothing else can resume it.
func watchSession(ctrl sessionControl, clk clock.Clock, autoResume bool, logger *log.Logger) *sessionWatch {
	w := &sessionWatch{
		ctrl:       ctrl,
		clk:        clk,
		autoResume: autoResume,
		logger:     logger,
		done:       make(chan error, 1),
	}
	w.unregister = ctrl.OnStateChange(w.onState)
	return w
}

// Done delivers nil when the session was stopped, or an error when it stalled.
func (w *sessionWatch) Done() <-chan error {
	return w.done
}

// Close stops watching and cancels a pending resume.
func (w *sessionWatch) Close() {
	w.unregister()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.finished = true
	if w.resumeAt != nil {
		w.resumeAt.Stop()
		w.resumeAt = nil
	}
}

func (w *sessionWatch) onState(s assessment.AssessmentTrainingState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished || s.IsCompleted {
		return
	}
	if !s.IsActive {
		if w.seenActive {
			w.finishLocked(nil)
		}
		return
	}

	w.seenActive = true
	if s.CurrentZoneIndex != w.zone {
		w.zone = s.CurrentZoneIndex
		w.resumes = 0
	}
	if !s.IsPaused || !w.autoResume || w.resumeAt != nil {
		return
	}
	if w.resumes >= maxAutoResumes {
		w.finishLocked(errSessionStalled)
		return
	}
	w.resumes++
	w.logger.Printf("Run: session paused in zone %d, resuming in %v (%d of %d)", s.CurrentZoneIndex, autoResumeDelay, w.resumes, maxAutoResumes)
	w.resumeAt = w.clk.AfterFunc(autoResumeDelay, w.resume)
}

func (w *sessionWatch) resume() {
	w.mu.Lock()
	w.resumeAt = nil
	finished := w.finished
	w.mu.Unlock()
	if !finished {
		w.ctrl.ResumeTraining()
	}
}

func (w *sessionWatch) finishLocked(err error) {
	w.finished = true
	if w.resumeAt != nil {
		w.resumeAt.Stop()
		w.resumeAt = nil
	}
	w.done <- err
}
