package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/events"
	"github.com/saraylo/assessment-trainer/internal/storage"
)

var discard = log.New(io.Discard, "", 0)

type fakeController struct {
	mu       sync.Mutex
	state    assessment.AssessmentTrainingState
	startErr error
	calls    []string

	stateEvent    *events.CallbackEvent[assessment.AssessmentTrainingState]
	errorEvent    *events.CallbackEvent[assessment.AssessmentError]
	completeEvent *events.CallbackEvent[assessment.SessionSummary]
}

func newFakeController() *fakeController {
	return &fakeController{
		stateEvent:    events.NewCallbackEvent[assessment.AssessmentTrainingState](false),
		errorEvent:    events.NewCallbackEvent[assessment.AssessmentError](false),
		completeEvent: events.NewCallbackEvent[assessment.SessionSummary](false),
	}
}

func (f *fakeController) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeController) StartTraining() error {
	f.record("start")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.state.IsActive = true
	f.state.Phase = assessment.PhaseRunning
	return nil
}

func (f *fakeController) PauseTraining()  { f.record("pause") }
func (f *fakeController) ResumeTraining() { f.record("resume") }
func (f *fakeController) StopTraining()   { f.record("stop") }

func (f *fakeController) State() assessment.AssessmentTrainingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Zones() []assessment.TrainingZone {
	return assessment.DefaultZones()
}

func (f *fakeController) OnStateChange(fn func(assessment.AssessmentTrainingState)) func() {
	return f.stateEvent.Listen(fn)
}

func (f *fakeController) OnErrorReported(fn func(assessment.AssessmentError)) func() {
	return f.errorEvent.Listen(fn)
}

func (f *fakeController) OnSessionComplete(fn func(assessment.SessionSummary)) func() {
	return f.completeEvent.Listen(fn)
}

type fakeStore struct {
	profile assessment.UserCalibrationData
	err     error
}

func (s *fakeStore) Load(context.Context) (assessment.UserCalibrationData, error) {
	return s.profile, s.err
}

type fakeSim struct {
	speed float64
}

func (s *fakeSim) SetSpeed(v float64) { s.speed = v }
func (s *fakeSim) Speed() float64     { return s.speed }

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func TestServer_Zones(t *testing.T) {
	s := New(newFakeController(), &fakeStore{}, nil, discard)

	rec, body := do(t, s.Handler(), http.MethodGet, "/api/zones")
	require.Equal(t, http.StatusOK, rec.Code)
	zones := body["zones"].([]any)
	require.Len(t, zones, 5)
	first := zones[0].(map[string]any)
	assert.Equal(t, "Zone1", first["name"])
	assert.Equal(t, "Blue", first["displayName"])
	assert.NotEmpty(t, first["color"])
	assert.Equal(t, float64(20*time.Minute), body["totalDuration"])
}

func TestServer_SessionControl(t *testing.T) {
	ctrl := newFakeController()
	s := New(ctrl, &fakeStore{}, nil, discard)

	rec, body := do(t, s.Handler(), http.MethodPost, "/api/session/start")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "running", body["phase"])

	for _, action := range []string{"pause", "resume", "stop"} {
		rec, _ = do(t, s.Handler(), http.MethodPost, "/api/session/"+action)
		assert.Equal(t, http.StatusAccepted, rec.Code, action)
	}
	assert.Equal(t, []string{"start", "pause", "resume", "stop"}, ctrl.calls)

	ctrl.startErr = assessment.ErrAlreadyActive
	rec, body = do(t, s.Handler(), http.MethodPost, "/api/session/start")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, body["error"], "already active")

	rec, body = do(t, s.Handler(), http.MethodGet, "/api/session")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["isActive"])
}

func TestServer_Calibration(t *testing.T) {
	s := New(newFakeController(), &fakeStore{err: storage.ErrNotFound}, nil, discard)
	rec, _ := do(t, s.Handler(), http.MethodGet, "/api/calibration")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = New(newFakeController(), &fakeStore{err: errors.New("disk on fire")}, nil, discard)
	rec, _ = do(t, s.Handler(), http.MethodGet, "/api/calibration")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	profile := assessment.UserCalibrationData{UserID: "runner-1", Timestamp: time.Now()}
	s = New(newFakeController(), &fakeStore{profile: profile}, nil, discard)
	rec, body := do(t, s.Handler(), http.MethodGet, "/api/calibration")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["valid"], "a profile without zones fails validation")
	assert.NotEmpty(t, body["validationError"])
	assert.Equal(t, "runner-1", body["profile"].(map[string]any)["userId"])
}

func TestServer_SimulatorSpeed(t *testing.T) {
	s := New(newFakeController(), &fakeStore{}, nil, discard)
	rec, _ := do(t, s.Handler(), http.MethodPost, "/api/simulator/speed?value=3")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sim := &fakeSim{}
	s = New(newFakeController(), &fakeStore{}, sim, discard)
	rec, body := do(t, s.Handler(), http.MethodPost, "/api/simulator/speed?value=3.5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.5, body["speed"])
	assert.Equal(t, 3.5, sim.speed)

	for _, bad := range []string{"", "fast", "-1", "31"} {
		rec, _ = do(t, s.Handler(), http.MethodPost, "/api/simulator/speed?value="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
	assert.Equal(t, 3.5, sim.speed)
}

func TestServer_WebSocketStream(t *testing.T) {
	ctrl := newFakeController()
	s := New(ctrl, &fakeStore{}, nil, discard)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() map[string]any {
		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	// the current snapshot is sent on connect, after the subscription exists
	assert.Equal(t, MessageState, read()["type"])

	s.PublishZone(1)
	msg := read()
	assert.Equal(t, MessageZone, msg["type"])
	assert.Equal(t, float64(1), msg["data"].(map[string]any)["index"])

	ctrl.errorEvent.Notify(assessment.AssessmentError{Kind: assessment.ErrorKindDataLoss, ZoneID: 2, Message: "gps lost", NeedsRetry: true})
	msg = read()
	assert.Equal(t, MessageError, msg["type"])
	assert.Equal(t, "gps lost", msg["data"].(map[string]any)["message"])

	ctrl.completeEvent.Notify(assessment.SessionSummary{ID: "s-1", Completed: true})
	msg = read()
	assert.Equal(t, MessageComplete, msg["type"])
	assert.Equal(t, "s-1", msg["data"].(map[string]any)["sessionId"])

	require.NoError(t, s.Shutdown(context.Background()))
	ctrl.stateEvent.Notify(assessment.AssessmentTrainingState{})
	assert.Equal(t, 0, ctrl.stateEvent.ListenerCount())
}
