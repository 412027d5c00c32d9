// Package server exposes a running assessment over HTTP: a small control API
// and a websocket stream of engine events.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/events"
	"github.com/saraylo/assessment-trainer/internal/go_func_utils"
)

// Message is one websocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	MessageState    = "state"
	MessageZone     = "zone"
	MessageError    = "error"
	MessageComplete = "complete"
)

// Controller is the engine surface the server drives.
type Controller interface {
	StartTraining() error
	PauseTraining()
	ResumeTraining()
	StopTraining()
	State() assessment.AssessmentTrainingState
	Zones() []assessment.TrainingZone
	OnStateChange(fn func(assessment.AssessmentTrainingState)) func()
	OnErrorReported(fn func(assessment.AssessmentError)) func()
	OnSessionComplete(fn func(assessment.SessionSummary)) func()
}

// CalibrationLoader reads the persisted profile.
type CalibrationLoader interface {
	Load(ctx context.Context) (assessment.UserCalibrationData, error)
}

// SpeedSetter adjusts a simulated speed source.
type SpeedSetter interface {
	SetSpeed(speed float64)
	Speed() float64
}

// Server serves the control API. Engine events are forwarded to websocket
// clients through a non-blocking channel event.
type Server struct {
	ctrl   Controller
	store  CalibrationLoader
	sim    SpeedSetter
	logger *log.Logger

	router   *gin.Engine
	upgrader websocket.Upgrader
	hub      *events.ChannelEvent[Message]

	unregister []func()
	mu         sync.Mutex
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New creates a server. sim may be nil when the speed source is not simulated.
func New(ctrl Controller, store CalibrationLoader, sim SpeedSetter, logger *log.Logger) *Server {
	if ctrl == nil {
		panic("Server: controller cannot be nil")
	}
	if store == nil {
		panic("Server: store cannot be nil")
	}
	if logger == nil {
		panic("Server: logger cannot be nil")
	}

	s := &Server{
		ctrl:   ctrl,
		store:  store,
		sim:    sim,
		logger: logger,
		hub:    events.NewChannelEvent[Message](false),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.unregister = append(s.unregister,
		ctrl.OnStateChange(func(st assessment.AssessmentTrainingState) {
			s.hub.Notify(Message{Type: MessageState, Data: st})
		}),
		ctrl.OnErrorReported(func(e assessment.AssessmentError) {
			s.hub.Notify(Message{Type: MessageError, Data: e})
		}),
		ctrl.OnSessionComplete(func(summary assessment.SessionSummary) {
			s.hub.Notify(Message{Type: MessageComplete, Data: completePayload(summary)})
		}),
	)

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(requestLogger(logger), gin.Recovery())
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// PublishZone announces a zone change to websocket clients.
func (s *Server) PublishZone(zoneIndex int) {
	zones := s.ctrl.Zones()
	data := gin.H{"index": zoneIndex}
	if zoneIndex >= 0 && zoneIndex < len(zones) {
		data["zone"] = zones[zoneIndex]
	}
	s.hub.Notify(Message{Type: MessageZone, Data: data})
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Printf("Server: listening on %s", ln.Addr())
	go_func_utils.SafeGoWG(&s.wg, s.logger, "http server", func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server: serve error: %v", err)
		}
	})
	return nil
}

// Shutdown stops the listener and detaches from the engine.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, fn := range s.unregister {
		fn()
	}
	s.unregister = nil

	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	s.logger.Printf("Server: stopped")
	return err
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/ws" {
			return
		}
		logger.Printf("Server: %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

func completePayload(summary assessment.SessionSummary) gin.H {
	laps := make([]gin.H, 0, len(summary.Laps))
	for _, lap := range summary.Laps {
		laps = append(laps, gin.H{
			"zoneIndex": lap.ZoneIndex,
			"completed": lap.Completed,
			"samples":   len(lap.Samples),
			"avgSpeed":  lap.AvgSpeed(),
			"maxSpeed":  lap.MaxSpeed(),
		})
	}
	return gin.H{
		"sessionId": summary.ID,
		"completed": summary.Completed,
		"laps":      laps,
		"profile":   summary.Profile,
	}
}
