package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/storage"
)

// maxSimulatedSpeed leaves room above the plausible band so spikes can be simulated.
const maxSimulatedSpeed = 2 * assessment.MaxPlausibleSpeed

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/ws", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/zones", s.handleZones)
		api.GET("/session", s.handleSession)
		api.POST("/session/start", s.handleStart)
		api.POST("/session/pause", s.handlePause)
		api.POST("/session/resume", s.handleResume)
		api.POST("/session/stop", s.handleStop)
		api.GET("/calibration", s.handleCalibration)
		api.POST("/simulator/speed", s.handleSimulatorSpeed)
	}
}

type zoneView struct {
	assessment.TrainingZone
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

func (s *Server) handleZones(c *gin.Context) {
	zones := s.ctrl.Zones()
	out := make([]zoneView, 0, len(zones))
	for _, z := range zones {
		out = append(out, zoneView{TrainingZone: z, DisplayName: z.Name.DisplayName(), Color: z.Color()})
	}
	c.JSON(http.StatusOK, gin.H{
		"zones":         out,
		"totalDuration": assessment.TotalDuration(zones),
	})
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.State())
}

func (s *Server) handleStart(c *gin.Context) {
	if err := s.ctrl.StartTraining(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, assessment.ErrAlreadyActive) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, s.ctrl.State())
}

func (s *Server) handlePause(c *gin.Context) {
	s.ctrl.PauseTraining()
	c.JSON(http.StatusAccepted, s.ctrl.State())
}

func (s *Server) handleResume(c *gin.Context) {
	s.ctrl.ResumeTraining()
	c.JSON(http.StatusAccepted, s.ctrl.State())
}

func (s *Server) handleStop(c *gin.Context) {
	s.ctrl.StopTraining()
	c.JSON(http.StatusAccepted, s.ctrl.State())
}

func (s *Server) handleCalibration(c *gin.Context) {
	profile, err := s.store.Load(c.Request.Context())
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.logger.Printf("Server: load calibration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"profile": profile, "valid": true}
	if verr := assessment.ValidateCalibrationData(profile); verr != nil {
		resp["valid"] = false
		resp["validationError"] = verr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSimulatorSpeed(c *gin.Context) {
	if s.sim == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "speed source is not simulated"})
		return
	}
	value, err := strconv.ParseFloat(c.Query("value"), 64)
	if err != nil || value < 0 || value > maxSimulatedSpeed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be a speed between 0 and " + strconv.FormatFloat(maxSimulatedSpeed, 'f', -1, 64) + " m/s"})
		return
	}
	s.sim.SetSpeed(value)
	c.JSON(http.StatusOK, gin.H{"speed": s.sim.Speed()})
}
