package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/audio"
	"github.com/saraylo/assessment-trainer/internal/bt"
	"github.com/saraylo/assessment-trainer/internal/clock"
	"github.com/saraylo/assessment-trainer/internal/config"
	"github.com/saraylo/assessment-trainer/internal/fitexport"
	"github.com/saraylo/assessment-trainer/internal/location"
	"github.com/saraylo/assessment-trainer/internal/server"
	"github.com/saraylo/assessment-trainer/internal/storage"
	"github.com/saraylo/assessment-trainer/internal/xlsxexport"
)

const speechRate = 160 // words per minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an assessment session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd.Context(), current.cfg, current.logger)
	},
}

// speedSource is the provider plus what the session needs to control and release it.
type speedSource struct {
	provider  assessment.SampleProvider
	simulated *location.SimulatedProvider
	close     func()
}

func buildSpeedSource(cfg *config.Config, clk clock.Clock, logger *log.Logger) (*speedSource, error) {
	kind, err := location.ParseKind(cfg.Provider.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case location.KindReplay:
		points, err := location.LoadTrackFile(cfg.Provider.Replay.File)
		if err != nil {
			return nil, err
		}
		logger.Printf("Run: replaying %d track points from %s", len(points), cfg.Provider.Replay.File)
		return &speedSource{provider: location.NewReplayProvider(points, clk, logger), close: func() {}}, nil

	case location.KindBLE:
		manager := bt.NewBTManager(bluetooth.DefaultAdapter, logger, cfg.Provider.BLE.ScanTimeout)
		if err := manager.Enable(); err != nil {
			// the provider reports the failed scan through the error policy
			logger.Printf("Run: BLE stack unavailable: %v", err)
		}
		p := location.NewBLEProvider(manager, location.BLEOptions{
			Address:     cfg.Provider.BLE.Address,
			ScanTimeout: cfg.Provider.BLE.ScanTimeout,
		}, clk, logger)
		return &speedSource{
			provider: p,
			close: func() {
				if err := p.Close(); err != nil {
					logger.Printf("Run: footpod disconnect failed: %v", err)
				}
				manager.Shutdown()
			},
		}, nil
	}

	sim := location.NewSimulatedProvider(location.SimulatedOptions{
		Speed:   cfg.Provider.Simulated.Speed,
		Jitter:  cfg.Provider.Simulated.Jitter,
		Dropout: cfg.Provider.Simulated.Dropout,
		Seed:    time.Now().UnixNano(),
	}, clk, logger)
	return &speedSource{provider: sim, simulated: sim, close: func() {}}, nil
}

// simulatedZoneSpeed makes the simulated runner speed up with the zone effort.
func simulatedZoneSpeed(base float64, zone assessment.TrainingZone) float64 {
	effort := float64(zone.TargetEffort.Min+zone.TargetEffort.Max) / 2
	return base * (1 + effort/100)
}

func buildSpeaker(cfg *config.Config, logger *log.Logger) audio.Speaker {
	if cfg.Audio.Command != "" {
		s := audio.NewCommandSpeaker(cfg.Audio.Command, speechRate, logger)
		if s.Available() {
			return s
		}
	}
	return audio.NewLogSpeaker(logger)
}

func runSession(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real{}

	source, err := buildSpeedSource(cfg, clk, logger)
	if err != nil {
		return err
	}
	defer source.close()

	store, err := storage.Open(cfg.StorageOptions(), logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	dispatcher := audio.NewDispatcher(buildSpeaker(cfg, logger), audio.ParseLocale(cfg.Locale), clk, logger)
	defer dispatcher.Shutdown()
	if cfg.Audio.Muted {
		dispatcher.Mute()
	}

	zones := cfg.TrainingZones()
	completed := make(chan assessment.UserCalibrationData, 1)
	var srv *server.Server

	engine := assessment.NewEngine(assessment.EngineConfig{
		UserID:              cfg.User.ID,
		Zones:               zones,
		SampleInterval:      cfg.SampleInterval,
		RequireValidProfile: cfg.Calibration.RequireValid,
	}, assessment.Callbacks{
		OnZoneChange: func(zoneIndex int) {
			zone := zones[zoneIndex]
			logger.Printf("Run: zone %d (%s, %s) for %v", zone.ID, zone.Name.DisplayName(), zone.TargetEffort, zone.Duration)
			if source.simulated != nil {
				source.simulated.SetSpeed(simulatedZoneSpeed(cfg.Provider.Simulated.Speed, zone))
			}
			if srv != nil {
				srv.PublishZone(zoneIndex)
			}
		},
		OnTrainingComplete: func(profile assessment.UserCalibrationData) {
			select {
			case completed <- profile:
			default:
			}
		},
		OnError: func(e assessment.AssessmentError) {
			logger.Printf("Run: %v", e)
		},
	}, assessment.Deps{
		Provider: source.provider,
		Cues:     dispatcher,
		Store:    store,
		Clock:    clk,
		Logger:   logger,
	})

	if cfg.Server.Enabled {
		var sim server.SpeedSetter
		if source.simulated != nil {
			sim = source.simulated
		}
		srv = server.New(engine, store, sim, logger)
		if err := srv.Start(cfg.Server.Addr); err != nil {
			return fmt.Errorf("start server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Printf("Run: server shutdown: %v", err)
			}
		}()
	}

	watch := watchSession(engine, clk, !cfg.Server.Enabled, logger)
	defer watch.Close()

	logger.Printf("Run: starting %v assessment for user %q", assessment.TotalDuration(zones), cfg.User.ID)
	if err := engine.StartTraining(); err != nil {
		return err
	}

	var runErr error
	select {
	case profile := <-completed:
		printProfile(os.Stdout, profile)
	case err := <-watch.Done():
		if err != nil {
			engine.StopTraining()
			runErr = err
		} else {
			logger.Printf("Run: session stopped")
		}
	case <-ctx.Done():
		logger.Printf("Run: interrupted, stopping session")
		engine.StopTraining()
	}

	exportSession(cfg, engine.Summary(), logger)
	return runErr
}

func exportSession(cfg *config.Config, summary assessment.SessionSummary, logger *log.Logger) {
	if summary.StartTime.IsZero() {
		return
	}
	if cfg.Export.FitDir != "" {
		if path, err := fitexport.WriteFile(cfg.Export.FitDir, summary); err != nil {
			logger.Printf("Run: FIT export failed: %v", err)
		} else {
			logger.Printf("Run: session exported to %s", path)
		}
	}
	if cfg.Export.XlsxDir != "" {
		if path, err := xlsxexport.WriteFile(cfg.Export.XlsxDir, summary); err != nil {
			logger.Printf("Run: workbook export failed: %v", err)
		} else {
			logger.Printf("Run: workbook written to %s", path)
		}
	}
}
