package main

import (
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/saraylo/assessment-trainer/internal/config"
	"github.com/saraylo/assessment-trainer/internal/logging"
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	cfg       *config.Config
	logger    *log.Logger
	logCloser io.Closer
}

var (
	configFile string
	current    = &app{}
)

var rootCmd = &cobra.Command{
	Use:           "assessment-trainer",
	Short:         "Five-zone running assessment that calibrates personal speed zones",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := config.BindFlags(v, cmd.Root().PersistentFlags()); err != nil {
			return err
		}
		cfg, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, closer := logging.New(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Stderr:     cfg.Log.Stderr,
		})
		current.cfg = cfg
		current.logger = logger
		current.logCloser = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current.logCloser != nil {
			return current.logCloser.Close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.assessment-trainer/config.yaml)")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(zonesCmd)
	rootCmd.AddCommand(calibrationCmd)
}
