package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/storage"
)

var calibrationCmd = &cobra.Command{
	Use:   "calibration",
	Short: "Inspect the stored calibration profile",
}

var calibrationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile(cmd)
		if err != nil {
			return err
		}
		printProfile(cmd.OutOrStdout(), profile)
		return nil
	},
}

var calibrationValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := loadProfile(cmd)
		if err != nil {
			return err
		}
		if err := assessment.ValidateCalibrationData(profile); err != nil {
			return fmt.Errorf("profile is invalid: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "profile is valid")
		return nil
	},
}

var calibrationClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(current.cfg.StorageOptions(), current.logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "calibration cleared")
		return nil
	},
}

func init() {
	calibrationCmd.AddCommand(calibrationShowCmd)
	calibrationCmd.AddCommand(calibrationValidateCmd)
	calibrationCmd.AddCommand(calibrationClearCmd)
}

func loadProfile(cmd *cobra.Command) (assessment.UserCalibrationData, error) {
	store, err := storage.Open(current.cfg.StorageOptions(), current.logger)
	if err != nil {
		return assessment.UserCalibrationData{}, err
	}
	defer store.Close()

	profile, err := store.Load(cmd.Context())
	if errors.Is(err, storage.ErrNotFound) {
		return profile, errors.New("no calibration stored yet; run an assessment first")
	}
	return profile, err
}

func printProfile(out io.Writer, profile assessment.UserCalibrationData) {
	fmt.Fprintf(out, "user %s, calibrated %s\n", profile.UserID, profile.Timestamp.Local().Format("2006-01-02 15:04"))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ZONE\tAVG m/s\tRANGE m/s\tPACE min/km")
	for _, z := range profile.Zones {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f-%.2f\t%s\n", z.Name.DisplayName(), z.AvgSpeed, z.SpeedRange.Min, z.SpeedRange.Max, pace(z.AvgSpeed))
	}
	w.Flush()
	if err := assessment.ValidateCalibrationData(profile); err != nil {
		fmt.Fprintf(out, "warning: %v\n", err)
	}
}

func pace(mps float64) string {
	if mps <= 0 {
		return "-"
	}
	secs := int(1000/mps + 0.5)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
