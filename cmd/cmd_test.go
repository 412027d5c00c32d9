package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saraylo/assessment-trainer/internal/assessment"
	"github.com/saraylo/assessment-trainer/internal/storage"
)

func TestPace(t *testing.T) {
	assert.Equal(t, "5:00", pace(1000.0/300))
	assert.Equal(t, "4:10", pace(4))
	assert.Equal(t, "-", pace(0))
}

func TestSimulatedZoneSpeed_GrowsWithEffort(t *testing.T) {
	zones := assessment.DefaultZones()
	prev := 0.0
	for _, z := range zones {
		v := simulatedZoneSpeed(2.5, z)
		assert.Greater(t, v, prev, z.Name.String())
		prev = v
	}
	assert.InDelta(t, 2.5*1.15, simulatedZoneSpeed(2.5, zones[0]), 1e-9)
}

func TestPrintZones(t *testing.T) {
	var buf bytes.Buffer
	printZones(&buf, assessment.DefaultZones())
	out := buf.String()
	assert.Contains(t, out, "Blue")
	assert.Contains(t, out, "76-100%")
	assert.Contains(t, out, "20m0s")
}

func TestPrintProfile_WarnsOnInvalid(t *testing.T) {
	var buf bytes.Buffer
	printProfile(&buf, assessment.UserCalibrationData{UserID: "runner-1", Timestamp: time.Now()})
	assert.Contains(t, buf.String(), "user runner-1")
	assert.Contains(t, buf.String(), "warning:")
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--log-file", ""))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func validProfile() assessment.UserCalibrationData {
	profile := assessment.UserCalibrationData{
		UserID:    "runner-1",
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	for i, info := range assessment.AllZoneNames {
		avg := 2.0 + 0.5*float64(i)
		profile.Zones = append(profile.Zones, assessment.ZoneCalibration{
			Name:       info.Name,
			AvgSpeed:   avg,
			SpeedRange: assessment.CalculateSpeedRange(avg),
		})
	}
	return profile
}

func TestZonesCommand_AppliesTimeScale(t *testing.T) {
	out, err := runCLI(t, "zones", "--time-scale", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "ZONE")
	assert.Contains(t, out, "Blue")
	assert.Contains(t, out, "10m0s")
}

func TestCalibrationCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")

	_, err := runCLI(t, "calibration", "show", "--storage", "file", "--storage-path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no calibration stored yet")

	store := storage.NewFileStore(path, log.New(io.Discard, "", 0))
	require.NoError(t, store.Save(context.Background(), validProfile()))

	out, err := runCLI(t, "calibration", "show", "--storage", "file", "--storage-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "user runner-1")
	assert.Contains(t, out, "AVG m/s")
	assert.NotContains(t, out, "warning:")

	out, err = runCLI(t, "calibration", "validate", "--storage", "file", "--storage-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "profile is valid")

	out, err = runCLI(t, "calibration", "clear", "--storage", "file", "--storage-path", path)
	require.NoError(t, err)
	assert.Contains(t, out, "calibration cleared")

	_, err = runCLI(t, "calibration", "validate", "--storage", "file", "--storage-path", path)
	assert.Error(t, err)
}

func TestCalibrationValidate_RejectsIncompleteProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	profile := validProfile()
	profile.Zones = profile.Zones[:3]
	store := storage.NewFileStore(path, log.New(io.Discard, "", 0))
	require.NoError(t, store.Save(context.Background(), profile))

	_, err := runCLI(t, "calibration", "validate", "--storage", "file", "--storage-path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile is invalid")
}
