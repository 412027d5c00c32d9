// Package xlsxexport writes an assessment session as an Excel workbook: the
// calibrated zones on one sheet and the zone laps on another.
package xlsxexport

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/saraylo/assessment-trainer/internal/assessment"
)

// Sheet names
const (
	SheetCalibration = "Calibration"
	SheetLaps        = "Laps"
)

// FileName returns the export name for a session.
func FileName(sessionID string) string {
	return fmt.Sprintf("assessment-%s.xlsx", sessionID)
}

// WriteFile writes the workbook into dir and returns the file path.
func WriteFile(dir string, summary assessment.SessionSummary) (string, error) {
	if summary.ID == "" {
		return "", errors.New("session has no id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	f, err := Build(summary)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, FileName(summary.ID))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// Write encodes the workbook to w.
func Write(w io.Writer, summary assessment.SessionSummary) error {
	f, err := Build(summary)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// Build creates the workbook. The calibration sheet is empty apart from its
// header when the session did not complete.
func Build(summary assessment.SessionSummary) (*excelize.File, error) {
	if summary.StartTime.IsZero() {
		return nil, errors.New("session was never started")
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetCalibration); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(SheetLaps); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2E75B6"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := writeCalibrationSheet(f, summary, headerStyle); err != nil {
		return nil, fmt.Errorf("calibration sheet: %w", err)
	}
	if err := writeLapsSheet(f, summary, headerStyle); err != nil {
		return nil, fmt.Errorf("laps sheet: %w", err)
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeCalibrationSheet(f *excelize.File, summary assessment.SessionSummary, headerStyle int) error {
	sheet := SheetCalibration
	if err := writeRow(f, sheet, 1, []any{"Zone", "Avg m/s", "Min m/s", "Max m/s"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headerStyle); err != nil {
		return err
	}
	if summary.Profile == nil {
		return nil
	}
	for i, z := range summary.Profile.Zones {
		row := []any{z.Name.DisplayName(), z.AvgSpeed, z.SpeedRange.Min, z.SpeedRange.Max}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "D", 14)
}

func writeLapsSheet(f *excelize.File, summary assessment.SessionSummary, headerStyle int) error {
	sheet := SheetLaps
	header := []any{"Zone", "Start", "Seconds", "Samples", "Avg m/s", "Max m/s", "Completed"}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "G1", headerStyle); err != nil {
		return err
	}
	for i, lap := range summary.Laps {
		row := []any{
			lap.Zone.Name.DisplayName(),
			lap.StartTime.Format("2006-01-02 15:04:05"),
			lap.Duration().Seconds(),
			len(lap.Samples),
			lap.AvgSpeed(),
			lap.MaxSpeed(),
			lap.Completed,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "G", 14)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
