// Package storage persists the calibration profile produced by a completed
// assessment. Every back-end stores one JSON document under a well-known key
// and validates it against a schema when it is read back.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/saraylo/assessment-trainer/internal/assessment"
)

// CalibrationKey is the key the profile is stored under.
const CalibrationKey = "userCalibrationData"

// ErrNotFound is returned by Load when no profile has been saved.
var ErrNotFound = errors.New("calibration data not found")

// CalibrationStore keeps the most recent calibration profile. Saving
// overwrites the previous profile.
type CalibrationStore interface {
	Save(ctx context.Context, profile assessment.UserCalibrationData) error
	Load(ctx context.Context) (assessment.UserCalibrationData, error)
	Clear(ctx context.Context) error
	Close() error
}

// Kind names a store implementation in configuration.
type Kind string

const (
	KindFile     Kind = "file"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

// Options selects and configures a store.
type Options struct {
	Kind Kind
	Path string // file and sqlite stores
	DSN  string // postgres store
}

// Open creates the store described by opts.
func Open(opts Options, logger *log.Logger) (CalibrationStore, error) {
	switch Kind(strings.ToLower(string(opts.Kind))) {
	case KindFile, "":
		path := opts.Path
		if path == "" {
			p, err := DefaultPath("calibration.json")
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFileStore(path, logger), nil
	case KindSQLite:
		path := opts.Path
		if path == "" {
			p, err := DefaultPath("calibration.db")
			if err != nil {
				return nil, err
			}
			path = p
		}
		return openSQL(DialectSQLite, path, logger)
	case KindPostgres:
		if opts.DSN == "" {
			return nil, errors.New("postgres store requires a DSN")
		}
		return openSQL(DialectPostgres, opts.DSN, logger)
	}
	return nil, fmt.Errorf("unknown storage kind %q", opts.Kind)
}

func openSQL(dialect Dialect, dsn string, logger *log.Logger) (CalibrationStore, error) {
	s, err := OpenSQL(dialect, dsn, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultPath resolves name inside the data directory:
// $XDG_DATA_HOME/assessment-trainer, falling back to ~/.assessment-trainer.
// The directory is created if needed.
func DefaultPath(name string) (string, error) {
	dir := ""
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		dir = filepath.Join(dataHome, "assessment-trainer")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".assessment-trainer")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func encodeProfile(profile assessment.UserCalibrationData) ([]byte, error) {
	if profile.Zones == nil {
		profile.Zones = []assessment.ZoneCalibration{}
	}
	raw, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode calibration: %w", err)
	}
	return raw, nil
}

// decodeProfile validates raw against the profile schema before decoding it.
func decodeProfile(raw []byte) (assessment.UserCalibrationData, error) {
	if err := validateDocument(raw); err != nil {
		return assessment.UserCalibrationData{}, err
	}
	var profile assessment.UserCalibrationData
	if err := json.Unmarshal(raw, &profile); err != nil {
		return assessment.UserCalibrationData{}, fmt.Errorf("decode calibration: %w", err)
	}
	return profile, nil
}
