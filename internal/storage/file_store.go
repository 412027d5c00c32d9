package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/saraylo/assessment-trainer/internal/assessment"
)

// FileStore keeps a JSON key-value document on disk.
type FileStore struct {
	filePath string
	logger   *log.Logger
	mu       sync.Mutex
}

func NewFileStore(filePath string, logger *log.Logger) *FileStore {
	if logger == nil {
		panic("FileStore: logger cannot be nil")
	}
	return &FileStore{filePath: filePath, logger: logger}
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.filePath
}

func (s *FileStore) Save(_ context.Context, profile assessment.UserCalibrationData) error {
	raw, err := encodeProfile(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data[CalibrationKey] = raw
	if err := s.save(data); err != nil {
		return err
	}
	s.logger.Printf("FileStore: saved %s for user %q (%d zones)", CalibrationKey, profile.UserID, len(profile.Zones))
	return nil
}

func (s *FileStore) Load(_ context.Context) (assessment.UserCalibrationData, error) {
	s.mu.Lock()
	data, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return assessment.UserCalibrationData{}, err
	}
	raw, ok := data[CalibrationKey]
	if !ok {
		return assessment.UserCalibrationData{}, ErrNotFound
	}
	return decodeProfile(raw)
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := data[CalibrationKey]; !ok {
		return nil
	}
	delete(data, CalibrationKey)
	if err := s.save(data); err != nil {
		return err
	}
	s.logger.Printf("FileStore: cleared %s", CalibrationKey)
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

// load reads the whole document. A missing file is an empty document.
func (s *FileStore) load() (map[string]json.RawMessage, error) {
	data := make(map[string]json.RawMessage)
	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.filePath, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidDocument, s.filePath, err)
	}
	return data, nil
}

// save replaces the document atomically.
func (s *FileStore) save(data map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("replace %s: %w", s.filePath, err)
	}
	return nil
}
