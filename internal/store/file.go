package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/standardbeagle/gnm/internal/dictionary"
)

// loadSettingsFile loads settings from disk.
// Returns nil with no error if the file doesn't exist.
func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	// Start from defaults so fields missing from older files keep their
	// default values.
	s := DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if s.Developers == nil {
		s.Developers = []dictionary.RawEntry{}
	}
	if s.LocalRules == nil {
		s.LocalRules = []LocalRule{}
	}
	return &s, nil
}

// saveSettingsFile saves settings to disk atomically.
// Uses temp file + rename pattern to ensure atomic writes.
func saveSettingsFile(path string, s *Settings) error {
	s.Version = FileVersion
	s.UpdatedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up temp file on failure
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
