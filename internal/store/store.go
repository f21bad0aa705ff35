package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/gnm/internal/dictionary"
)

var (
	// ErrNotFound is returned when the settings file doesn't exist.
	ErrNotFound = errors.New("settings not found")

	// ErrIndexOutOfRange is returned for a local rule index that doesn't exist.
	ErrIndexOutOfRange = errors.New("local rule index out of range")

	// ErrInvalidRule is returned for a local rule without an identifier or
	// nickname.
	ErrInvalidRule = errors.New("local rule needs an identifier and a nickname")
)

// Store holds the settings in memory and writes every change through to
// <dir>/settings.json.
type Store struct {
	mu       sync.RWMutex
	dir      string
	settings Settings
	now      func() time.Time
}

// Open loads the store in dir. A missing settings file yields defaults; it
// is created on the first write.
func Open(dir string) (*Store, error) {
	s := &Store{
		dir:      dir,
		settings: DefaultSettings(),
		now:      time.Now,
	}
	if err := s.Load(); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, SettingsFile)
}

// Load rereads the settings file. ErrNotFound leaves the current settings
// untouched.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := loadSettingsFile(s.Path())
	if err != nil {
		return err
	}
	if loaded == nil {
		return ErrNotFound
	}
	s.settings = *loaded
	return nil
}

// Save writes the current settings.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSettingsFile(s.Path(), &s.settings)
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.clone()
}

// Update applies fn to a copy of the settings and persists the result. If
// fn or the write fails, the in-memory settings are left unchanged.
func (s *Store) Update(fn func(*Settings) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if err := saveSettingsFile(s.Path(), &next); err != nil {
		return err
	}
	s.settings = next
	return nil
}

// SetEnabled flips the master switch.
func (s *Store) SetEnabled(enabled bool) error {
	return s.Update(func(st *Settings) error {
		st.Enabled = enabled
		return nil
	})
}

// SetFeatures replaces the feature flags.
func (s *Store) SetFeatures(f Features) error {
	return s.Update(func(st *Settings) error {
		st.Features = f
		return nil
	})
}

// SetSync changes the remote URL and auto-update flag.
func (s *Store) SetSync(jsonURL string, autoUpdate bool) error {
	return s.Update(func(st *Settings) error {
		st.JSONURL = strings.TrimSpace(jsonURL)
		st.AutoUpdate = autoUpdate
		return nil
	})
}

// SetDevelopers replaces the synced developer list and records when it was
// fetched.
func (s *Store) SetDevelopers(list []dictionary.RawEntry, at time.Time) error {
	return s.Update(func(st *Settings) error {
		st.Developers = append([]dictionary.RawEntry{}, list...)
		st.LastUpdate = at
		return nil
	})
}

// AddLocalRule appends a rule in the legacy field convention.
func (s *Store) AddLocalRule(e dictionary.RawEntry) (LocalRule, error) {
	e = e.Canonical()
	if e.GithubName == "" || e.Nick == "" {
		return LocalRule{}, ErrInvalidRule
	}
	rule := LocalRule{RawEntry: e, CreatedAt: s.now()}
	err := s.Update(func(st *Settings) error {
		st.LocalRules = append(st.LocalRules, rule)
		return nil
	})
	return rule, err
}

// ImportLocalRules appends every valid entry and returns how many were
// added. Invalid entries are skipped.
func (s *Store) ImportLocalRules(entries []dictionary.RawEntry) (int, error) {
	now := s.now()
	var rules []LocalRule
	for _, e := range entries {
		e = e.Canonical()
		if e.GithubName == "" || e.Nick == "" {
			continue
		}
		rules = append(rules, LocalRule{RawEntry: e, CreatedAt: now})
	}
	if len(rules) == 0 {
		return 0, nil
	}
	err := s.Update(func(st *Settings) error {
		st.LocalRules = append(st.LocalRules, rules...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rules), nil
}

// RemoveLocalRule deletes the rule at index.
func (s *Store) RemoveLocalRule(index int) error {
	return s.Update(func(st *Settings) error {
		if index < 0 || index >= len(st.LocalRules) {
			return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
		}
		st.LocalRules = append(st.LocalRules[:index], st.LocalRules[index+1:]...)
		return nil
	})
}

// UpdateLocalRule merges patch into the rule at index: every non-empty
// field of patch overwrites the stored one.
func (s *Store) UpdateLocalRule(index int, patch dictionary.RawEntry) (LocalRule, error) {
	patch = patch.Canonical()
	var updated LocalRule
	err := s.Update(func(st *Settings) error {
		if index < 0 || index >= len(st.LocalRules) {
			return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
		}
		r := st.LocalRules[index]
		if patch.GithubName != "" {
			r.GithubName = patch.GithubName
		}
		if patch.Nick != "" {
			r.Nick = patch.Nick
		}
		if patch.Domain != "" {
			r.Domain = patch.Domain
		}
		if patch.GithubAcc != "" {
			r.GithubAcc = patch.GithubAcc
		}
		r.UpdatedAt = s.now()
		st.LocalRules[index] = r
		updated = r
		return nil
	})
	return updated, err
}

// LocalRules returns a copy of the local rules.
func (s *Store) LocalRules() []LocalRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LocalRule(nil), s.settings.LocalRules...)
}

// ExportLocalRules returns the local rules without timestamps, in the shape
// ImportLocalRules accepts.
func (s *Store) ExportLocalRules() []dictionary.RawEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dictionary.RawEntry, len(s.settings.LocalRules))
	for i, r := range s.settings.LocalRules {
		out[i] = r.RawEntry
	}
	return out
}

// DictionarySource returns synced developers followed by local rules.
func (s *Store) DictionarySource() []dictionary.RawEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.DictionarySource()
}
