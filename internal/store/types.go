// Package store persists the mapper's settings: the master switch, feature
// flags, remote sync settings, the synced developer list and local rules.
package store

import (
	"time"

	"github.com/standardbeagle/gnm/internal/dictionary"
)

// DefaultDir is the store directory within each project.
const DefaultDir = ".gnm/store"

// SettingsFile is the file name inside the store directory.
const SettingsFile = "settings.json"

// FileVersion is written into every settings file.
const FileVersion = 1

// Features are the individually switchable behaviors.
type Features struct {
	Replace         bool `json:"replace"`
	Highlight       bool `json:"highlight"`
	AvatarHighlight bool `json:"avatar_highlight"`
	Mention         bool `json:"mention"`
}

// LocalRule is a user-maintained dictionary entry. Local rules are appended
// after the synced developers, so they win on identifier collision.
type LocalRule struct {
	dictionary.RawEntry
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Settings is the persisted state.
type Settings struct {
	Version    int                   `json:"version"`
	Enabled    bool                  `json:"enabled"`
	Features   Features              `json:"features"`
	JSONURL    string                `json:"json_url"`
	AutoUpdate bool                  `json:"auto_update"`
	LastUpdate time.Time             `json:"last_update,omitempty"`
	Developers []dictionary.RawEntry `json:"developers"`
	LocalRules []LocalRule           `json:"local_rules"`
	UpdatedAt  string                `json:"updated_at"`
}

// DefaultSettings is what a fresh store starts with.
func DefaultSettings() Settings {
	return Settings{
		Version:    FileVersion,
		Enabled:    true,
		Features:   Features{Replace: true, Highlight: true, AvatarHighlight: true, Mention: true},
		AutoUpdate: true,
		Developers: []dictionary.RawEntry{},
		LocalRules: []LocalRule{},
	}
}

// clone deep-copies the slices so callers can't mutate the store's state.
func (s Settings) clone() Settings {
	out := s
	out.Developers = make([]dictionary.RawEntry, len(s.Developers))
	copy(out.Developers, s.Developers)
	out.LocalRules = make([]LocalRule, len(s.LocalRules))
	copy(out.LocalRules, s.LocalRules)
	return out
}

// DictionarySource returns developers followed by local rules.
func (s Settings) DictionarySource() []dictionary.RawEntry {
	out := make([]dictionary.RawEntry, 0, len(s.Developers)+len(s.LocalRules))
	out = append(out, s.Developers...)
	for _, r := range s.LocalRules {
		out = append(out, r.RawEntry)
	}
	return out
}
