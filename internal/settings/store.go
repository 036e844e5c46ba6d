// Package settings persists the console's runtime settings: silence rules,
// resolver skip overrides, capacities and the interceptor enable flag.
package settings

import (
	"encoding/json"
	"os"
	"sync"
)

// Settings is the on-disk document. Lists are kept sorted or in insertion
// order by the producing components; this layer only stores them.
type Settings struct {
	Enabled         bool     `json:"enabled"`
	Capacity        int      `json:"capacity"`
	SilenceSources  []string `json:"silence_sources"`
	SilencePrefixes []string `json:"silence_prefixes"`
	SkipSources     []string `json:"skip_sources"`
	SkipPrefixes    []string `json:"skip_prefixes"`
}

// Defaults returns the settings used when no file exists yet.
func Defaults() Settings {
	return Settings{Enabled: true}
}

// Store handles persistence and in-memory management of Settings.
type Store struct {
	filePath string
	mu       sync.RWMutex
	data     Settings
}

// NewStore creates a settings store backed by filePath.
func NewStore(filePath string) *Store {
	return &Store{filePath: filePath, data: Defaults()}
}

// Load reads settings from disk. A missing file leaves the defaults in
// place and is not an error; a corrupt file keeps the defaults and returns
// the unmarshal error so the caller can warn.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	loaded := Defaults()
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return err
	}
	s.data = loaded
	return nil
}

// Save writes the current settings to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

// saveLocked writes atomically: temp file then rename.
func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.data
	out.SilenceSources = append([]string(nil), s.data.SilenceSources...)
	out.SilencePrefixes = append([]string(nil), s.data.SilencePrefixes...)
	out.SkipSources = append([]string(nil), s.data.SkipSources...)
	out.SkipPrefixes = append([]string(nil), s.data.SkipPrefixes...)
	return out
}

// SetEnabled updates the interceptor enable flag.
func (s *Store) SetEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Enabled = enabled
	return s.saveLocked()
}

// SetCapacity updates the per-aggregator capacity. Non-positive values
// mean "use the built-in default".
func (s *Store) SetCapacity(capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Capacity = capacity
	return s.saveLocked()
}

// SetSilenceRules replaces the persisted silence rule lists.
func (s *Store) SetSilenceRules(sources, prefixes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.SilenceSources = append([]string(nil), sources...)
	s.data.SilencePrefixes = append([]string(nil), prefixes...)
	return s.saveLocked()
}

// AddSkipSource appends an exact resolver override if absent.
func (s *Store) AddSkipSource(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, have := range s.data.SkipSources {
		if have == source {
			return nil
		}
	}
	s.data.SkipSources = append(s.data.SkipSources, source)
	return s.saveLocked()
}

// AddSkipPrefix appends a prefix resolver override if absent.
func (s *Store) AddSkipPrefix(prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, have := range s.data.SkipPrefixes {
		if have == prefix {
			return nil
		}
	}
	s.data.SkipPrefixes = append(s.data.SkipPrefixes, prefix)
	return s.saveLocked()
}

// Reset restores defaults and persists them.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = Defaults()
	return s.saveLocked()
}
