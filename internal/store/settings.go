package store

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/domain"
)

var allowedThemes = map[string]bool{
	"system": true,
	"dark":   true,
	"light":  true,
}

var allowedPresets = map[string]bool{
	"":         true,
	"network":  true,
	"server":   true,
	"script":   true,
	"hardware": true,
}

// Settings persists one preferences document per owner in a single shared
// JSON file. Every write is a full read-modify-write of that file, so all
// writes funnel through one mutex.
type Settings struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

func NewSettings(dataDir string, logger *slog.Logger) *Settings {
	return &Settings{
		path:   filepath.Join(dataDir, "settings.json"),
		logger: logger,
	}
}

// Get returns the stored document for owner, or the default document if none
// exists. Absence is not an error.
func (s *Settings) Get(owner string) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return domain.Settings{}, err
	}
	if doc, ok := all[owner]; ok {
		return doc, nil
	}
	return domain.DefaultSettings(), nil
}

// Put sanitizes input field by field, merges it over defaults, persists the
// result and returns the canonical stored value. Invalid values are coerced
// to defaults, never rejected.
func (s *Settings) Put(owner string, input domain.SettingsInput) (domain.Settings, error) {
	doc := Sanitize(input)

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return domain.Settings{}, err
	}
	all[owner] = doc

	if err := writeJSONAtomic(s.path, all); err != nil {
		return domain.Settings{}, err
	}

	s.logger.Info("settings saved", slog.String("owner", owner))
	return doc, nil
}

func (s *Settings) load() (map[string]domain.Settings, error) {
	all := make(map[string]domain.Settings)
	if _, err := readJSON(s.path, &all); err != nil {
		return nil, err
	}
	return all, nil
}

// Sanitize maps a partial input onto a fully defaulted document. Fields
// outside their allowed domain fall back to the default value.
func Sanitize(input domain.SettingsInput) domain.Settings {
	doc := domain.DefaultSettings()

	if input.Theme != nil && allowedThemes[*input.Theme] {
		doc.Theme = *input.Theme
	}
	if input.DefaultPreset != nil && allowedPresets[*input.DefaultPreset] {
		doc.DefaultPreset = *input.DefaultPreset
	}
	if input.ExpandOnPreset != nil {
		doc.ExpandOnPreset = *input.ExpandOnPreset
	}
	if input.RememberApproval != nil {
		doc.RememberApproval = *input.RememberApproval
	}
	if input.DefaultApproval != nil {
		doc.DefaultApproval = *input.DefaultApproval
	}

	return doc
}
