package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultParticipants is the group size when neither flag nor file sets one.
const DefaultParticipants = 4

// Settings shape a run without touching the walk itself.
type Settings struct {
	Participants int           `yaml:"np"`
	Seed         *uint64       `yaml:"seed"`
	Deadline     time.Duration `yaml:"-"`
	Sync         bool          `yaml:"sync"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
}

// settingsFile mirrors Settings on disk; durations are written as "30s".
type settingsFile struct {
	Participants int     `yaml:"np"`
	Seed         *uint64 `yaml:"seed"`
	Deadline     string  `yaml:"deadline"`
	Sync         bool    `yaml:"sync"`
	LogLevel     string  `yaml:"log_level"`
	LogFormat    string  `yaml:"log_format"`
}

// DefaultSettings returns the settings used when nothing is configured:
// four participants, wall-clock seeding, no deadline, buffered sends.
func DefaultSettings() Settings {
	return Settings{
		Participants: DefaultParticipants,
		LogLevel:     "warn",
		LogFormat:    "text",
	}
}

// LoadSettings reads a YAML settings file over DefaultSettings.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes YAML settings over DefaultSettings. Keys absent
// from data keep their defaults.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	var f settingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Settings{}, fmt.Errorf("parse settings yaml: %w", err)
	}
	if f.Participants != 0 {
		s.Participants = f.Participants
	}
	if f.Seed != nil {
		seed := *f.Seed
		s.Seed = &seed
	}
	if f.Deadline != "" {
		d, err := time.ParseDuration(f.Deadline)
		if err != nil {
			return Settings{}, fmt.Errorf("parse settings deadline: %w", err)
		}
		s.Deadline = d
	}
	s.Sync = f.Sync
	if f.LogLevel != "" {
		s.LogLevel = f.LogLevel
	}
	if f.LogFormat != "" {
		s.LogFormat = f.LogFormat
	}
	return s, s.Validate()
}

// Validate rejects settings no group can run with.
func (s Settings) Validate() error {
	if s.Participants < 1 {
		return fmt.Errorf("np must be at least 1, got %d", s.Participants)
	}
	if s.Deadline < 0 {
		return fmt.Errorf("deadline must not be negative, got %s", s.Deadline)
	}
	return nil
}
