// Package config holds the walk parameters shared by every participant and
// the optional run settings that shape how a group is formed.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Usage is the diagnostic printed when the positional arguments are wrong.
const Usage = "usage: randomwalk <sim|launch|rank> [--np <num_participants>] <domain_size> <max_steps>"

// WalkConfig is the immutable walk parameters handed to both roles.
type WalkConfig struct {
	DomainSize int `yaml:"domain_size" json:"domain_size"`
	MaxSteps   int `yaml:"max_steps" json:"max_steps"`
}

// Validate checks DomainSize >= 1 and MaxSteps >= 0.
func (c WalkConfig) Validate() error {
	if c.DomainSize < 1 {
		return newConfigurationError("domain_size", strconv.Itoa(c.DomainSize), "must be at least 1")
	}
	if c.MaxSteps < 0 {
		return newConfigurationError("max_steps", strconv.Itoa(c.MaxSteps), "must not be negative")
	}
	return nil
}

// ConfigurationError reports a missing or malformed positional argument.
// Callers should match it with errors.As or IsConfigurationError.
type ConfigurationError struct {
	field  string
	value  string
	reason string
}

func (e *ConfigurationError) Error() string {
	if e.field == "" {
		return e.reason
	}
	return fmt.Sprintf("%s %q: %s", e.field, e.value, e.reason)
}

func newConfigurationError(field, value, reason string) *ConfigurationError {
	return &ConfigurationError{field: field, value: value, reason: reason}
}

// Field names the offending argument, or "" for an arity error.
func (e *ConfigurationError) Field() string { return e.field }

// IsConfigurationError reports whether err is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ParseArgs turns the two positional arguments into a WalkConfig.
// Non-integers are rejected rather than read as zero.
func ParseArgs(args []string) (WalkConfig, error) {
	if len(args) != 2 {
		return WalkConfig{}, newConfigurationError("", "",
			fmt.Sprintf("expected 2 arguments (domain_size max_steps), got %d", len(args)))
	}
	domain, err := parseInt("domain_size", args[0])
	if err != nil {
		return WalkConfig{}, err
	}
	steps, err := parseInt("max_steps", args[1])
	if err != nil {
		return WalkConfig{}, err
	}
	cfg := WalkConfig{DomainSize: domain, MaxSteps: steps}
	if err := cfg.Validate(); err != nil {
		return WalkConfig{}, err
	}
	return cfg, nil
}

func parseInt(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, newConfigurationError(field, s, "not a valid integer")
	}
	return n, nil
}
