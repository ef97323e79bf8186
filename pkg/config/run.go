package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Run parameter bounds and defaults.
const (
	MinSteps                 = 1
	MaxSteps                 = 5
	DefaultSteps             = 3
	DefaultMode              = "host"
	DefaultTimeoutMultiplier = 1.0
)

// RunConfig holds the resolved arguments of one launch. It is built once and passed by value.
type RunConfig struct {
	Target            string
	Mode              string
	VPNFile           string
	HostsFile         string
	Steps             int
	TimeoutMultiplier float64
	Interactive       bool
	ForceBuild        bool
	TestMode          bool
}

// Validate checks the invariants every launch relies on.
func (c RunConfig) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return &ConfigError{Field: "target", Err: errors.New("target is required")}
	}
	if c.Steps < MinSteps || c.Steps > MaxSteps {
		return &ConfigError{
			Field: "steps",
			Value: fmt.Sprint(c.Steps),
			Err:   fmt.Errorf("must be between %d and %d", MinSteps, MaxSteps),
		}
	}
	if math.IsNaN(c.TimeoutMultiplier) || math.IsInf(c.TimeoutMultiplier, 0) || c.TimeoutMultiplier <= 0 {
		return &ConfigError{
			Field: "timeout",
			Value: fmt.Sprint(c.TimeoutMultiplier),
			Err:   errors.New("multiplier must be a positive finite number"),
		}
	}
	return nil
}

// EffectiveMode returns Mode, or DefaultMode when unset.
func (c RunConfig) EffectiveMode() string {
	if c.Mode == "" {
		return DefaultMode
	}
	return c.Mode
}
