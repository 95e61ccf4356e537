// Package config loads pool tunables from YAML with environment variable
// overrides, in the style the teacher codebase uses for its own
// configuration: a plain struct plus a loader, not a framework.
package config

import "taskpool/pkg/helper/errors"

// Config mirrors the pool's watermark/tick/idle-sleep tunables (spec §3, §6).
// LoadFromFile starts from NewDefaultConfig, so fields absent from the YAML
// file and the environment keep their defaults. Fields that are present keep
// the given value even when it is zero; Validate then clamps or rejects it.
type Config struct {
	// Low is the minimum worker count maintained unconditionally.
	Low int `yaml:"low"`
	// High is the absolute worker ceiling, clamped to MaxWorkers.
	High int `yaml:"high"`
	// SupervisorTickUS is the supervisor's sleep between ticks, in
	// microseconds.
	SupervisorTickUS int `yaml:"supervisor_tick_us"`
	// WorkerIdleSleepUS is a worker's sleep when it finds the ready queue
	// empty, in microseconds.
	WorkerIdleSleepUS int `yaml:"worker_idle_sleep_us"`
}

// NewDefaultConfig returns the build-time tunable defaults from spec §6.
func NewDefaultConfig() *Config {
	return &Config{
		Low:               1,
		High:              4,
		SupervisorTickUS:  1000,
		WorkerIdleSleepUS: 10,
	}
}

// Validate clamps High to [1, MaxWorkers] and then clamps Low down to High,
// mirroring the pool facade's SetLow, which never lets low exceed the
// current high. Unlike SetHigh, Validate never raises High to accommodate
// Low: a fully-specified config has no "previous high" to preserve, only
// the two values given, so a Low that conflicts with High yields to it.
// Non-positive tick/sleep durations are rejected outright, since those are
// build-time tunables rather than runtime-adjustable state.
func (c *Config) Validate() error {
	if c.SupervisorTickUS <= 0 {
		return errors.InvalidInputf("supervisor_tick_us must be positive, got %d", c.SupervisorTickUS)
	}
	if c.WorkerIdleSleepUS <= 0 {
		return errors.InvalidInputf("worker_idle_sleep_us must be positive, got %d", c.WorkerIdleSleepUS)
	}
	if c.Low < 0 {
		c.Low = 0
	}
	if c.High < 1 {
		c.High = 1
	}
	const maxWorkers = 30
	if c.High > maxWorkers {
		c.High = maxWorkers
	}
	if c.Low > c.High {
		c.Low = c.High
	}
	return nil
}
