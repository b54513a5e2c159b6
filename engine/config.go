// Package engine implements the exploration engine: the
// DFS-with-backtracking scheduler that grows an execution one event at a
// time, synchronizes Requests against Sends, and replays prior choices
// to reach new backtracking points.
package engine

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the knobs an exploration run is started with, lifted into
// a TOML-loadable struct the way a BurntSushi/toml-consuming tool
// usually does.
type Config struct {
	// MaxEvents is an event-count limit for a single exploration. The
	// engine does not read it; no exploration is aborted on its account.
	MaxEvents int `toml:"max_events"`

	// MaxInvocations is a limit on the number of explorations. The
	// engine does not read it; startNextExploration does not stop on its
	// account.
	MaxInvocations int `toml:"max_invocations"`

	// SpinBound is the LoopDetector's repeat threshold.
	SpinBound int `toml:"spin_bound"`

	// ReplayLogPath names a file for a failing schedule's ReplayOrder.
	// The engine does not read it and saves nothing there by itself.
	ReplayLogPath string `toml:"replay_log_path"`

	// Verbose is a progress-output switch. The engine does not read it
	// and prints no progress lines.
	Verbose bool `toml:"verbose"`
}

// DefaultConfig returns finite defaults for every limit; of these only
// SpinBound is read by the engine.
func DefaultConfig() Config {
	return Config{
		MaxEvents:      1_000_000,
		MaxInvocations: 10_000,
		SpinBound:      3,
	}
}

// LoadConfig parses a TOML file into a Config, starting from
// DefaultConfig so a partial file only overrides what it mentions.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: loading config %s: %w", path, err)
	}
	return cfg, nil
}
