// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - Loaders accept context.Context as the first parameter.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory trial queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the trial id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ArenaFile points at the YAML arena definition.
	ArenaFile string `koanf:"arena_file"`

	// StorePath is the SQLite report database. Empty keeps reports in memory.
	StorePath string `koanf:"store_path"`

	// MinDwellFrames and MinDwellSeconds suppress entries shorter than the
	// threshold. The stricter one applies.
	MinDwellFrames  int     `koanf:"min_dwell_frames"`
	MinDwellSeconds float64 `koanf:"min_dwell_seconds"`

	// LikelihoodThreshold masks samples with lower tracker confidence.
	LikelihoodThreshold float64 `koanf:"likelihood_threshold"`

	// PrimaryZones lists the transition matrix zones. Empty uses the leaves
	// of the arena's proportional zone tree.
	PrimaryZones []string `koanf:"primary_zones"`

	// BinSeconds adds a time-binned breakdown when > 0.
	BinSeconds float64 `koanf:"bin_seconds"`

	// MaxSamples caps the number of samples per trial.
	MaxSamples int `koanf:"max_samples"`

	// MaxListLimit caps GET /trials?limit.
	MaxListLimit int `koanf:"max_list_limit"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":9080",
		QueueSize:    1_000,
		WorkerCount:  runtime.NumCPU(),
		DedupeSize:   100_000,
		ArenaFile:    "arena.yaml",
		MaxSamples:   2_000_000,
		MaxListLimit: 100,
	}
}
