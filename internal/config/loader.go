package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	EnvPrefix     = "ZONETRACK_"
	EnvConfigFile = EnvPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if ZONETRACK_CONFIG is set
//  3. env (prefix ZONETRACK_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// ZONETRACK_QUEUE_SIZE -> queue_size (flat keys, underscores kept to
	// match the koanf tags). List values are comma separated.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "config" {
			return "", nil
		}
		if key == "primary_zones" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be > 0", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be > 0", ErrInvalidConfig)
	case c.ArenaFile == "":
		return fmt.Errorf("%w: arena_file must not be empty", ErrInvalidConfig)
	case c.MinDwellFrames < 0 || c.MinDwellSeconds < 0:
		return fmt.Errorf("%w: minimum dwell must not be negative", ErrInvalidConfig)
	case c.LikelihoodThreshold < 0 || c.LikelihoodThreshold > 1:
		return fmt.Errorf("%w: likelihood_threshold must be in [0,1]", ErrInvalidConfig)
	case c.BinSeconds < 0:
		return fmt.Errorf("%w: bin_seconds must not be negative", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.PrimaryZones))
	for _, id := range c.PrimaryZones {
		if seen[id] {
			return fmt.Errorf("%w: primary_zones lists %q more than once", ErrInvalidConfig, id)
		}
		seen[id] = true
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
