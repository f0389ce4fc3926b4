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

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if ESEA_CONFIG is set
//  3. env (prefix ESEA_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("ESEA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: ESEA_ADDR, ESEA_MONGO_URI, ...
	// Map env keys like ESEA_MONGO_URI -> mongo_uri (flat keys).
	envProvider := env.Provider("ESEA_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "esea_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	switch {
	case cfg.Addr == "":
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.MongoURI == "":
		return nil, fmt.Errorf("%w: mongo_uri must not be empty", ErrInvalidConfig)
	case cfg.FeedBaseURL == "":
		return nil, fmt.Errorf("%w: feed_base_url must not be empty", ErrInvalidConfig)
	case cfg.FetchConcurrency < 1:
		return nil, fmt.Errorf("%w: fetch_concurrency must be positive", ErrInvalidConfig)
	case cfg.StreamConcurrency < 1:
		return nil, fmt.Errorf("%w: stream_concurrency must be positive", ErrInvalidConfig)
	case cfg.BulkRate <= 0 || cfg.IncrementalRate <= 0:
		return nil, fmt.Errorf("%w: rates must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
