// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration for both the daemon and the sync tool.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address for the query surface, e.g. ":8080".
	Addr string `koanf:"addr"`

	// MongoURI is the connection string for the document store.
	MongoURI string `koanf:"mongo_uri"`

	// MongoDatabase names the database holding team seasons and players.
	MongoDatabase string `koanf:"mongo_database"`

	// FeedBaseURL is the root of the league feed, e.g. "http://play.esea.net".
	FeedBaseURL string `koanf:"feed_base_url"`

	// FetchTimeoutSeconds bounds a single feed request.
	FetchTimeoutSeconds int `koanf:"fetch_timeout_seconds"`

	// BulkRate is the token refill rate (req/s) for preload runs.
	BulkRate float64 `koanf:"bulk_rate"`

	// IncrementalRate is the token refill rate (req/s) for full and
	// incremental runs.
	IncrementalRate float64 `koanf:"incremental_rate"`

	// FetchConcurrency caps simultaneous outstanding feed requests.
	FetchConcurrency int `koanf:"fetch_concurrency"`

	// StreamConcurrency caps concurrently active record handlers.
	StreamConcurrency int `koanf:"stream_concurrency"`
}

// Option applies a configuration option to a Config.
type Option func(*Config)

// WithAddr overrides the HTTP listen address.
func WithAddr(addr string) Option {
	return func(c *Config) {
		if addr != "" {
			c.Addr = addr
		}
	}
}

// WithMongoURI overrides the document store connection string.
func WithMongoURI(uri string) Option {
	return func(c *Config) {
		if uri != "" {
			c.MongoURI = uri
		}
	}
}

// WithFeedBaseURL overrides the league feed root URL.
func WithFeedBaseURL(u string) Option {
	return func(c *Config) {
		if u != "" {
			c.FeedBaseURL = u
		}
	}
}

// New builds a Config with defaults applied, then options.
func New(opts ...Option) *Config {
	c := &Config{
		LogLevel:            "info",
		Addr:                ":8080",
		MongoURI:            "mongodb://localhost:27017",
		MongoDatabase:       "eseadivisions",
		FeedBaseURL:         "http://play.esea.net",
		FetchTimeoutSeconds: 30,
		BulkRate:            1,
		IncrementalRate:     10,
		FetchConcurrency:    10,
		StreamConcurrency:   10,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
