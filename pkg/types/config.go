// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "openshelf/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the search coordinator.
type SearchConfig struct {
	// DesiredTotal is the number of results one page aims to return
	// (default 12).
	DesiredTotal int `json:"desired_total" yaml:"desired_total"`

	// ExternalFallback enables the background provider fan-out when the
	// local catalog cannot fill a page on its own.
	ExternalFallback bool `json:"external_fallback" yaml:"external_fallback"`

	// CoverGapRatio is the fraction of first-page results without a
	// usable cover above which an augmentation pass is issued even when
	// the page is numerically full (default 0.4).
	CoverGapRatio float64 `json:"cover_gap_ratio" yaml:"cover_gap_ratio"`

	// CoverGapMax caps how many extra candidates a cover-quality
	// augmentation pass may fetch, independent of the numeric gap
	// (default 10).
	CoverGapMax int `json:"cover_gap_max" yaml:"cover_gap_max"`
}

// GuardConfig holds the resilience policy applied to every
// (provider, tier) call path. All values are operational tuning, not
// structural contract, and load from configuration.
type GuardConfig struct {
	// Window is the number of recent call outcomes the circuit breaker
	// evaluates (default 20).
	Window int `json:"window" yaml:"window"`

	// MinSamples is the minimum number of outcomes in the window before
	// the failure ratio is considered meaningful (default 5).
	MinSamples int `json:"min_samples" yaml:"min_samples"`

	// FailureRatio opens the circuit when the rolling failure ratio
	// reaches it (default 0.5).
	FailureRatio float64 `json:"failure_ratio" yaml:"failure_ratio"`

	// Cooldown is how long an open circuit rejects calls before probing
	// (default 30s).
	Cooldown time.Duration `json:"cooldown" yaml:"cooldown"`

	// HalfOpenProbes is the number of trial calls allowed while
	// half-open (default 2).
	HalfOpenProbes int `json:"half_open_probes" yaml:"half_open_probes"`

	// Timeout is the hard per-call deadline (default 5s). A timeout
	// counts as a circuit failure.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Rate is the token-bucket refill rate in calls per second.
	// Zero disables rate limiting.
	Rate float64 `json:"rate" yaml:"rate"`

	// Burst is the token-bucket capacity (default 5).
	Burst int `json:"burst" yaml:"burst"`

	// Bypass disables rate limiting and circuit breaking for operational
	// testing. Never enabled by default.
	Bypass bool `json:"bypass" yaml:"bypass"`
}

// ProviderConfig holds per-provider settings.
type ProviderConfig struct {
	// Enabled controls whether the provider participates in fan-out.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// APIKey authenticates the provider's primary call tier. Empty
	// means only the unauthenticated tier is available.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// CacheSize bounds the in-memory response cache (default 256
	// entries).
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// CatalogConfig holds settings for the local catalog store.
type CatalogConfig struct {
	// Path is the SQLite database location (default "data/catalog.db").
	Path string `json:"path" yaml:"path"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown (default 10s).
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// AppConfig groups all component configurations.
type AppConfig struct {
	HTTP      HTTPConfig                `json:"http" yaml:"http"`
	Search    SearchConfig              `json:"search" yaml:"search"`
	Guard     GuardConfig               `json:"guard" yaml:"guard"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Catalog   CatalogConfig             `json:"catalog" yaml:"catalog"`
	Server    ServerConfig              `json:"server" yaml:"server"`
}
