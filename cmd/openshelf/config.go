// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/openshelf/openshelf/internal/secrets"
	"github.com/openshelf/openshelf/pkg/types"
)

// loadConfig resolves the effective configuration: viper-backed file
// and environment values over built-in defaults, then file-based
// secrets for anything still unset.
func loadConfig() (types.AppConfig, error) {
	setDefaults()

	var cfg types.AppConfig
	if err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}); err != nil {
		return types.AppConfig{}, fmt.Errorf("parsing configuration: %w", err)
	}

	secrets.Apply(loadedSecrets, &cfg)
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("http.timeout", 10*time.Second)
	viper.SetDefault("http.user_agent", "openshelf/"+version)

	viper.SetDefault("search.desired_total", 12)
	viper.SetDefault("search.external_fallback", true)
	viper.SetDefault("search.cover_gap_ratio", 0.4)
	viper.SetDefault("search.cover_gap_max", 10)

	viper.SetDefault("guard.window", 20)
	viper.SetDefault("guard.min_samples", 5)
	viper.SetDefault("guard.failure_ratio", 0.5)
	viper.SetDefault("guard.cooldown", 30*time.Second)
	viper.SetDefault("guard.half_open_probes", 2)
	viper.SetDefault("guard.timeout", 5*time.Second)
	viper.SetDefault("guard.rate", 5.0)
	viper.SetDefault("guard.burst", 5)

	viper.SetDefault("providers.openlibrary.enabled", true)
	viper.SetDefault("providers.openlibrary.cache_size", 256)
	viper.SetDefault("providers.googlebooks.enabled", true)
	viper.SetDefault("providers.googlebooks.cache_size", 256)

	viper.SetDefault("catalog.path", "data/catalog.db")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
}
