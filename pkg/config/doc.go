// Package config loads typed configuration structs from environment
// variables.
//
// Each configuration type is parsed once per process and cached, so every
// component asking for the same Config struct sees the same values. A .env
// file in the working directory is loaded on first use when present, which
// keeps local development friction-free without affecting deployments.
//
// Usage:
//
//	type HubConfig struct {
//	    PingInterval time.Duration `env:"HUB_PING_INTERVAL" envDefault:"30s"`
//	}
//
//	var cfg HubConfig
//	config.MustLoad(&cfg)
package config
