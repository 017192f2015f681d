// Vedalytics - Client Behavioral Analytics and Personalization Engine
// Copyright 2026 Prakriti Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/prakritilabs/vedalytics

// Package config loads service configuration through koanf: struct
// defaults, then an optional YAML file, then VEDALYTICS_-prefixed
// environment variables, highest priority last.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the analytics engine.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Session   SessionConfig   `koanf:"session"`
	Consent   ConsentConfig   `koanf:"consent"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Retention RetentionConfig `koanf:"retention"`
	ABTests   ABTestsConfig   `koanf:"ab_tests"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StorageConfig holds the durable store location.
type StorageConfig struct {
	// Path is the BadgerDB directory for the durable scope.
	Path string `koanf:"path"`

	// InMemory replaces BadgerDB with the in-memory store. Used by tests
	// and ephemeral deployments.
	InMemory bool `koanf:"in_memory"`
}

// SessionConfig controls visitor session semantics.
type SessionConfig struct {
	// Timeout is the inactivity window after which a session expires.
	Timeout time.Duration `koanf:"timeout"`
}

// ConsentConfig controls the consent schema.
type ConsentConfig struct {
	// Version is the current consent schema version. Stored records with
	// a different version are treated as absent consent.
	Version int `koanf:"version"`
}

// TelemetryConfig configures the external analytics collector sink.
type TelemetryConfig struct {
	Enabled      bool          `koanf:"enabled"`
	CollectorURL string        `koanf:"collector_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

// RetentionConfig controls the governance janitor.
type RetentionConfig struct {
	// CleanupInterval is how often the retention janitor runs.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// AuditLogCap bounds the append-only audit log.
	AuditLogCap int `koanf:"audit_log_cap"`
}

// ABTestsConfig configures the experiment engine.
type ABTestsConfig struct {
	// Seed seeds the weighted-draw source for deterministic bucketing.
	// 0 selects the default seed.
	Seed int64 `koanf:"seed"`

	// Tests declares the experiments and their weighted variants.
	Tests []ABTestConfig `koanf:"tests"`
}

// ABTestConfig declares one A/B test and its weighted variants.
type ABTestConfig struct {
	ID       string          `koanf:"id"`
	Name     string          `koanf:"name"`
	Active   bool            `koanf:"active"`
	Variants []VariantConfig `koanf:"variants"`
}

// VariantConfig declares one variant within an A/B test.
type VariantConfig struct {
	ID     string `koanf:"id"`
	Name   string `koanf:"name"`
	Weight int    `koanf:"weight"`
}

// LoggingConfig mirrors logging.Config for file/env control.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8710,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Storage: StorageConfig{
			Path:     "/data/vedalytics",
			InMemory: false,
		},
		Session: SessionConfig{
			Timeout: 30 * time.Minute,
		},
		Consent: ConsentConfig{
			Version: 1,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			CollectorURL: "",
			Timeout:      5 * time.Second,
		},
		Retention: RetentionConfig{
			CleanupInterval: time.Hour,
			AuditLogCap:     500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path required when not in-memory")
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session.timeout must be positive")
	}
	if c.Consent.Version < 1 {
		return fmt.Errorf("consent.version must be >= 1")
	}
	if c.Telemetry.Enabled && c.Telemetry.CollectorURL == "" {
		return fmt.Errorf("telemetry.collector_url required when telemetry enabled")
	}
	if c.Retention.AuditLogCap <= 0 {
		return fmt.Errorf("retention.audit_log_cap must be positive")
	}
	for _, test := range c.ABTests.Tests {
		if test.ID == "" {
			return fmt.Errorf("ab_tests entry missing id")
		}
		total := 0
		for _, v := range test.Variants {
			if v.ID == "" {
				return fmt.Errorf("ab_tests %s: variant missing id", test.ID)
			}
			if v.Weight < 0 {
				return fmt.Errorf("ab_tests %s: variant %s has negative weight", test.ID, v.ID)
			}
			total += v.Weight
		}
		if len(test.Variants) > 0 && total == 0 {
			return fmt.Errorf("ab_tests %s: total variant weight is zero", test.ID)
		}
	}
	return nil
}
