// HerpAtlas - Wildlife Observation Records API
// Copyright 2026 HerpAtlas Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/herpatlas/herpatlas

// Package config provides application configuration loaded via koanf.
//
// Configuration is merged in priority order: struct defaults, then an
// optional YAML config file, then HERPATLAS_-prefixed environment variables.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the HerpAtlas server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Media     MediaConfig     `koanf:"media"`
	Allocator AllocatorConfig `koanf:"allocator"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Debug adds driver-level diagnostics to error responses for every
	// caller, not only privileged ones. Never enable in production.
	Debug bool `koanf:"debug"`

	// RateLimitWrite is the per-IP request budget per minute on write
	// endpoints.
	RateLimitWrite int `koanf:"rate_limit_write"`
}

// DatabaseConfig holds SQLite settings. One database file carries both the
// records table and the content/taxonomy tables.
type DatabaseConfig struct {
	Path          string `koanf:"path"`
	BusyTimeoutMS int    `koanf:"busy_timeout_ms"`
}

// AuthConfig holds JWT auth settings and the replacement-author fallback
// used when a record owner lacks the entry-creation capability.
type AuthConfig struct {
	// JWTSecret signs and verifies HMAC bearer tokens.
	JWTSecret string `koanf:"jwt_secret"`

	// TokenTTL bounds accepted token age.
	TokenTTL time.Duration `koanf:"token_ttl"`

	// ReplacementAuthorID is the user id content entries are created under
	// when the record owner cannot create entries itself. It must hold both
	// the create and edit-others capabilities.
	ReplacementAuthorID int64 `koanf:"replacement_author_id"`
}

// MediaConfig holds voucher file storage settings.
type MediaConfig struct {
	// Driver selects the blob backend: fs, s3 or memory.
	Driver string `koanf:"driver"`

	// Root is the filesystem root for the fs driver.
	Root string `koanf:"root"`

	// Bucket, Region and Endpoint configure the s3 driver.
	Bucket   string `koanf:"bucket"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`

	// Subdirectory is the fixed key prefix voucher files are stored under.
	Subdirectory string `koanf:"subdirectory"`

	// BaseURL prefixes public media URLs.
	BaseURL string `koanf:"base_url"`
}

// AllocatorConfig tunes the namespace id allocator.
type AllocatorConfig struct {
	// LockWait bounds how long an allocation waits for the namespace lock.
	LockWait time.Duration `koanf:"lock_wait"`

	// InsertRetries bounds allocate-and-insert attempts on key collisions.
	InsertRetries int `koanf:"insert_retries"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Debug:           false,
			RateLimitWrite:  60,
		},
		Database: DatabaseConfig{
			Path:          "/data/herpatlas.db",
			BusyTimeoutMS: 5000,
		},
		Auth: AuthConfig{
			JWTSecret:           "",
			TokenTTL:            24 * time.Hour,
			ReplacementAuthorID: 0,
		},
		Media: MediaConfig{
			Driver:       "fs",
			Root:         "/data/media",
			Subdirectory: "vouchers",
			BaseURL:      "/media",
		},
		Allocator: AllocatorConfig{
			LockWait:      5 * time.Second,
			InsertRetries: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks constraints that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	switch c.Media.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("media.driver must be fs, s3 or memory, got %q", c.Media.Driver)
	}
	if c.Media.Driver == "s3" && c.Media.Bucket == "" {
		return fmt.Errorf("media.bucket is required for the s3 driver")
	}
	if c.Allocator.LockWait <= 0 {
		return fmt.Errorf("allocator.lock_wait must be positive")
	}
	if c.Allocator.InsertRetries <= 0 {
		return fmt.Errorf("allocator.insert_retries must be positive")
	}
	return nil
}
