// Package config loads worker configuration from a TOML file, a .env file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Worker holds the orchestrator knobs. LastN > 0 reprocesses the N most
// recently transcribed episodes instead of selecting new ones.
type Worker struct {
	LookbackHours int    `toml:"lookback_hours"`
	MaxRequests   int    `toml:"max_requests"`
	Concurrency   int    `toml:"concurrency"`
	BatchSize     int    `toml:"batch_size"`
	BatchPauseMs  int    `toml:"batch_pause_ms"`
	UseLock       bool   `toml:"use_lock"`
	LockKey       string `toml:"lock_key"`
	LockBackend   string `toml:"lock_backend"`
	LockDir       string `toml:"lock_dir"`
	LastN         int    `toml:"last_n"`
	BulkOverwrite bool   `toml:"bulk_overwrite"`
	RecordStore   string `toml:"record_store"`
}

// Fallback configures direct audio transcription.
type Fallback struct {
	Enabled       bool     `toml:"enabled"`
	MaxPerRun     int      `toml:"max_per_run"`
	Statuses      []string `toml:"statuses"`
	MaxFileSizeMB int      `toml:"max_file_size_mb"`
}

// Database configures the direct Postgres connection.
type Database struct {
	URL             string `toml:"url"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifeSecs int    `toml:"conn_max_life_seconds"`
}

// Supabase configures the SDK used for storage and the REST record store.
type Supabase struct {
	URL            string `toml:"url"`
	ServiceRoleKey string `toml:"service_role_key"`
	DBPassword     string `toml:"db_password"`
	Bucket         string `toml:"bucket"`
}

// Taddy configures the primary transcript provider.
type Taddy struct {
	BaseURL       string `toml:"base_url"`
	UserID        string `toml:"user_id"`
	APIKey        string `toml:"api_key"`
	Tier          string `toml:"tier"`
	RetryAttempts int    `toml:"retry_attempts"`
}

// Deepgram configures the fallback provider.
type Deepgram struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Mongo configures optional run history. An empty URI disables it.
type Mongo struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the full worker configuration.
type Config struct {
	Worker   Worker   `toml:"worker"`
	Fallback Fallback `toml:"fallback"`
	Database Database `toml:"database"`
	Supabase Supabase `toml:"supabase"`
	Taddy    Taddy    `toml:"taddy"`
	Deepgram Deepgram `toml:"deepgram"`
	Mongo    Mongo    `toml:"mongo"`
	Logging  Logging  `toml:"logging"`
}

// Load reads path (skipped when empty or missing), then .env, then the
// environment. The result is normalized and validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Overwrite reports whether existing transcript rows are patched in place.
// Last-N runs always overwrite: they re-upload every blob, so the rows must
// follow.
func (c *Config) Overwrite() bool {
	return c.Worker.BulkOverwrite || c.Worker.LastN > 0
}

// Lookback returns the episode selection window.
func (c *Config) Lookback() time.Duration {
	return time.Duration(c.Worker.LookbackHours) * time.Hour
}

// BatchPause returns the delay between dispatch batches.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.Worker.BatchPauseMs) * time.Millisecond
}
