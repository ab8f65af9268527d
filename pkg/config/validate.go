package config

import (
	"errors"
	"fmt"
	"strings"

	"podnotes/pkg/domain"
)

const (
	LockBackendPostgres = "postgres"
	LockBackendFile     = "file"

	RecordStoreSQL  = "sql"
	RecordStoreREST = "rest"
)

func (c *Config) normalize() {
	c.Worker.LockBackend = strings.ToLower(strings.TrimSpace(c.Worker.LockBackend))
	c.Worker.RecordStore = strings.ToLower(strings.TrimSpace(c.Worker.RecordStore))
	c.Taddy.Tier = strings.ToLower(strings.TrimSpace(c.Taddy.Tier))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Supabase.URL), "/")

	statuses := make([]string, 0, len(c.Fallback.Statuses))
	for _, s := range c.Fallback.Statuses {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			statuses = append(statuses, s)
		}
	}
	c.Fallback.Statuses = statuses

	if c.Worker.BatchPauseMs < 0 {
		c.Worker.BatchPauseMs = 0
	}
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateFallback(); err != nil {
		return err
	}
	return c.validateBackends()
}

func (c *Config) validateWorker() error {
	w := c.Worker
	switch {
	case w.LookbackHours <= 0:
		return errors.New("worker.lookback_hours must be positive")
	case w.MaxRequests <= 0:
		return errors.New("worker.max_requests must be positive")
	case w.Concurrency <= 0:
		return errors.New("worker.concurrency must be positive")
	case w.BatchSize <= 0:
		return errors.New("worker.batch_size must be positive")
	case w.LastN < 0:
		return errors.New("worker.last_n must not be negative")
	case w.UseLock && strings.TrimSpace(w.LockKey) == "":
		return errors.New("worker.lock_key is required when locking is enabled")
	}
	return nil
}

func (c *Config) validateFallback() error {
	if c.Fallback.MaxFileSizeMB <= 0 {
		return errors.New("fallback.max_file_size_mb must be positive")
	}
	for _, s := range c.Fallback.Statuses {
		if _, err := domain.ParseKind(s); err != nil {
			return fmt.Errorf("fallback.statuses: %w", err)
		}
	}
	return nil
}

func (c *Config) validateBackends() error {
	switch c.Worker.LockBackend {
	case LockBackendPostgres:
	case LockBackendFile:
		if strings.TrimSpace(c.Worker.LockDir) == "" {
			return errors.New("worker.lock_dir is required for the file lock backend")
		}
	default:
		return fmt.Errorf("worker.lock_backend: unsupported value %q", c.Worker.LockBackend)
	}

	switch c.Worker.RecordStore {
	case RecordStoreSQL, RecordStoreREST:
	default:
		return fmt.Errorf("worker.record_store: unsupported value %q", c.Worker.RecordStore)
	}

	switch c.Taddy.Tier {
	case "free", "business":
	default:
		return fmt.Errorf("taddy.tier: unsupported value %q", c.Taddy.Tier)
	}
	return nil
}

// FallbackKinds returns the configured fallback statuses as kinds. It assumes
// Validate has passed.
func (c *Config) FallbackKinds() []domain.Kind {
	kinds := make([]domain.Kind, 0, len(c.Fallback.Statuses))
	for _, s := range c.Fallback.Statuses {
		kinds = append(kinds, domain.Kind(s))
	}
	return kinds
}
