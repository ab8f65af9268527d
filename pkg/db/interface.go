package db

import (
	"database/sql"
	"errors"
	"time"
)

// DBProvider is an interface for database clients that provide access to a sql.DB handle.
// This allows both PostgresClient and SupabaseClient to back the episode queries,
// the transcript record store and the advisory lock interchangeably.
type DBProvider interface {
	DB() *sql.DB
}

// ErrNoDirectDB is returned when a component needs SQL but the client only has REST access.
var ErrNoDirectDB = errors.New("db: direct database connection is not available")

// PoolConfig holds optional connection pool tuning knobs.
type PoolConfig struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// apply sets every knob that is configured.
func (p PoolConfig) apply(db *sql.DB) {
	if p.MaxOpenConns > 0 {
		db.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns > 0 {
		db.SetMaxIdleConns(p.MaxIdleConns)
	}
	if p.ConnMaxIdle > 0 {
		db.SetConnMaxIdleTime(p.ConnMaxIdle)
	}
	if p.ConnMaxLife > 0 {
		db.SetConnMaxLifetime(p.ConnMaxLife)
	}
}

func sqlDB(p DBProvider) (*sql.DB, error) {
	if p == nil || p.DB() == nil {
		return nil, ErrNoDirectDB
	}
	return p.DB(), nil
}
