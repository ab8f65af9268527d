package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"sync"
)

// AdvisoryLocker takes Postgres session-level advisory locks. A session lock
// belongs to the connection that took it, so each held key pins one pooled
// connection until Release.
type AdvisoryLocker struct {
	db *sql.DB

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

// NewAdvisoryLocker needs a direct SQL connection.
func NewAdvisoryLocker(p DBProvider) (*AdvisoryLocker, error) {
	db, err := sqlDB(p)
	if err != nil {
		return nil, err
	}
	return &AdvisoryLocker{db: db, conns: make(map[string]*sql.Conn)}, nil
}

// TryAcquire takes the lock for key without waiting. It returns false when
// another session holds it.
func (l *AdvisoryLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.conns[key]; held {
		return false, nil
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock %q: get connection: %w", key, err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock(hashtext($1))", key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return false, fmt.Errorf("advisory lock %q: %w", key, err)
	}
	if !acquired {
		_ = conn.Close()
		return false, nil
	}

	l.conns[key] = conn
	return true, nil
}

// Release unlocks key and returns its connection to the pool. Releasing a key
// that is not held is a no-op. When the unlock fails the session is closed
// instead, which drops every lock it still holds.
func (l *AdvisoryLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	conn, ok := l.conns[key]
	delete(l.conns, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	defer conn.Close()

	var released bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", key).Scan(&released); err != nil {
		discardConn(conn)
		return fmt.Errorf("advisory unlock %q: %w", key, err)
	}
	if !released {
		discardConn(conn)
		return fmt.Errorf("advisory unlock %q: lock was not held by this session", key)
	}
	return nil
}

// discardConn ends the session behind conn rather than pooling it.
func discardConn(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
}
