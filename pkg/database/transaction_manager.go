package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TransactionManager starts transactions for repositories that need them
type TransactionManager interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
}

// lockNotAvailable is the SQLSTATE raised when lock_timeout expires
const lockNotAvailable = "55P03"

// IsLockTimeout reports whether err was caused by lock_timeout expiring
func IsLockTimeout(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable
}

// WithinTx runs fn inside a transaction from tm. The transaction commits
// when fn returns nil and rolls back otherwise.
func WithinTx(ctx context.Context, tm TransactionManager, fn func(tx pgx.Tx) error) error {
	tx, err := tm.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PostgresTransactionManager begins pgx transactions bounded by lock_timeout
type PostgresTransactionManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresTransactionManager returns a manager whose transactions give up
// waiting for row locks after lockTimeout. Zero leaves the server default.
func NewPostgresTransactionManager(pool *pgxpool.Pool, lockTimeout time.Duration) *PostgresTransactionManager {
	return &PostgresTransactionManager{
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

func (m *PostgresTransactionManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if m.lockTimeout <= 0 {
		return tx, nil
	}

	// set_config with is_local=true scopes the setting to this transaction
	timeout := fmt.Sprintf("%dms", m.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", timeout); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return tx, nil
}
