package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned for unknown user ids
var ErrUserNotFound = errors.New("user not found")

// PostgresUserDirectory implements auctions.Directory over the users table
type PostgresUserDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresUserDirectory(pool *pgxpool.Pool) *PostgresUserDirectory {
	return &PostgresUserDirectory{pool: pool}
}

func (d *PostgresUserDirectory) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	var name string
	err := d.pool.QueryRow(ctx, `SELECT display_name FROM users WHERE id = $1`, userID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return name, nil
}

// UpsertUser stores or renames a user
func (d *PostgresUserDirectory) UpsertUser(ctx context.Context, userID uuid.UUID, name string) error {
	query := `
		INSERT INTO users (id, display_name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
	`
	if _, err := d.pool.Exec(ctx, query, userID, name); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
