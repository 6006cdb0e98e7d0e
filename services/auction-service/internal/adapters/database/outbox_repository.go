package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/floroz/auction-live/pkg/database"
	pkgevents "github.com/floroz/auction-live/pkg/events"
)

const (
	insertOutboxEventSQL = `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4::outbox_status, $5)`

	// SKIP LOCKED lets a second relay take the next batch instead of waiting
	claimPendingEventsSQL = `
		SELECT id, event_type, payload, status::text AS status, created_at, processed_at
		FROM outbox_events
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markOutboxEventSQL = `
		UPDATE outbox_events
		SET status = $2::outbox_status, processed_at = $3
		WHERE id = $1`
)

// PostgresOutboxRepository stores bid.placed events next to the bids that
// produced them and hands them to the relay.
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// SaveEvent must run on the transaction that commits the bid
func (r *PostgresOutboxRepository) SaveEvent(ctx context.Context, db pkgdb.DBTX, event *pkgevents.OutboxEvent) error {
	if _, err := db.Exec(ctx, insertOutboxEventSQL,
		event.ID, event.EventType, event.Payload, event.Status, event.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to save %s event: %w", event.EventType, err)
	}
	return nil
}

// GetPendingEvents claims up to limit pending events, oldest first, until tx ends
func (r *PostgresOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*pkgevents.OutboxEvent, error) {
	rows, err := tx.Query(ctx, claimPendingEventsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}
	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pkgevents.OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to read pending events: %w", err)
	}
	return events, nil
}

// UpdateEventStatus stamps processed_at once an event leaves the pending states
func (r *PostgresOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, eventID uuid.UUID, status pkgevents.OutboxStatus) error {
	var processedAt *time.Time
	switch status {
	case pkgevents.OutboxStatusPublished, pkgevents.OutboxStatusFailed:
		now := time.Now().UTC()
		processedAt = &now
	}

	tag, err := tx.Exec(ctx, markOutboxEventSQL, eventID, status, processedAt)
	if err != nil {
		return fmt.Errorf("failed to mark event %s %s: %w", eventID, status, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox event %s not found", eventID)
	}
	return nil
}
