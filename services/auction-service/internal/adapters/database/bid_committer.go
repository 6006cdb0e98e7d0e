package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	pkgdb "github.com/floroz/auction-live/pkg/database"
	pkgevents "github.com/floroz/auction-live/pkg/events"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

// PostgresBidCommitter implements auctions.BidCommitter with the
// transactional outbox pattern: the bid, the new floor price and the
// bid.placed event are written in one transaction.
type PostgresBidCommitter struct {
	txManager  pkgdb.TransactionManager
	bidRepo    *PostgresBidRepository
	outboxRepo *PostgresOutboxRepository
}

func NewPostgresBidCommitter(
	txManager pkgdb.TransactionManager,
	bidRepo *PostgresBidRepository,
	outboxRepo *PostgresOutboxRepository,
) *PostgresBidCommitter {
	return &PostgresBidCommitter{
		txManager:  txManager,
		bidRepo:    bidRepo,
		outboxRepo: outboxRepo,
	}
}

func (c *PostgresBidCommitter) CommitBid(ctx context.Context, bid *auctions.Bid) error {
	err := pkgdb.WithinTx(ctx, c.txManager, func(tx pgx.Tx) error {
		return c.commit(ctx, tx, bid)
	})
	if pkgdb.IsLockTimeout(err) {
		return auctions.ErrBusy
	}
	return err
}

func (c *PostgresBidCommitter) commit(ctx context.Context, tx pgx.Tx, bid *auctions.Bid) error {
	// Lock the auction row so other service instances serialize here too
	var sellerID uuid.UUID
	var title string
	err := tx.QueryRow(ctx,
		`SELECT seller_id, title FROM auctions WHERE id = $1 FOR UPDATE`,
		bid.AuctionID,
	).Scan(&sellerID, &title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auctions.ErrAuctionNotFound
		}
		return fmt.Errorf("failed to lock auction: %w", err)
	}

	leader, err := c.bidRepo.maxFor(ctx, tx, bid.AuctionID)
	if err != nil {
		return err
	}
	if leader != nil && bid.Amount <= leader.Amount {
		return fmt.Errorf("%w: leading bid moved to %d", auctions.ErrBidTooLow, leader.Amount)
	}

	if err := c.bidRepo.SaveBid(ctx, tx, bid); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`UPDATE auctions SET base_price = $2, updated_at = $3 WHERE id = $1`,
		bid.AuctionID, bid.Amount, bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update floor price: %w", err)
	}

	payload, err := auctions.NewBidPlacedEvent(bid, sellerID, title).Marshal()
	if err != nil {
		return err
	}
	return c.outboxRepo.SaveEvent(ctx, tx, pkgevents.NewOutboxEvent(auctions.EventTypeBidPlaced, payload))
}
