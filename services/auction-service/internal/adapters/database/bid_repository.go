package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgdb "github.com/floroz/auction-live/pkg/database"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

const bidColumns = `id, auction_id, bidder_id, amount, created_at`

// PostgresBidRepository implements auctions.BidLedger using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid using the provided connection (pool or transaction)
func (r *PostgresBidRepository) SaveBid(ctx context.Context, db pkgdb.DBTX, bid *auctions.Bid) error {
	query := `
		INSERT INTO bids (` + bidColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.Exec(ctx, query,
		bid.ID,
		bid.AuctionID,
		bid.BidderID,
		bid.Amount,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// MaxFor returns the leading bid, or nil when there is none
func (r *PostgresBidRepository) MaxFor(ctx context.Context, auctionID uuid.UUID) (*auctions.Bid, error) {
	return r.maxFor(ctx, r.pool, auctionID)
}

func (r *PostgresBidRepository) maxFor(ctx context.Context, db pkgdb.DBTX, auctionID uuid.UUID) (*auctions.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
		LIMIT 1
	`
	bid, err := scanBid(db.QueryRow(ctx, query, auctionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get max bid: %w", err)
	}
	return bid, nil
}

// ListFor returns an auction's bids, highest first
func (r *PostgresBidRepository) ListFor(ctx context.Context, auctionID uuid.UUID) ([]*auctions.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE auction_id = $1
		ORDER BY amount DESC, created_at ASC
	`
	return r.list(ctx, query, auctionID)
}

// ListByBidder returns a bidder's bids, newest first
func (r *PostgresBidRepository) ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*auctions.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE bidder_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, bidderID)
}

func (r *PostgresBidRepository) list(ctx context.Context, query string, arg uuid.UUID) ([]*auctions.Bid, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	bids := []*auctions.Bid{}
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bids: %w", err)
	}
	return bids, nil
}

func scanBid(row pgx.Row) (*auctions.Bid, error) {
	var bid auctions.Bid
	if err := row.Scan(
		&bid.ID,
		&bid.AuctionID,
		&bid.BidderID,
		&bid.Amount,
		&bid.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &bid, nil
}
