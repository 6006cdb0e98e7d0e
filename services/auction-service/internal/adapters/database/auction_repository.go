package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

const auctionColumns = `id, seller_id, title, base_price, quantity, status, is_auction, end_at, created_at, updated_at`

const selectAuction = `
	SELECT id, seller_id, title, base_price, quantity, status::text, is_auction, end_at, created_at, updated_at
	FROM auctions
	WHERE id = $1
`

// PostgresAuctionRepository implements auctions.AuctionCatalog using pgx
type PostgresAuctionRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAuctionRepository creates a new PostgreSQL auction repository
func NewPostgresAuctionRepository(pool *pgxpool.Pool) *PostgresAuctionRepository {
	return &PostgresAuctionRepository{pool: pool}
}

// GetAuctionMeta retrieves an auction's catalog metadata
func (r *PostgresAuctionRepository) GetAuctionMeta(ctx context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	return scanAuction(r.pool.QueryRow(ctx, selectAuction, auctionID))
}

// CreateAuction inserts an auction
func (r *PostgresAuctionRepository) CreateAuction(ctx context.Context, a *auctions.Auction) error {
	query := `
		INSERT INTO auctions (` + auctionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6::auction_status, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.SellerID,
		a.Title,
		a.BasePrice,
		a.Quantity,
		a.Status,
		a.IsAuction,
		a.EndAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert auction: %w", err)
	}
	return nil
}

func scanAuction(row pgx.Row) (*auctions.Auction, error) {
	var a auctions.Auction
	err := row.Scan(
		&a.ID,
		&a.SellerID,
		&a.Title,
		&a.BasePrice,
		&a.Quantity,
		&a.Status,
		&a.IsAuction,
		&a.EndAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	return &a, nil
}
