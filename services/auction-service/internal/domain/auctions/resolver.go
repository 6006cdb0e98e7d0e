package auctions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Resolver answers whether an auction is open, what its floor price is and
// who leads. It only reads and never takes the per-auction lock, so a call
// racing a commit sees either the state before or after it.
type Resolver struct {
	catalog   AuctionCatalog
	ledger    BidLedger
	directory Directory
	now       func() time.Time
	logger    *slog.Logger
}

// NewResolver creates a new auction state resolver
func NewResolver(catalog AuctionCatalog, ledger BidLedger, directory Directory, opts ...Option) *Resolver {
	cfg := newConfig(opts)
	return &Resolver{
		catalog:   catalog,
		ledger:    ledger,
		directory: directory,
		now:       cfg.now,
		logger:    cfg.logger,
	}
}

// Resolve returns the current state of an auction, including the leader's
// display name
func (r *Resolver) Resolve(ctx context.Context, auctionID uuid.UUID) (*AuctionState, error) {
	state, err := r.resolveState(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if state.Leader != nil {
		state.Leader.BidderName = r.displayName(ctx, state.Leader.BidderID)
	}
	return state, nil
}

// resolveState reads catalog and ledger only. Leader.BidderName stays empty,
// so admission never waits on the directory.
func (r *Resolver) resolveState(ctx context.Context, auctionID uuid.UUID) (*AuctionState, error) {
	meta, err := r.auctionMeta(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	maxBid, err := r.ledger.MaxFor(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read max bid: %w", err)
	}

	state := &AuctionState{
		AuctionID:  meta.ID,
		SellerID:   meta.SellerID,
		Title:      meta.Title,
		Status:     meta.Status,
		IsAuction:  meta.IsAuction,
		HasEnded:   r.now().After(meta.EndAt),
		FloorPrice: meta.BasePrice,
		EndAt:      meta.EndAt,
	}

	if maxBid != nil {
		state.FloorPrice = maxBid.Amount
		state.Leader = &Leader{
			BidderID: maxBid.BidderID,
			Amount:   maxBid.Amount,
			BidTime:  maxBid.CreatedAt,
		}
	}

	return state, nil
}

// EndTime reports when an auction ends without consulting the ledger
func (r *Resolver) EndTime(ctx context.Context, auctionID uuid.UUID) (*EndTime, error) {
	meta, err := r.auctionMeta(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	return &EndTime{
		AuctionID: meta.ID,
		EndAt:     meta.EndAt,
		HasEnded:  r.now().After(meta.EndAt),
	}, nil
}

func (r *Resolver) auctionMeta(ctx context.Context, auctionID uuid.UUID) (*Auction, error) {
	meta, err := r.catalog.GetAuctionMeta(ctx, auctionID)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, ErrAuctionNotFound
		}
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if !meta.IsAuction {
		return nil, ErrNotAnAuction
	}
	return meta, nil
}

// displayName is best effort: names only decorate payloads.
func (r *Resolver) displayName(ctx context.Context, userID uuid.UUID) string {
	if r.directory == nil {
		return ""
	}
	name, err := r.directory.DisplayName(ctx, userID)
	if err != nil {
		r.logger.Warn("Failed to resolve display name", "user_id", userID, "error", err)
		return ""
	}
	return name
}
