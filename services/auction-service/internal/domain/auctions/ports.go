package auctions

import (
	"context"

	"github.com/google/uuid"
)

// AuctionCatalog is the product-management collaborator
type AuctionCatalog interface {
	// GetAuctionMeta returns ErrAuctionNotFound for unknown ids
	GetAuctionMeta(ctx context.Context, auctionID uuid.UUID) (*Auction, error)
}

// BidLedger is the read side of the durable bid store
type BidLedger interface {
	// MaxFor returns the highest bid, or nil when the auction has none.
	// It reflects every CommitBid that has returned.
	MaxFor(ctx context.Context, auctionID uuid.UUID) (*Bid, error)

	// ListFor returns bids by descending amount, ties by earliest CreatedAt
	ListFor(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// ListByBidder returns a bidder's bids, newest first
	ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*Bid, error)
}

// BidCommitter appends a bid to the ledger and sets the auction's floor
// price to the bid amount as one unit: either both happen or neither does.
type BidCommitter interface {
	CommitBid(ctx context.Context, bid *Bid) error
}

// Directory resolves user display names for notification payloads
type Directory interface {
	DisplayName(ctx context.Context, userID uuid.UUID) (string, error)
}

// BidNotifier receives committed bids. Implementations must not block on
// network I/O; they are called in commit order for each auction.
type BidNotifier interface {
	BidCommitted(ctx context.Context, event BidCommitted)
}

type noopNotifier struct{}

func (noopNotifier) BidCommitted(context.Context, BidCommitted) {}
