package auctions

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus is the catalog status of an item sold by auction
type AuctionStatus string

const (
	AuctionStatusAvailable AuctionStatus = "available"
	AuctionStatusSold      AuctionStatus = "sold"
	AuctionStatusInactive  AuctionStatus = "inactive"
)

// Auction is the catalog view of a product in auction mode.
// BasePrice tracks the leading bid once bidding starts and never decreases.
type Auction struct {
	ID        uuid.UUID     `db:"id"`
	SellerID  uuid.UUID     `db:"seller_id"`
	Title     string        `db:"title"`
	BasePrice int64         `db:"base_price"` // in cents
	Quantity  int32         `db:"quantity"`
	Status    AuctionStatus `db:"status"`
	IsAuction bool          `db:"is_auction"`
	EndAt     time.Time     `db:"end_at"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

// Bid is an immutable, committed bid
type Bid struct {
	ID        uuid.UUID `db:"id"`
	AuctionID uuid.UUID `db:"auction_id"`
	BidderID  uuid.UUID `db:"bidder_id"`
	Amount    int64     `db:"amount"` // in cents
	CreatedAt time.Time `db:"created_at"`
}

// Leader describes the current highest bid
type Leader struct {
	BidderID   uuid.UUID
	BidderName string
	Amount     int64
	BidTime    time.Time
}

// AuctionState is a point-in-time view combining catalog metadata with the ledger.
type AuctionState struct {
	AuctionID  uuid.UUID
	SellerID   uuid.UUID
	Title      string
	Status     AuctionStatus
	IsAuction  bool
	HasEnded   bool
	FloorPrice int64
	Leader     *Leader
	EndAt      time.Time
}

// IsOpen reports whether the auction accepts bids. Once closed an auction
// never reopens.
func (s *AuctionState) IsOpen() bool {
	return !s.HasEnded && s.Status == AuctionStatusAvailable
}

// LeaderSnapshot is what observers are shown when they join an auction
type LeaderSnapshot struct {
	AuctionID  uuid.UUID
	FloorPrice int64
	LeaderID   *uuid.UUID
	LeaderName string
	BidTime    *time.Time
	EndAt      time.Time
	HasEnded   bool
}

// EndTime describes when an auction closes
type EndTime struct {
	AuctionID uuid.UUID
	EndAt     time.Time
	HasEnded  bool
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
}

// BidCommitted is handed to the notifier after a bid is durably recorded
type BidCommitted struct {
	Bid          *Bid
	BidderName   string
	SellerID     uuid.UUID
	AuctionTitle string
}

// EventTypeBidPlaced is the outbox event type (and routing key) for committed bids
const EventTypeBidPlaced = "bid.placed"
