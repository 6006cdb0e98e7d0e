package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event names of the client protocol
const (
	// client -> server
	TypeJoinBidding     = "join-bidding"
	TypeLeaveBidding    = "leave-bidding"
	TypePlaceBid        = "place-bid"
	TypeHeartbeat       = "heartbeat"
	TypeCheckUserStatus = "check-user-status"
	TypeGetOnlineUsers  = "get-online-users"

	// server -> client
	TypeAuctionStatus    = "auction-status"
	TypeNewBid           = "new-bid"
	TypeBidRejected      = "bid-rejected"
	TypeSellerNotified   = "seller-notified"
	TypeUserStatusChange = "user-status-change"
	TypeUserStatus       = "user-status"
	TypeOnlineUsers      = "online-users"
	TypeError            = "error"
)

// Presence statuses
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Message is the envelope for every frame in both directions
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// AuctionStatusPayload is pushed to a connection when it joins a room
type AuctionStatusPayload struct {
	AuctionID      uuid.UUID  `json:"auctionId"`
	CurrentPrice   string     `json:"currentPrice"`
	BidderID       *uuid.UUID `json:"bidderId,omitempty"`
	BidderName     string     `json:"bidderName,omitempty"`
	BidTime        *time.Time `json:"bidTime,omitempty"`
	AuctionEndTime time.Time  `json:"auctionEndTime"`
	EndsInMs       int64      `json:"endsIn"`
	HasEnded       bool       `json:"hasEnded"`
}

// NewBidPayload is broadcast to a room on every committed bid
type NewBidPayload struct {
	AuctionID  uuid.UUID `json:"auctionId"`
	BidID      uuid.UUID `json:"bidId"`
	BidAmount  string    `json:"bidAmount"`
	BidderID   uuid.UUID `json:"bidderId"`
	BidderName string    `json:"bidderName"`
	Timestamp  time.Time `json:"timestamp"`
}

// SellerNotifiedPayload is sent privately to the seller
type SellerNotifiedPayload struct {
	AuctionID    uuid.UUID `json:"auctionId"`
	AuctionTitle string    `json:"auctionTitle"`
	BidAmount    string    `json:"bidAmount"`
	BidderName   string    `json:"bidderName"`
	Timestamp    time.Time `json:"timestamp"`
}

// BidRejectedPayload is sent to the submitter only
type BidRejectedPayload struct {
	AuctionID uuid.UUID `json:"auctionId,omitempty"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

// UserStatusPayload backs user-status and user-status-change
type UserStatusPayload struct {
	UserID uuid.UUID `json:"userId"`
	Status string    `json:"status"`
}

// ErrorPayload carries a protocol level error
type ErrorPayload struct {
	Message string `json:"message"`
}
