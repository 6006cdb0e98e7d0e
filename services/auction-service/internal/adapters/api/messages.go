package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// Procedure names of auction.v1.AuctionService
const (
	AuctionServiceName = "auction.v1.AuctionService"

	PlaceBidProcedure          = "/auction.v1.AuctionService/PlaceBid"
	GetLeaderSnapshotProcedure = "/auction.v1.AuctionService/GetLeaderSnapshot"
	ListBidsProcedure          = "/auction.v1.AuctionService/ListBids"
	ListBidsByBidderProcedure  = "/auction.v1.AuctionService/ListBidsByBidder"
	GetAuctionEndTimeProcedure = "/auction.v1.AuctionService/GetAuctionEndTime"
)

// isoMillis matches what JavaScript clients produce with toISOString
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type Bid struct {
	ID        string `json:"id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id"`
	// Major units, as a JSON number or string
	Amount decimal.Decimal `json:"amount"`
}

type PlaceBidResponse struct {
	Bid *Bid `json:"bid"`
}

type AuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type GetLeaderSnapshotResponse struct {
	AuctionID  string  `json:"auction_id"`
	FloorPrice string  `json:"floor_price"`
	LeaderID   *string `json:"leader_id,omitempty"`
	LeaderName string  `json:"leader_name,omitempty"`
	BidTime    *string `json:"bid_time,omitempty"`
	EndTime    string  `json:"end_time"`
	HasEnded   bool    `json:"has_ended"`
}

type ListBidsResponse struct {
	Bids []*Bid `json:"bids"`
}

type ListBidsByBidderRequest struct {
	// Defaults to the caller when empty
	BidderID string `json:"bidder_id,omitempty"`
}

type GetAuctionEndTimeResponse struct {
	AuctionID        string `json:"auction_id"`
	EndTime          string `json:"end_time"`
	HasEnded         bool   `json:"has_ended"`
	FormattedEndTime string `json:"formatted_end_time"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
