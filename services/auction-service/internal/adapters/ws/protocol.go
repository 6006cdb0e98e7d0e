package ws

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// auctionRef accepts {"auctionId": "..."} or a bare id string
type auctionRef struct {
	AuctionID uuid.UUID `json:"auctionId"`
}

func (r *auctionRef) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &r.AuctionID)
	}
	type plain auctionRef
	return json.Unmarshal(data, (*plain)(r))
}

func (r *auctionRef) valid() bool { return r.AuctionID != uuid.Nil }

// userRef accepts {"userId": "..."} or a bare id string
type userRef struct {
	UserID uuid.UUID `json:"userId"`
}

func (r *userRef) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		return json.Unmarshal(data, &r.UserID)
	}
	type plain userRef
	return json.Unmarshal(data, (*plain)(r))
}

func (r *userRef) valid() bool { return r.UserID != uuid.Nil }

// placeBidPayload takes the amount in major units, as a number or a string
type placeBidPayload struct {
	AuctionID uuid.UUID       `json:"auctionId"`
	BidAmount decimal.Decimal `json:"bidAmount"`
}

// Reason codes sent in bid-rejected
const (
	reasonNotFound        = "not_found"
	reasonNotAnAuction    = "not_an_auction"
	reasonAuctionClosed   = "auction_closed"
	reasonAuctionInactive = "auction_inactive"
	reasonSelfBid         = "self_bid"
	reasonInvalidAmount   = "invalid_amount"
	reasonBidTooLow       = "bid_too_low"
	reasonBusy            = "busy"
	reasonInternal        = "internal"
)

type reason struct {
	Code      string
	Message   string
	Retryable bool
}

var reasonTable = []struct {
	err  error
	code string
}{
	{auctions.ErrAuctionNotFound, reasonNotFound},
	{auctions.ErrNotAnAuction, reasonNotAnAuction},
	{auctions.ErrAuctionClosed, reasonAuctionClosed},
	{auctions.ErrAuctionInactive, reasonAuctionInactive},
	{auctions.ErrSelfBid, reasonSelfBid},
	{auctions.ErrInvalidAmount, reasonInvalidAmount},
	{auctions.ErrBidTooLow, reasonBidTooLow},
	{auctions.ErrBusy, reasonBusy},
}

// reasonFor maps a domain error to what the client is told. Infrastructure
// errors are not echoed back.
func reasonFor(err error) reason {
	for _, r := range reasonTable {
		if errors.Is(err, r.err) {
			return reason{Code: r.code, Message: err.Error(), Retryable: auctions.IsRetryable(err)}
		}
	}
	return reason{Code: reasonInternal, Message: "internal error"}
}
