package auctions

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// BidPlacedEvent is the bid.placed payload written to the outbox
type BidPlacedEvent struct {
	BidID        uuid.UUID
	AuctionID    uuid.UUID
	BidderID     uuid.UUID
	SellerID     uuid.UUID
	AuctionTitle string
	Amount       int64
	Timestamp    time.Time
}

// NewBidPlacedEvent builds the event for a committed bid
func NewBidPlacedEvent(bid *Bid, sellerID uuid.UUID, title string) *BidPlacedEvent {
	return &BidPlacedEvent{
		BidID:        bid.ID,
		AuctionID:    bid.AuctionID,
		BidderID:     bid.BidderID,
		SellerID:     sellerID,
		AuctionTitle: title,
		Amount:       bid.Amount,
		Timestamp:    bid.CreatedAt,
	}
}

// Marshal encodes the event as a protobuf Struct. Amounts travel as
// strings so no precision is lost to the Struct number type.
func (e *BidPlacedEvent) Marshal() ([]byte, error) {
	ts := timestamppb.New(e.Timestamp)
	msg, err := structpb.NewStruct(map[string]any{
		"bid_id":        e.BidID.String(),
		"auction_id":    e.AuctionID.String(),
		"bidder_id":     e.BidderID.String(),
		"seller_id":     e.SellerID.String(),
		"auction_title": e.AuctionTitle,
		"amount":        strconv.FormatInt(e.Amount, 10),
		"timestamp": map[string]any{
			"seconds": float64(ts.GetSeconds()),
			"nanos":   float64(ts.GetNanos()),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build event: %w", err)
	}

	payload, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return payload, nil
}

// UnmarshalBidPlaced decodes a payload produced by Marshal
func UnmarshalBidPlaced(payload []byte) (*BidPlacedEvent, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	fields := msg.GetFields()

	var e BidPlacedEvent
	var err error
	for key, dst := range map[string]*uuid.UUID{
		"bid_id":     &e.BidID,
		"auction_id": &e.AuctionID,
		"bidder_id":  &e.BidderID,
		"seller_id":  &e.SellerID,
	} {
		if *dst, err = uuid.Parse(fields[key].GetStringValue()); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
	}

	e.AuctionTitle = fields["auction_title"].GetStringValue()
	if e.Amount, err = strconv.ParseInt(fields["amount"].GetStringValue(), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	tsFields := fields["timestamp"].GetStructValue().GetFields()
	ts := &timestamppb.Timestamp{
		Seconds: int64(tsFields["seconds"].GetNumberValue()),
		Nanos:   int32(tsFields["nanos"].GetNumberValue()),
	}
	if err := ts.CheckValid(); err != nil {
		return nil, fmt.Errorf("invalid timestamp: %w", err)
	}
	e.Timestamp = ts.AsTime()

	return &e, nil
}
