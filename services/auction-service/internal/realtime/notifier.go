package realtime

import (
	"context"

	"github.com/google/uuid"

	"github.com/floroz/auction-live/pkg/money"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

// Notifier fans committed bids out to auction rooms and sellers.
// It implements auctions.BidNotifier.
type Notifier struct {
	broker *Broker
}

// NewNotifier creates a notifier on top of the broker
func NewNotifier(broker *Broker) *Notifier {
	return &Notifier{broker: broker}
}

// BidCommitted implements auctions.BidNotifier
func (n *Notifier) BidCommitted(_ context.Context, e auctions.BidCommitted) {
	n.BroadcastBid(e.Bid.AuctionID, e.Bid, e.BidderName)
	n.NotifySeller(e.SellerID, e.Bid.AuctionID, e.Bid, e.BidderName, e.AuctionTitle)
}

// BroadcastBid sends new-bid to every connection in the auction's room
func (n *Notifier) BroadcastBid(auctionID uuid.UUID, bid *auctions.Bid, bidderName string) {
	msg := Message{
		Type: TypeNewBid,
		Data: NewBidPayload{
			AuctionID:  auctionID,
			BidID:      bid.ID,
			BidAmount:  money.Format(bid.Amount),
			BidderID:   bid.BidderID,
			BidderName: bidderName,
			Timestamp:  bid.CreatedAt,
		},
	}
	n.broker.Deliver(msg, n.broker.ConnectionsFor(auctionID)...)
}

// NotifySeller sends seller-notified to the seller's presence connection.
// A seller without one is skipped.
func (n *Notifier) NotifySeller(sellerID, auctionID uuid.UUID, bid *auctions.Bid, bidderName, title string) {
	conn, ok := n.broker.PresenceConn(sellerID)
	if !ok {
		return
	}
	n.broker.Deliver(Message{
		Type: TypeSellerNotified,
		Data: SellerNotifiedPayload{
			AuctionID:    auctionID,
			AuctionTitle: title,
			BidAmount:    money.Format(bid.Amount),
			BidderName:   bidderName,
			Timestamp:    bid.CreatedAt,
		},
	}, conn)
}
