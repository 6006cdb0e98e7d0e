package auctions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/auction-live/pkg/keylock"
	"github.com/floroz/auction-live/pkg/money"
)

// validateAuctionOpen checks the auction can still take bids
func validateAuctionOpen(state *AuctionState) error {
	if state.HasEnded {
		return ErrAuctionClosed
	}
	if state.Status != AuctionStatusAvailable {
		return ErrAuctionInactive
	}
	return nil
}

// validateBidAmount checks the amount against the current floor. The opening
// bid may match the base price; after that a bid must beat the leader.
func validateBidAmount(amount, floor int64, hasLeader bool) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if hasLeader && amount <= floor {
		return fmt.Errorf("%w: must exceed the leading bid of %s", ErrBidTooLow, money.Format(floor))
	}
	if amount < floor {
		return fmt.Errorf("%w: must be at least %s", ErrBidTooLow, money.Format(floor))
	}
	return nil
}

// AuctionService admits bids and answers auction queries.
//
// Bids for the same auction are linearized on a per-auction lock: the state
// is re-resolved and re-validated while the lock is held, so two bids can
// never both be accepted against the same stale leader. Different auctions
// never share a lock.
type AuctionService struct {
	resolver    *Resolver
	ledger      BidLedger
	committer   BidCommitter
	locks       *keylock.Set
	lockTimeout time.Duration
	notifier    BidNotifier
	logger      *slog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(resolver *Resolver, ledger BidLedger, committer BidCommitter, opts ...Option) *AuctionService {
	cfg := newConfig(opts)
	return &AuctionService{
		resolver:    resolver,
		ledger:      ledger,
		committer:   committer,
		locks:       keylock.New(keylock.DefaultShards),
		lockTimeout: cfg.lockTimeout,
		notifier:    cfg.notifier,
		logger:      cfg.logger,
	}
}

// PlaceBid validates and commits a bid. Rejections leave no trace, so a
// rejected command retried unchanged is rejected the same way.
func (s *AuctionService) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	// Reject obviously bad bids without contending for the lock
	if _, err := s.admit(ctx, cmd); err != nil {
		return nil, err
	}

	// Name lookup may hit the network, keep it outside the critical section
	bidderName := s.resolver.displayName(ctx, cmd.BidderID)

	unlock, err := s.lock(ctx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state, err := s.admit(ctx, cmd)
	if err != nil {
		return nil, err
	}

	bid := &Bid{
		ID:        uuid.New(),
		AuctionID: cmd.AuctionID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		CreatedAt: s.nextBidTime(state),
	}

	if err := s.committer.CommitBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("failed to commit bid: %w", err)
	}

	s.logger.Info("Bid committed",
		"auction_id", bid.AuctionID,
		"bidder_id", bid.BidderID,
		"amount", bid.Amount,
	)

	// Still under the lock so notifications leave in commit order
	s.notifier.BidCommitted(ctx, BidCommitted{
		Bid:          bid,
		BidderName:   bidderName,
		SellerID:     state.SellerID,
		AuctionTitle: state.Title,
	})

	return bid, nil
}

// admit runs every validation step against freshly resolved state. It
// skips display names, which admission does not need.
func (s *AuctionService) admit(ctx context.Context, cmd PlaceBidCommand) (*AuctionState, error) {
	state, err := s.resolver.resolveState(ctx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}
	if err := validateAuctionOpen(state); err != nil {
		return nil, err
	}
	if state.SellerID == cmd.BidderID {
		return nil, ErrSelfBid
	}
	if err := validateBidAmount(cmd.Amount, state.FloorPrice, state.Leader != nil); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *AuctionService) lock(ctx context.Context, auctionID uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(lockCtx, auctionID.String())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("Timed out waiting for auction lock", "auction_id", auctionID)
		return nil, ErrBusy
	}
	return unlock, nil
}

// nextBidTime keeps CreatedAt strictly increasing within an auction even if
// the clock has not moved since the leading bid.
func (s *AuctionService) nextBidTime(state *AuctionState) time.Time {
	now := s.resolver.now().UTC().Truncate(time.Microsecond)
	if state.Leader != nil && !now.After(state.Leader.BidTime) {
		return state.Leader.BidTime.Add(time.Microsecond)
	}
	return now
}

// GetLeaderSnapshot returns the floor price and leader shown to observers
func (s *AuctionService) GetLeaderSnapshot(ctx context.Context, auctionID uuid.UUID) (*LeaderSnapshot, error) {
	state, err := s.resolver.Resolve(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	snapshot := &LeaderSnapshot{
		AuctionID:  state.AuctionID,
		FloorPrice: state.FloorPrice,
		EndAt:      state.EndAt,
		HasEnded:   state.HasEnded,
	}
	if state.Leader != nil {
		leaderID := state.Leader.BidderID
		bidTime := state.Leader.BidTime
		snapshot.LeaderID = &leaderID
		snapshot.LeaderName = state.Leader.BidderName
		snapshot.BidTime = &bidTime
	}
	return snapshot, nil
}

// ListBids returns an auction's bids by descending amount
func (s *AuctionService) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	bids, err := s.ledger.ListFor(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// ListBidsByBidder returns a bidder's bids, newest first
func (s *AuctionService) ListBidsByBidder(ctx context.Context, bidderID uuid.UUID) ([]*Bid, error) {
	bids, err := s.ledger.ListByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bidder bids: %w", err)
	}
	return bids, nil
}

// GetAuctionEndTime reports when the auction ends and whether it has
func (s *AuctionService) GetAuctionEndTime(ctx context.Context, auctionID uuid.UUID) (*EndTime, error) {
	return s.resolver.EndTime(ctx, auctionID)
}
