// Package memory holds in-process implementations of the auction ports. It
// backs the API when no database is configured and the domain tests.
package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/floroz/auction-live/pkg/syncutils"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

// ErrUnknownUser is returned by DisplayName for ids that were never added
var ErrUnknownUser = errors.New("user not found")

const btreeDegree = 16

// bidLess orders an auction's bids by amount desc, then earliest first.
// The id breaks exact ties so no two bids compare equal.
func bidLess(a, b *auctions.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// Store implements AuctionCatalog, BidLedger, BidCommitter and Directory.
type Store struct {
	mu       syncutils.RWMutex
	auctions map[uuid.UUID]*auctions.Auction
	bids     map[uuid.UUID]*btree.BTreeG[*auctions.Bid]
	byBidder map[uuid.UUID][]*auctions.Bid
	names    map[uuid.UUID]string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		auctions: make(map[uuid.UUID]*auctions.Auction),
		bids:     make(map[uuid.UUID]*btree.BTreeG[*auctions.Bid]),
		byBidder: make(map[uuid.UUID][]*auctions.Bid),
		names:    make(map[uuid.UUID]string),
	}
}

// PutAuction adds or replaces catalog metadata
func (s *Store) PutAuction(a *auctions.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.auctions[a.ID] = &cp
}

// PutUser registers a display name
func (s *Store) PutUser(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[id] = name
}

// GetAuctionMeta implements auctions.AuctionCatalog
func (s *Store) GetAuctionMeta(_ context.Context, auctionID uuid.UUID) (*auctions.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, auctions.ErrAuctionNotFound
	}
	cp := *a
	return &cp, nil
}

// MaxFor implements auctions.BidLedger
func (s *Store) MaxFor(_ context.Context, auctionID uuid.UUID) (*auctions.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tree, ok := s.bids[auctionID]
	if !ok {
		return nil, nil
	}
	top, ok := tree.Min()
	if !ok {
		return nil, nil
	}
	cp := *top
	return &cp, nil
}

// ListFor implements auctions.BidLedger
func (s *Store) ListFor(_ context.Context, auctionID uuid.UUID) ([]*auctions.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []*auctions.Bid{}
	tree, ok := s.bids[auctionID]
	if !ok {
		return result, nil
	}
	tree.Ascend(func(b *auctions.Bid) bool {
		cp := *b
		result = append(result, &cp)
		return true
	})
	return result, nil
}

// ListByBidder implements auctions.BidLedger
func (s *Store) ListByBidder(_ context.Context, bidderID uuid.UUID) ([]*auctions.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	own := s.byBidder[bidderID]
	result := make([]*auctions.Bid, 0, len(own))
	// stored oldest first
	for i := len(own) - 1; i >= 0; i-- {
		cp := *own[i]
		result = append(result, &cp)
	}
	return result, nil
}

// CommitBid implements auctions.BidCommitter. The ledger append and the
// floor price update happen under one write lock.
func (s *Store) CommitBid(_ context.Context, bid *auctions.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[bid.AuctionID]
	if !ok {
		return auctions.ErrAuctionNotFound
	}

	tree, ok := s.bids[bid.AuctionID]
	if !ok {
		tree = btree.NewG(btreeDegree, bidLess)
		s.bids[bid.AuctionID] = tree
	}
	if top, ok := tree.Min(); ok && bid.Amount <= top.Amount {
		return fmt.Errorf("%w: leading bid moved to %d", auctions.ErrBidTooLow, top.Amount)
	}

	cp := *bid
	tree.ReplaceOrInsert(&cp)
	s.byBidder[bid.BidderID] = append(s.byBidder[bid.BidderID], &cp)
	a.BasePrice = bid.Amount
	a.UpdatedAt = bid.CreatedAt
	return nil
}

// DisplayName implements auctions.Directory
func (s *Store) DisplayName(_ context.Context, userID uuid.UUID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[userID]
	if !ok {
		return "", ErrUnknownUser
	}
	return name, nil
}
