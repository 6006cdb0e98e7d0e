package auctions_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/floroz/auction-live/services/auction-service/internal/adapters/memory"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

// MockNotifier records committed bids
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) BidCommitted(ctx context.Context, event auctions.BidCommitted) {
	m.Called(ctx, event)
}

type fixture struct {
	store   *memory.Store
	service *auctions.AuctionService
	auction *auctions.Auction
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(t *testing.T, base int64, opts ...auctions.Option) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	store := memory.NewStore()
	a := &auctions.Auction{
		ID:        uuid.New(),
		SellerID:  uuid.New(),
		Title:     "Mechanical watch",
		BasePrice: base,
		Quantity:  1,
		Status:    auctions.AuctionStatusAvailable,
		IsAuction: true,
		EndAt:     clock.Now().Add(time.Hour),
	}
	store.PutAuction(a)
	store.PutUser(a.SellerID, "Seller")

	opts = append([]auctions.Option{auctions.WithClock(clock.Now)}, opts...)
	resolver := auctions.NewResolver(store, store, store, opts...)
	service := auctions.NewAuctionService(resolver, store, store, opts...)

	return &fixture{store: store, service: service, auction: a, clock: clock}
}

func (f *fixture) bid(t *testing.T, bidder uuid.UUID, amount int64) (*auctions.Bid, error) {
	t.Helper()
	f.clock.Advance(time.Second)
	return f.service.PlaceBid(context.Background(), auctions.PlaceBidCommand{
		AuctionID: f.auction.ID,
		BidderID:  bidder,
		Amount:    amount,
	})
}

func TestPlaceBid_Scenario(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	f.store.PutUser(alice, "Alice")
	f.store.PutUser(bob, "Bob")

	_, err := f.bid(t, alice, 100)
	require.NoError(t, err, "opening bid at the base price is accepted")

	_, err = f.bid(t, bob, 110)
	require.NoError(t, err)

	_, err = f.bid(t, alice, 105)
	assert.ErrorIs(t, err, auctions.ErrBidTooLow)

	_, err = f.bid(t, alice, 110)
	assert.ErrorIs(t, err, auctions.ErrBidTooLow, "ties with the leader are rejected")

	_, err = f.bid(t, alice, 120)
	require.NoError(t, err)

	_, err = f.bid(t, f.auction.SellerID, 130)
	assert.ErrorIs(t, err, auctions.ErrSelfBid)

	snapshot, err := f.service.GetLeaderSnapshot(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), snapshot.FloorPrice)
	require.NotNil(t, snapshot.LeaderID)
	assert.Equal(t, alice, *snapshot.LeaderID)
	assert.Equal(t, "Alice", snapshot.LeaderName)
	assert.NotNil(t, snapshot.BidTime)

	f.clock.Advance(2 * time.Hour)
	_, err = f.bid(t, bob, 500)
	assert.ErrorIs(t, err, auctions.ErrAuctionClosed)

	end, err := f.service.GetAuctionEndTime(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.True(t, end.HasEnded)

	bids, err := f.service.ListBids(ctx, f.auction.ID)
	require.NoError(t, err)
	require.Len(t, bids, 3)
	assert.Equal(t, int64(120), bids[0].Amount)
	assert.Equal(t, int64(110), bids[1].Amount)
	assert.Equal(t, int64(100), bids[2].Amount)

	own, err := f.service.ListBidsByBidder(ctx, alice)
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, int64(120), own[0].Amount)
}

func TestPlaceBid_RejectsBelowBase(t *testing.T) {
	f := newFixture(t, 100)
	_, err := f.bid(t, uuid.New(), 99)
	assert.ErrorIs(t, err, auctions.ErrBidTooLow)

	_, err = f.bid(t, uuid.New(), 0)
	assert.ErrorIs(t, err, auctions.ErrInvalidAmount)
}

func TestPlaceBid_Lookups(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.service.PlaceBid(ctx, auctions.PlaceBidCommand{AuctionID: uuid.New(), BidderID: uuid.New(), Amount: 200})
	assert.ErrorIs(t, err, auctions.ErrAuctionNotFound)

	fixed := &auctions.Auction{
		ID:        uuid.New(),
		SellerID:  uuid.New(),
		BasePrice: 100,
		Status:    auctions.AuctionStatusAvailable,
		EndAt:     f.clock.Now().Add(time.Hour),
	}
	f.store.PutAuction(fixed)
	_, err = f.service.PlaceBid(ctx, auctions.PlaceBidCommand{AuctionID: fixed.ID, BidderID: uuid.New(), Amount: 200})
	assert.ErrorIs(t, err, auctions.ErrNotAnAuction)

	_, err = f.service.GetLeaderSnapshot(ctx, fixed.ID)
	assert.ErrorIs(t, err, auctions.ErrNotAnAuction)
}

func TestPlaceBid_InactiveAuction(t *testing.T) {
	f := newFixture(t, 100)
	sold := *f.auction
	sold.Status = auctions.AuctionStatusSold
	f.store.PutAuction(&sold)

	_, err := f.bid(t, uuid.New(), 200)
	assert.ErrorIs(t, err, auctions.ErrAuctionInactive)
}

func TestPlaceBid_RejectionIsIdempotent(t *testing.T) {
	f := newFixture(t, 100)
	bidder := uuid.New()
	_, err := f.bid(t, bidder, 150)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = f.bid(t, uuid.New(), 140)
		assert.ErrorIs(t, err, auctions.ErrBidTooLow)
	}

	bids, err := f.service.ListBids(context.Background(), f.auction.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestPlaceBid_ConcurrentEqualBids(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.service.PlaceBid(ctx, auctions.PlaceBidCommand{
				AuctionID: f.auction.ID,
				BidderID:  uuid.New(),
				Amount:    150,
			})
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
		} else {
			assert.ErrorIs(t, err, auctions.ErrBidTooLow)
		}
	}
	assert.Equal(t, 1, accepted)

	bids, err := f.service.ListBids(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestPlaceBid_ConcurrentLedgerIsMonotonic(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, _ = f.service.PlaceBid(ctx, auctions.PlaceBidCommand{
				AuctionID: f.auction.ID,
				BidderID:  uuid.New(),
				Amount:    amount * 10,
			})
		}(int64(i))
	}
	wg.Wait()

	bids, err := f.service.ListBids(ctx, f.auction.ID)
	require.NoError(t, err)
	require.NotEmpty(t, bids)
	assert.Equal(t, int64(500), bids[0].Amount, "the highest bid always wins eventually")

	// Accepted in commit order, every bid beat the one before it.
	byTime := make([]*auctions.Bid, len(bids))
	copy(byTime, bids)
	for i := 0; i < len(byTime); i++ {
		for j := i + 1; j < len(byTime); j++ {
			if byTime[j].CreatedAt.Before(byTime[i].CreatedAt) {
				byTime[i], byTime[j] = byTime[j], byTime[i]
			}
		}
	}
	for i := 1; i < len(byTime); i++ {
		assert.Greater(t, byTime[i].Amount, byTime[i-1].Amount)
		assert.True(t, byTime[i].CreatedAt.After(byTime[i-1].CreatedAt))
	}

	meta, err := f.store.GetAuctionMeta(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.Equal(t, bids[0].Amount, meta.BasePrice)
}

func TestPlaceBid_NotifiesOnCommitOnly(t *testing.T) {
	notifier := new(MockNotifier)
	f := newFixture(t, 100, auctions.WithNotifier(notifier))
	bidder := uuid.New()
	f.store.PutUser(bidder, "Grace")

	notifier.On("BidCommitted", mock.Anything, mock.MatchedBy(func(e auctions.BidCommitted) bool {
		return e.Bid.Amount == 200 &&
			e.BidderName == "Grace" &&
			e.SellerID == f.auction.SellerID &&
			e.AuctionTitle == f.auction.Title
	})).Return().Once()

	_, err := f.bid(t, bidder, 200)
	require.NoError(t, err)

	_, err = f.bid(t, bidder, 150)
	assert.ErrorIs(t, err, auctions.ErrBidTooLow)

	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "BidCommitted", 1)
}

// blockingCommitter holds the auction lock until released
type blockingCommitter struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (c *blockingCommitter) CommitBid(ctx context.Context, bid *auctions.Bid) error {
	close(c.entered)
	<-c.release
	return c.Store.CommitBid(ctx, bid)
}

func TestPlaceBid_BusyWhenLockHeld(t *testing.T) {
	f := newFixture(t, 100)
	committer := &blockingCommitter{Store: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	resolver := auctions.NewResolver(f.store, f.store, f.store, auctions.WithClock(f.clock.Now))
	service := auctions.NewAuctionService(resolver, f.store, committer,
		auctions.WithClock(f.clock.Now),
		auctions.WithLockTimeout(50*time.Millisecond),
	)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := service.PlaceBid(ctx, auctions.PlaceBidCommand{AuctionID: f.auction.ID, BidderID: uuid.New(), Amount: 200})
		done <- err
	}()
	<-committer.entered

	_, err := service.PlaceBid(ctx, auctions.PlaceBidCommand{AuctionID: f.auction.ID, BidderID: uuid.New(), Amount: 300})
	assert.ErrorIs(t, err, auctions.ErrBusy)
	assert.True(t, auctions.IsRetryable(err))

	close(committer.release)
	require.NoError(t, <-done)

	bids, err := service.ListBids(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestPlaceBid_CancelledContext(t *testing.T) {
	f := newFixture(t, 100)
	committer := &blockingCommitter{Store: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	resolver := auctions.NewResolver(f.store, f.store, f.store, auctions.WithClock(f.clock.Now))
	service := auctions.NewAuctionService(resolver, f.store, committer, auctions.WithClock(f.clock.Now))

	go func() {
		_, _ = service.PlaceBid(context.Background(), auctions.PlaceBidCommand{AuctionID: f.auction.ID, BidderID: uuid.New(), Amount: 200})
	}()
	<-committer.entered
	defer close(committer.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := service.PlaceBid(ctx, auctions.PlaceBidCommand{AuctionID: f.auction.ID, BidderID: uuid.New(), Amount: 300})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, auctions.IsRetryable(err))
}

func TestPlaceBid_UnknownBidderNameStillCommits(t *testing.T) {
	f := newFixture(t, 100)
	_, err := f.bid(t, uuid.New(), 100)
	require.NoError(t, err)

	snapshot, err := f.service.GetLeaderSnapshot(context.Background(), f.auction.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshot.LeaderName)
}

// slowDirectory delays every lookup and counts them
type slowDirectory struct {
	*memory.Store
	delay   atomic.Int64
	lookups atomic.Int32
}

func (d *slowDirectory) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	d.lookups.Add(1)
	time.Sleep(time.Duration(d.delay.Load()))
	return d.Store.DisplayName(ctx, userID)
}

func TestPlaceBid_SlowDirectoryDoesNotHoldLock(t *testing.T) {
	f := newFixture(t, 100)
	dir := &slowDirectory{Store: f.store}
	clock := f.clock
	opts := []auctions.Option{
		auctions.WithClock(clock.Now),
		auctions.WithLockTimeout(100 * time.Millisecond),
	}
	service := auctions.NewAuctionService(auctions.NewResolver(f.store, f.store, dir, opts...), f.store, f.store, opts...)

	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	f.store.PutUser(alice, "Alice")
	f.store.PutUser(bob, "Bob")
	f.store.PutUser(carol, "Carol")
	ctx := context.Background()

	_, err := service.PlaceBid(ctx, auctions.PlaceBidCommand{AuctionID: f.auction.ID, BidderID: alice, Amount: 120})
	require.NoError(t, err)
	assert.Equal(t, int32(1), dir.lookups.Load(), "one name lookup per bid")

	dir.delay.Store(int64(300 * time.Millisecond))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, cmd := range []auctions.PlaceBidCommand{
		{AuctionID: f.auction.ID, BidderID: bob, Amount: 130},
		{AuctionID: f.auction.ID, BidderID: carol, Amount: 140},
	} {
		wg.Add(1)
		go func(i int, cmd auctions.PlaceBidCommand) {
			defer wg.Done()
			_, errs[i] = service.PlaceBid(ctx, cmd)
		}(i, cmd)
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	top, err := f.store.MaxFor(ctx, f.auction.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(140), top.Amount)
}
