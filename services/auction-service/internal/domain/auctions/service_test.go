package auctions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestValidateBidAmount tests the bid amount validation logic
func TestValidateBidAmount(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		floor     int64
		hasLeader bool
		wantErr   error
	}{
		{
			name:    "valid - opening bid equal to base price",
			amount:  100,
			floor:   100,
			wantErr: nil,
		},
		{
			name:    "valid - opening bid above base price",
			amount:  150,
			floor:   100,
			wantErr: nil,
		},
		{
			name:    "invalid - opening bid below base price",
			amount:  99,
			floor:   100,
			wantErr: ErrBidTooLow,
		},
		{
			name:      "invalid - equal to leading bid",
			amount:    110,
			floor:     110,
			hasLeader: true,
			wantErr:   ErrBidTooLow,
		},
		{
			name:      "invalid - lower than leading bid",
			amount:    105,
			floor:     110,
			hasLeader: true,
			wantErr:   ErrBidTooLow,
		},
		{
			name:      "valid - one cent above leading bid",
			amount:    111,
			floor:     110,
			hasLeader: true,
			wantErr:   nil,
		},
		{
			name:    "invalid - zero amount",
			amount:  0,
			floor:   0,
			wantErr: ErrInvalidAmount,
		},
		{
			name:      "invalid - negative amount",
			amount:    -5,
			floor:     100,
			hasLeader: true,
			wantErr:   ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBidAmount(tt.amount, tt.floor, tt.hasLeader)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBidAmount_MessageCarriesMinimum(t *testing.T) {
	err := validateBidAmount(10000, 12050, true)
	assert.ErrorIs(t, err, ErrBidTooLow)
	assert.Contains(t, err.Error(), "120.50")
}

// TestValidateAuctionOpen tests the auction open checks
func TestValidateAuctionOpen(t *testing.T) {
	tests := []struct {
		name    string
		state   AuctionState
		wantErr error
	}{
		{
			name:    "valid - available and not ended",
			state:   AuctionState{Status: AuctionStatusAvailable},
			wantErr: nil,
		},
		{
			name:    "invalid - ended",
			state:   AuctionState{Status: AuctionStatusAvailable, HasEnded: true},
			wantErr: ErrAuctionClosed,
		},
		{
			name:    "invalid - sold",
			state:   AuctionState{Status: AuctionStatusSold},
			wantErr: ErrAuctionInactive,
		},
		{
			name:    "invalid - inactive",
			state:   AuctionState{Status: AuctionStatusInactive},
			wantErr: ErrAuctionInactive,
		},
		{
			name:    "ended takes precedence over status",
			state:   AuctionState{Status: AuctionStatusInactive, HasEnded: true},
			wantErr: ErrAuctionClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAuctionOpen(&tt.state)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
				assert.True(t, tt.state.IsOpen())
			}
		})
	}
}

func TestNextBidTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 123456789, time.UTC)
	s := &AuctionService{resolver: &Resolver{now: func() time.Time { return now }}}

	t.Run("no leader uses clock truncated to microseconds", func(t *testing.T) {
		got := s.nextBidTime(&AuctionState{})
		assert.Equal(t, now.Truncate(time.Microsecond), got)
	})

	t.Run("clock behind leader moves past leader", func(t *testing.T) {
		leaderTime := now.Add(time.Second)
		got := s.nextBidTime(&AuctionState{Leader: &Leader{BidderID: uuid.New(), BidTime: leaderTime}})
		assert.Equal(t, leaderTime.Add(time.Microsecond), got)
	})

	t.Run("clock ahead of leader is used as is", func(t *testing.T) {
		leaderTime := now.Add(-time.Second)
		got := s.nextBidTime(&AuctionState{Leader: &Leader{BidTime: leaderTime}})
		assert.Equal(t, now.Truncate(time.Microsecond), got)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrBusy))
	assert.False(t, IsRetryable(ErrBidTooLow))
	assert.True(t, IsRejection(ErrSelfBid))
	assert.False(t, IsRejection(ErrBusy))
}
