package auctions

import "errors"

// Lookup errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrNotAnAuction    = errors.New("item is not in auction mode")
)

// Business rule rejections
var (
	ErrAuctionClosed   = errors.New("auction has ended")
	ErrAuctionInactive = errors.New("auction is not available")
	ErrSelfBid         = errors.New("seller cannot bid on their own auction")
	ErrInvalidAmount   = errors.New("bid amount must be positive")
	ErrBidTooLow       = errors.New("bid amount is too low")
)

// ErrBusy is returned when the auction could not be locked in time. Nothing
// was committed, so the caller may retry the same bid.
var ErrBusy = errors.New("auction is busy, retry the bid")

// IsRetryable reports whether a failed PlaceBid may be resubmitted unchanged
// with a chance of a different outcome.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}

// IsRejection reports whether err is a validation or business-rule rejection
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrAuctionNotFound, ErrNotAnAuction, ErrAuctionClosed, ErrAuctionInactive,
		ErrSelfBid, ErrInvalidAmount, ErrBidTooLow,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
