package auctions

import (
	"io"
	"log/slog"
	"time"
)

// DefaultLockTimeout bounds how long PlaceBid waits for an auction's lock
const DefaultLockTimeout = 2 * time.Second

type config struct {
	now         func() time.Time
	lockTimeout time.Duration
	notifier    BidNotifier
	logger      *slog.Logger
}

// Option configures a Resolver or an AuctionService
type Option func(*config)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLockTimeout sets the bounded wait for the per-auction lock
func WithLockTimeout(d time.Duration) Option {
	return func(c *config) { c.lockTimeout = d }
}

// WithNotifier sets the receiver of committed bids
func WithNotifier(n BidNotifier) Option {
	return func(c *config) { c.notifier = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

func newConfig(opts []Option) *config {
	c := &config{
		now:         time.Now,
		lockTimeout: DefaultLockTimeout,
		notifier:    noopNotifier{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
