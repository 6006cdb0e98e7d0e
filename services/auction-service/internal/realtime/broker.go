// Package realtime tracks auction rooms and user presence and fans
// committed bids out to connected clients.
package realtime

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/auction-live/pkg/syncutils"
)

// Defaults for the presence sweep
const (
	DefaultPresenceTimeout = 5 * time.Minute
	DefaultSweepInterval   = 60 * time.Second
)

// Conn is a client connection as seen by the broker.
type Conn interface {
	ID() string
	UserID() uuid.UUID
	// Send enqueues without blocking; false means the message was not
	// accepted and the connection should be dropped.
	Send(msg Message) bool
	Close()
}

type presenceEntry struct {
	conn     Conn
	lastSeen time.Time
}

// Broker owns room membership and presence. It has its own lock and is
// never touched while an auction's bid lock is held for I/O.
type Broker struct {
	mu          syncutils.RWMutex
	rooms       map[uuid.UUID]map[string]Conn
	memberships map[string]map[uuid.UUID]struct{}
	presence    map[uuid.UUID]*presenceEntry

	now      func() time.Time
	timeout  time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// BrokerOption configures a Broker
type BrokerOption func(*Broker)

// WithPresenceTimeout sets how long a presence entry lives without a heartbeat
func WithPresenceTimeout(d time.Duration) BrokerOption {
	return func(b *Broker) { b.timeout = d }
}

// WithSweepInterval sets how often Run evicts stale presence entries
func WithSweepInterval(d time.Duration) BrokerOption {
	return func(b *Broker) { b.interval = d }
}

// WithBrokerClock replaces time.Now
func WithBrokerClock(now func() time.Time) BrokerOption {
	return func(b *Broker) { b.now = now }
}

// WithBrokerLogger sets the logger
func WithBrokerLogger(l *slog.Logger) BrokerOption {
	return func(b *Broker) { b.logger = l }
}

// NewBroker creates an empty broker
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		rooms:       make(map[uuid.UUID]map[string]Conn),
		memberships: make(map[string]map[uuid.UUID]struct{}),
		presence:    make(map[uuid.UUID]*presenceEntry),
		now:         time.Now,
		timeout:     DefaultPresenceTimeout,
		interval:    DefaultSweepInterval,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Join adds conn to an auction room, creating the room if needed
func (b *Broker) Join(auctionID uuid.UUID, conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms[auctionID]
	if !ok {
		room = make(map[string]Conn)
		b.rooms[auctionID] = room
	}
	room[conn.ID()] = conn

	joined, ok := b.memberships[conn.ID()]
	if !ok {
		joined = make(map[uuid.UUID]struct{})
		b.memberships[conn.ID()] = joined
	}
	joined[auctionID] = struct{}{}
}

// Leave removes conn from an auction room; empty rooms are dropped
func (b *Broker) Leave(auctionID uuid.UUID, conn Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(auctionID, conn.ID())
}

func (b *Broker) leaveLocked(auctionID uuid.UUID, connID string) {
	if room, ok := b.rooms[auctionID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(b.rooms, auctionID)
		}
	}
	if joined, ok := b.memberships[connID]; ok {
		delete(joined, auctionID)
		if len(joined) == 0 {
			delete(b.memberships, connID)
		}
	}
}

// ConnectionsFor returns a snapshot of the connections in an auction room
func (b *Broker) ConnectionsFor(auctionID uuid.UUID) []Conn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	room := b.rooms[auctionID]
	conns := make([]Conn, 0, len(room))
	for _, c := range room {
		conns = append(conns, c)
	}
	return conns
}

// JoinUserPresence makes conn the private channel for userID and
// announces the user as online. A newer connection replaces an older one.
func (b *Broker) JoinUserPresence(userID uuid.UUID, conn Conn) {
	b.mu.Lock()
	b.presence[userID] = &presenceEntry{conn: conn, lastSeen: b.now()}
	b.mu.Unlock()

	b.logger.Info("User connected", "user_id", userID, "conn_id", conn.ID())
	b.broadcastStatus(userID, StatusOnline)
}

// Heartbeat refreshes a user's presence. Unknown users are ignored.
func (b *Broker) Heartbeat(userID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if entry, ok := b.presence[userID]; ok {
		entry.lastSeen = b.now()
	}
}

// Touch refreshes presence for a connection that is still alive at the
// transport level. A user evicted by Sweep is re-registered on conn and
// announced online again.
func (b *Broker) Touch(conn Conn) {
	userID := conn.UserID()
	b.mu.Lock()
	if entry, ok := b.presence[userID]; ok {
		entry.lastSeen = b.now()
		b.mu.Unlock()
		return
	}
	b.presence[userID] = &presenceEntry{conn: conn, lastSeen: b.now()}
	b.mu.Unlock()

	b.logger.Info("User reconnected", "user_id", userID, "conn_id", conn.ID())
	b.broadcastStatus(userID, StatusOnline)
}

// IsOnline reports whether a heartbeat was seen within the timeout
func (b *Broker) IsOnline(userID uuid.UUID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.presence[userID]
	return ok && b.now().Sub(entry.lastSeen) <= b.timeout
}

// PresenceConn returns the user's private connection, if any
func (b *Broker) PresenceConn(userID uuid.UUID) (Conn, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.presence[userID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}

// OnlineUsers returns the ids of every present user
func (b *Broker) OnlineUsers() []uuid.UUID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	users := make([]uuid.UUID, 0, len(b.presence))
	for id := range b.presence {
		users = append(users, id)
	}
	return users
}

// Disconnect removes conn from every room and, if it is still the user's
// presence connection, marks the user offline.
func (b *Broker) Disconnect(conn Conn) {
	b.mu.Lock()
	for auctionID := range b.memberships[conn.ID()] {
		b.leaveLocked(auctionID, conn.ID())
	}
	wentOffline := false
	if entry, ok := b.presence[conn.UserID()]; ok && entry.conn.ID() == conn.ID() {
		delete(b.presence, conn.UserID())
		wentOffline = true
	}
	b.mu.Unlock()

	if wentOffline {
		b.logger.Info("User disconnected", "user_id", conn.UserID(), "conn_id", conn.ID())
		b.broadcastStatus(conn.UserID(), StatusOffline)
	}
}

// Sweep evicts presence entries older than the timeout and returns the
// evicted user ids. Evicted connections stay open and keep their rooms.
func (b *Broker) Sweep(now time.Time) []uuid.UUID {
	b.mu.Lock()
	var evicted []uuid.UUID
	for userID, entry := range b.presence {
		if now.Sub(entry.lastSeen) > b.timeout {
			delete(b.presence, userID)
			evicted = append(evicted, userID)
		}
	}
	b.mu.Unlock()

	for _, userID := range evicted {
		b.logger.Info("Removed inactive user", "user_id", userID)
		b.broadcastStatus(userID, StatusOffline)
	}
	return evicted
}

// Run sweeps presence on the configured interval until ctx is cancelled
func (b *Broker) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.logger.Info("Presence sweep started", "interval", b.interval, "timeout", b.timeout)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Presence sweep stopped")
			return nil
		case <-ticker.C:
			b.Sweep(b.now())
		}
	}
}

// Deliver sends msg to each conn; a conn that cannot accept it is evicted.
// It never blocks on a slow receiver.
func (b *Broker) Deliver(msg Message, conns ...Conn) {
	for _, c := range conns {
		if !c.Send(msg) {
			b.evict(c)
		}
	}
}

func (b *Broker) evict(c Conn) {
	b.logger.Warn("Dropping slow connection", "conn_id", c.ID(), "user_id", c.UserID())
	c.Close()
	b.Disconnect(c)
}

// broadcastStatus tells every present user about a status change
func (b *Broker) broadcastStatus(userID uuid.UUID, status string) {
	b.mu.RLock()
	conns := make([]Conn, 0, len(b.presence))
	for _, entry := range b.presence {
		conns = append(conns, entry.conn)
	}
	b.mu.RUnlock()

	b.Deliver(Message{
		Type: TypeUserStatusChange,
		Data: UserStatusPayload{UserID: userID, Status: status},
	}, conns...)
}
