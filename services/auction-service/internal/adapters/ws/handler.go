// Package ws serves the live bidding event protocol over websockets.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/floroz/auction-live/pkg/auth"
	"github.com/floroz/auction-live/pkg/money"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
	"github.com/floroz/auction-live/services/auction-service/internal/realtime"
)

// BidService is the part of auctions.AuctionService the socket needs
type BidService interface {
	PlaceBid(ctx context.Context, cmd auctions.PlaceBidCommand) (*auctions.Bid, error)
	GetLeaderSnapshot(ctx context.Context, auctionID uuid.UUID) (*auctions.LeaderSnapshot, error)
}

// Handler upgrades authenticated requests and runs the read loop
type Handler struct {
	service   BidService
	broker    *realtime.Broker
	signer    *auth.Signer
	upgrader  websocket.Upgrader
	sendQueue int
	now       func() time.Time
	logger    *slog.Logger
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithSendQueue caps the per-connection outbound queue
func WithSendQueue(n int) HandlerOption {
	return func(h *Handler) { h.sendQueue = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithCheckOrigin overrides the upgrader origin check
func WithCheckOrigin(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) { h.upgrader.CheckOrigin = fn }
}

// NewHandler creates a websocket handler
func NewHandler(service BidService, broker *realtime.Broker, signer *auth.Signer, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		broker:  broker,
		signer:  signer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		sendQueue: DefaultSendQueue,
		now:       time.Now,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := auth.AuthenticateRequest(h.signer, r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		h.logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, userID, h.sendQueue, h.logger)
	go c.writePump()

	h.broker.JoinUserPresence(userID, c)
	defer func() {
		h.broker.Disconnect(c)
		c.Close()
	}()

	ctx := auth.WithClaims(r.Context(), claims)
	h.readLoop(ctx, c)
}

func (h *Handler) readLoop(ctx context.Context, c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		h.broker.Touch(c)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket closed", "conn_id", c.id, "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil || in.Type == "" {
			h.send(c, errorMessage("malformed message"))
			continue
		}
		h.dispatch(ctx, c, in)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *client, in inbound) {
	switch in.Type {
	case realtime.TypeJoinBidding:
		h.joinBidding(ctx, c, in.Data)
	case realtime.TypeLeaveBidding:
		var p auctionRef
		if err := decode(in.Data, &p); err != nil {
			h.send(c, errorMessage("auctionId is required"))
			return
		}
		h.broker.Leave(p.AuctionID, c)
	case realtime.TypePlaceBid:
		h.placeBid(ctx, c, in.Data)
	case realtime.TypeHeartbeat:
		h.broker.Heartbeat(c.userID)
	case realtime.TypeCheckUserStatus:
		var p userRef
		if err := decode(in.Data, &p); err != nil {
			h.send(c, errorMessage("userId is required"))
			return
		}
		status := realtime.StatusOffline
		if h.broker.IsOnline(p.UserID) {
			status = realtime.StatusOnline
		}
		h.send(c, realtime.Message{
			Type: realtime.TypeUserStatus,
			Data: realtime.UserStatusPayload{UserID: p.UserID, Status: status},
		})
	case realtime.TypeGetOnlineUsers:
		h.send(c, realtime.Message{Type: realtime.TypeOnlineUsers, Data: h.broker.OnlineUsers()})
	default:
		h.send(c, errorMessage("unknown message type: "+in.Type))
	}
}

func (h *Handler) joinBidding(ctx context.Context, c *client, raw json.RawMessage) {
	var p auctionRef
	if err := decode(raw, &p); err != nil {
		h.send(c, errorMessage("auctionId is required"))
		return
	}

	// Join before reading the snapshot so no commit is missed. Broadcasts
	// around the join may arrive before or after the snapshot; amounts only
	// grow, so clients keep the highest price they have seen.
	h.broker.Join(p.AuctionID, c)

	snapshot, err := h.service.GetLeaderSnapshot(ctx, p.AuctionID)
	if err != nil {
		h.broker.Leave(p.AuctionID, c)
		reason := reasonFor(err)
		if reason.Code == reasonInternal {
			h.logger.Error("Failed to load auction snapshot", "auction_id", p.AuctionID, "error", err)
		}
		h.send(c, errorMessage(reason.Message))
		return
	}
	h.send(c, realtime.Message{Type: realtime.TypeAuctionStatus, Data: h.statusPayload(snapshot)})
}

func (h *Handler) statusPayload(s *auctions.LeaderSnapshot) realtime.AuctionStatusPayload {
	endsIn := s.EndAt.Sub(h.now())
	if endsIn < 0 {
		endsIn = 0
	}
	return realtime.AuctionStatusPayload{
		AuctionID:      s.AuctionID,
		CurrentPrice:   money.Format(s.FloorPrice),
		BidderID:       s.LeaderID,
		BidderName:     s.LeaderName,
		BidTime:        s.BidTime,
		AuctionEndTime: s.EndAt,
		EndsInMs:       endsIn.Milliseconds(),
		HasEnded:       s.HasEnded,
	}
}

func (h *Handler) placeBid(ctx context.Context, c *client, raw json.RawMessage) {
	var ref auctionRef
	if err := decode(raw, &ref); err != nil {
		h.send(c, errorMessage("auctionId is required"))
		return
	}
	var p placeBidPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.reject(c, ref.AuctionID, auctions.ErrInvalidAmount)
		return
	}
	amount, err := money.ToMinor(p.BidAmount)
	if err != nil {
		h.reject(c, p.AuctionID, auctions.ErrInvalidAmount)
		return
	}

	_, err = h.service.PlaceBid(ctx, auctions.PlaceBidCommand{
		AuctionID: p.AuctionID,
		BidderID:  c.userID,
		Amount:    amount,
	})
	if err != nil {
		h.reject(c, p.AuctionID, err)
	}
	// Success is reported by the room broadcast
}

func (h *Handler) reject(c *client, auctionID uuid.UUID, err error) {
	reason := reasonFor(err)
	if reason.Code == reasonInternal {
		h.logger.Error("Failed to place bid", "auction_id", auctionID, "user_id", c.userID, "error", err)
	}
	h.send(c, realtime.Message{
		Type: realtime.TypeBidRejected,
		Data: realtime.BidRejectedPayload{
			AuctionID: auctionID,
			Reason:    reason.Code,
			Message:   reason.Message,
			Retryable: reason.Retryable,
		},
	})
}

func (h *Handler) send(c *client, msg realtime.Message) {
	h.broker.Deliver(msg, c)
}

func errorMessage(text string) realtime.Message {
	return realtime.Message{Type: realtime.TypeError, Data: realtime.ErrorPayload{Message: text}}
}

var errMissingField = errors.New("missing field")

func decode[T interface{ valid() bool }](raw json.RawMessage, dst T) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	if !dst.valid() {
		return errMissingField
	}
	return nil
}
