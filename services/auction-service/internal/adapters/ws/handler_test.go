package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floroz/auction-live/pkg/auth"
	"github.com/floroz/auction-live/pkg/testhelpers"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/memory"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
	"github.com/floroz/auction-live/services/auction-service/internal/realtime"
)

type testEnv struct {
	server  *httptest.Server
	signer  *auth.Signer
	store   *memory.Store
	broker  *realtime.Broker
	auction *auctions.Auction
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	auction := &auctions.Auction{
		ID:        uuid.New(),
		SellerID:  uuid.New(),
		Title:     "Film camera",
		BasePrice: 10000,
		Quantity:  1,
		Status:    auctions.AuctionStatusAvailable,
		IsAuction: true,
		EndAt:     time.Now().Add(time.Hour),
	}
	store.PutAuction(auction)

	broker := realtime.NewBroker()
	resolver := auctions.NewResolver(store, store, store)
	service := auctions.NewAuctionService(resolver, store, store,
		auctions.WithNotifier(realtime.NewNotifier(broker)),
	)
	signer := testhelpers.NewTestSigner(t)

	server := httptest.NewServer(NewHandler(service, broker, signer))
	t.Cleanup(server.Close)

	return &testEnv{server: server, signer: signer, store: store, broker: broker, auction: auction}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http")
}

// dial connects as userID, passing the token in the query string
func (e *testEnv) dial(t *testing.T, userID uuid.UUID, name string) *websocket.Conn {
	t.Helper()
	e.store.PutUser(userID, name)
	token := testhelpers.NewTestToken(t, e.signer, userID, name)
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL()+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func sendFrame(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": typ, "data": data}))
}

// readUntil skips frames until one of the wanted type arrives
func readUntil(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", typ)
		if f.Type == typ {
			return f
		}
	}
}

func TestHandler_RejectsUnauthenticated(t *testing.T) {
	env := newTestEnv(t)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(env.wsURL()+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_AcceptsBearerHeader(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()
	token := testhelpers.NewTestToken(t, env.signer, userID, "Header")

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.Dial(env.wsURL(), header)
	require.NoError(t, err)
	defer conn.Close()

	f := readUntil(t, conn, realtime.TypeUserStatusChange)
	var status realtime.UserStatusPayload
	require.NoError(t, json.Unmarshal(f.Data, &status))
	assert.Equal(t, userID, status.UserID)
	assert.Equal(t, realtime.StatusOnline, status.Status)
}

func TestHandler_BiddingFlow(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := uuid.New(), uuid.New()

	seller := env.dial(t, env.auction.SellerID, "Seller")
	aliceConn := env.dial(t, alice, "Alice")
	bobConn := env.dial(t, bob, "Bob")

	for _, c := range []*websocket.Conn{aliceConn, bobConn} {
		sendFrame(t, c, realtime.TypeJoinBidding, map[string]any{"auctionId": env.auction.ID})
		f := readUntil(t, c, realtime.TypeAuctionStatus)
		var status realtime.AuctionStatusPayload
		require.NoError(t, json.Unmarshal(f.Data, &status))
		assert.Equal(t, env.auction.ID, status.AuctionID)
		assert.Equal(t, "100.00", status.CurrentPrice)
		assert.False(t, status.HasEnded)
		assert.Positive(t, status.EndsInMs)
	}

	sendFrame(t, aliceConn, realtime.TypePlaceBid, map[string]any{
		"auctionId": env.auction.ID,
		"bidAmount": 110.5,
	})

	for _, c := range []*websocket.Conn{aliceConn, bobConn} {
		f := readUntil(t, c, realtime.TypeNewBid)
		var bid realtime.NewBidPayload
		require.NoError(t, json.Unmarshal(f.Data, &bid))
		assert.Equal(t, "110.50", bid.BidAmount)
		assert.Equal(t, alice, bid.BidderID)
		assert.Equal(t, "Alice", bid.BidderName)
	}

	f := readUntil(t, seller, realtime.TypeSellerNotified)
	var notified realtime.SellerNotifiedPayload
	require.NoError(t, json.Unmarshal(f.Data, &notified))
	assert.Equal(t, "Film camera", notified.AuctionTitle)
	assert.Equal(t, "110.50", notified.BidAmount)

	// a losing bid goes back to the submitter only
	sendFrame(t, bobConn, realtime.TypePlaceBid, map[string]any{
		"auctionId": env.auction.ID,
		"bidAmount": "105",
	})
	f = readUntil(t, bobConn, realtime.TypeBidRejected)
	var rejected realtime.BidRejectedPayload
	require.NoError(t, json.Unmarshal(f.Data, &rejected))
	assert.Equal(t, reasonBidTooLow, rejected.Reason)
	assert.False(t, rejected.Retryable)

	// the seller cannot bid
	sendFrame(t, seller, realtime.TypePlaceBid, map[string]any{
		"auctionId": env.auction.ID,
		"bidAmount": "500",
	})
	f = readUntil(t, seller, realtime.TypeBidRejected)
	require.NoError(t, json.Unmarshal(f.Data, &rejected))
	assert.Equal(t, reasonSelfBid, rejected.Reason)

	// leave, then a new bid reaches bob but not alice
	sendFrame(t, aliceConn, realtime.TypeLeaveBidding, env.auction.ID)
	require.Eventually(t, func() bool {
		return len(env.broker.ConnectionsFor(env.auction.ID)) == 1
	}, time.Second, 10*time.Millisecond)

	sendFrame(t, bobConn, realtime.TypePlaceBid, map[string]any{
		"auctionId": env.auction.ID,
		"bidAmount": "120",
	})
	f = readUntil(t, bobConn, realtime.TypeNewBid)
	var bid realtime.NewBidPayload
	require.NoError(t, json.Unmarshal(f.Data, &bid))
	assert.Equal(t, "120.00", bid.BidAmount)

	bids, err := env.store.ListFor(t.Context(), env.auction.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 2)
}

func TestHandler_InvalidMessages(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t, uuid.New(), "Eve")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	readUntil(t, conn, realtime.TypeError)

	sendFrame(t, conn, "dance", nil)
	readUntil(t, conn, realtime.TypeError)

	sendFrame(t, conn, realtime.TypeJoinBidding, map[string]any{"auctionId": uuid.New()})
	f := readUntil(t, conn, realtime.TypeError)
	var payload realtime.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Contains(t, payload.Message, "not found")

	sendFrame(t, conn, realtime.TypePlaceBid, map[string]any{"auctionId": env.auction.ID, "bidAmount": "-3"})
	f = readUntil(t, conn, realtime.TypeBidRejected)
	var rejected realtime.BidRejectedPayload
	require.NoError(t, json.Unmarshal(f.Data, &rejected))
	assert.Equal(t, reasonInvalidAmount, rejected.Reason)

	// a bid without a usable auction id is a malformed request, not a bad amount
	for _, data := range []any{
		map[string]any{"bidAmount": "150"},
		map[string]any{"auctionId": "not-a-uuid", "bidAmount": "150"},
	} {
		sendFrame(t, conn, realtime.TypePlaceBid, data)
		f = readUntil(t, conn, realtime.TypeError)
		require.NoError(t, json.Unmarshal(f.Data, &payload))
		assert.Equal(t, "auctionId is required", payload.Message)
	}
}

func TestHandler_PresenceQueries(t *testing.T) {
	env := newTestEnv(t)
	alice, bob := uuid.New(), uuid.New()
	aliceConn := env.dial(t, alice, "Alice")
	bobConn := env.dial(t, bob, "Bob")
	readUntil(t, bobConn, realtime.TypeUserStatusChange)

	sendFrame(t, aliceConn, realtime.TypeHeartbeat, nil)

	sendFrame(t, aliceConn, realtime.TypeCheckUserStatus, map[string]any{"userId": bob})
	f := readUntil(t, aliceConn, realtime.TypeUserStatus)
	var status realtime.UserStatusPayload
	require.NoError(t, json.Unmarshal(f.Data, &status))
	assert.Equal(t, bob, status.UserID)
	assert.Equal(t, realtime.StatusOnline, status.Status)

	sendFrame(t, aliceConn, realtime.TypeGetOnlineUsers, nil)
	f = readUntil(t, aliceConn, realtime.TypeOnlineUsers)
	var online []uuid.UUID
	require.NoError(t, json.Unmarshal(f.Data, &online))
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, online)

	// bob disconnects and alice hears about it
	require.NoError(t, bobConn.Close())
	require.Eventually(t, func() bool { return !env.broker.IsOnline(bob) }, 2*time.Second, 10*time.Millisecond)

	sendFrame(t, aliceConn, realtime.TypeCheckUserStatus, bob.String())
	f = readUntil(t, aliceConn, realtime.TypeUserStatus)
	require.NoError(t, json.Unmarshal(f.Data, &status))
	assert.Equal(t, realtime.StatusOffline, status.Status)
}

func TestReasonFor(t *testing.T) {
	tests := []struct {
		err       error
		code      string
		retryable bool
	}{
		{auctions.ErrAuctionNotFound, reasonNotFound, false},
		{auctions.ErrAuctionClosed, reasonAuctionClosed, false},
		{auctions.ErrBusy, reasonBusy, true},
		{assert.AnError, reasonInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			r := reasonFor(tt.err)
			assert.Equal(t, tt.code, r.Code)
			assert.Equal(t, tt.retryable, r.Retryable)
		})
	}
	assert.Equal(t, "internal error", reasonFor(assert.AnError).Message)
}
