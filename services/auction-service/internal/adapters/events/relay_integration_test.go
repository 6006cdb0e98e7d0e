//go:build integration

package events_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	pkgdb "github.com/floroz/auction-live/pkg/database"
	pkgevents "github.com/floroz/auction-live/pkg/events"
	"github.com/floroz/auction-live/pkg/testhelpers"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/database"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/events"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

// TestBidEventsProducerWithRabbitMQ commits a bid and expects its event on the exchange
func TestBidEventsProducerWithRabbitMQ(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// 1. Start RabbitMQ
	rabbitmqContainer, err := rabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
		rabbitmq.WithAdminPassword("password"),
	)
	require.NoError(t, err)
	defer func() {
		if termErr := rabbitmqContainer.Terminate(ctx); termErr != nil {
			t.Fatalf("failed to terminate container: %s", termErr)
		}
	}()

	amqpURL, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// 2. Setup Postgres
	testDB := testhelpers.NewTestDatabase(t, "../../../migrations")
	defer testDB.Close()
	pool := testDB.Pool

	// 3. Bind a queue before anything is published
	conn, err := amqp091.Dial(amqpURL)
	require.NoError(t, err)
	defer conn.Close()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.ExchangeDeclare(events.DefaultExchange, "topic", true, false, false, false, nil))
	q, err := ch.QueueDeclare("", false, false, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, auctions.EventTypeBidPlaced, events.DefaultExchange, false, nil))
	msgs, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	require.NoError(t, err)

	// 4. Commit a bid through the outbox
	auctionRepo := database.NewPostgresAuctionRepository(pool)
	bidRepo := database.NewPostgresBidRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)
	committer := database.NewPostgresBidCommitter(pkgdb.NewPostgresTransactionManager(pool, time.Second), bidRepo, outboxRepo)

	now := time.Now().UTC().Truncate(time.Microsecond)
	auction := &auctions.Auction{
		ID: uuid.New(), SellerID: uuid.New(), Title: "Bike", BasePrice: 5000, Quantity: 1,
		Status: auctions.AuctionStatusAvailable, IsAuction: true,
		EndAt: now.Add(time.Hour), CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, auctionRepo.CreateAuction(ctx, auction))

	bid := &auctions.Bid{ID: uuid.New(), AuctionID: auction.ID, BidderID: uuid.New(), Amount: 6000, CreatedAt: now}
	require.NoError(t, committer.CommitBid(ctx, bid))

	// 5. Run the producer
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	pubConn, err := amqp091.Dial(amqpURL)
	require.NoError(t, err)
	defer pubConn.Close()

	producer, err := events.NewBidEventsProducer(pool, pubConn, "", logger)
	require.NoError(t, err)
	defer producer.Close()

	ctxRelay, cancelRelay := context.WithCancel(ctx)
	defer cancelRelay()
	go func() {
		_ = producer.Run(ctxRelay)
	}()

	// 6. Verify the message
	select {
	case msg := <-msgs:
		assert.Equal(t, auctions.EventTypeBidPlaced, msg.RoutingKey)
		assert.Equal(t, auctions.EventTypeBidPlaced, msg.Type)
		event, err := auctions.UnmarshalBidPlaced(msg.Body)
		require.NoError(t, err)
		assert.Equal(t, bid.ID, event.BidID)
		assert.Equal(t, int64(6000), event.Amount)
	case <-time.After(10 * time.Second):
		t.Fatal("Timeout waiting for message from RabbitMQ")
	}

	// 7. The outbox row is marked published
	require.Eventually(t, func() bool {
		var status string
		err := pool.QueryRow(ctx, "SELECT status::text FROM outbox_events WHERE event_type = $1", auctions.EventTypeBidPlaced).Scan(&status)
		return err == nil && status == string(pkgevents.OutboxStatusPublished)
	}, 2*time.Second, 100*time.Millisecond, "Event status should be updated to 'published'")
}
