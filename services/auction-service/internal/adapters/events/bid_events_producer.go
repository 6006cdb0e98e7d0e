// Package events relays committed bid events from the outbox to RabbitMQ.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	pkgdb "github.com/floroz/auction-live/pkg/database"
	pkgevents "github.com/floroz/auction-live/pkg/events"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/database"
)

// DefaultExchange receives every auction event; routing keys are event types
const DefaultExchange = "auction.events"

const (
	relayBatchSize = 10
	relayInterval  = 500 * time.Millisecond
)

// BidEventsProducer relays bid events from the outbox to RabbitMQ
type BidEventsProducer struct {
	relay     *pkgevents.OutboxRelay
	publisher *pkgevents.RabbitMQPublisher
}

// NewBidEventsProducer creates a new producer
func NewBidEventsProducer(pool *pgxpool.Pool, conn *amqp.Connection, exchange string, logger *slog.Logger) (*BidEventsProducer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	publisher, err := pkgevents.NewRabbitMQPublisher(conn, exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		publisher,
		txManager,
		relayBatchSize,
		relayInterval,
		exchange,
		logger,
	)

	return &BidEventsProducer{
		relay:     relay,
		publisher: publisher,
	}, nil
}

// Run starts the relay loop
func (p *BidEventsProducer) Run(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// Close closes the publisher channel
func (p *BidEventsProducer) Close() error {
	return p.publisher.Close()
}
