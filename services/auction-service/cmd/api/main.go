package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/auction-live/pkg/auth"
	pkgdb "github.com/floroz/auction-live/pkg/database"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/api"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/cache"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/database"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/events"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/memory"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/ws"
	"github.com/floroz/auction-live/services/auction-service/internal/config"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
	"github.com/floroz/auction-live/services/auction-service/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

// ports bundles the adapters the domain needs
type ports struct {
	catalog   auctions.AuctionCatalog
	ledger    auctions.BidLedger
	committer auctions.BidCommitter
	directory auctions.Directory
}

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Auction service failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Auction service stopped")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAuth(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Load JWT public key for token validation
	publicKeyPEM, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKeyPEM, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("failed to load public key: %w", err)
	}
	logger.Info("JWT public key loaded", "path", cfg.JWTPublicKeyPath)

	g, ctx := errgroup.WithContext(ctx)

	// 2. Storage adapters
	var p ports
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = connectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("Postgres Connected")

		txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.BidLockTimeout)
		bidRepo := database.NewPostgresBidRepository(pool)
		p = ports{
			catalog:   database.NewPostgresAuctionRepository(pool),
			ledger:    bidRepo,
			committer: database.NewPostgresBidCommitter(txManager, bidRepo, database.NewPostgresOutboxRepository(pool)),
			directory: database.NewPostgresUserDirectory(pool),
		}
	} else {
		logger.Warn("AUCTION_DB_URL is not set, using in-memory storage")
		store := memory.NewStore()
		p = ports{catalog: store, ledger: store, committer: store, directory: store}
	}

	// 3. Optional Redis cache for display names
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, names will not be cached", "error", err)
		} else {
			logger.Info("Redis Connected")
			p.directory = cache.NewNameCache(rdb, p.directory, cfg.NameCacheTTL, logger)
		}
	}

	// 4. Outbox relay runs here when the broker is configured
	if pool != nil && cfg.RabbitMQURL != "" {
		amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer amqpConn.Close()
		logger.Info("RabbitMQ Connected")

		producer, err := events.NewBidEventsProducer(pool, amqpConn, cfg.OutboxExchange, logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		g.Go(func() error {
			logger.Info("Starting Bid Events Producer...")
			return producer.Run(ctx)
		})
	}

	// 5. Realtime broker and domain services
	broker := realtime.NewBroker(
		realtime.WithPresenceTimeout(cfg.PresenceTimeout),
		realtime.WithSweepInterval(cfg.PresenceSweepInterval),
		realtime.WithBrokerLogger(logger),
	)
	g.Go(func() error { return broker.Run(ctx) })

	resolver := auctions.NewResolver(p.catalog, p.ledger, p.directory, auctions.WithLogger(logger))
	service := auctions.NewAuctionService(resolver, p.ledger, p.committer,
		auctions.WithLockTimeout(cfg.BidLockTimeout),
		auctions.WithNotifier(realtime.NewNotifier(broker)),
		auctions.WithLogger(logger),
	)

	// 6. Transports
	mux := http.NewServeMux()
	path, handler := api.NewHandler(api.NewAuctionServiceHandler(service), signer)
	mux.Handle(path, handler)
	mux.Handle("/ws", ws.NewHandler(service, broker, signer, ws.WithLogger(logger)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Use h2c for HTTP/2 without TLS (common for internal services / local dev)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting Auction Service API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func connectPostgres(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	dbConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}
