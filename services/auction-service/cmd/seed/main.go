// Command seed prepares a local environment: it registers a user, optionally
// opens an auction for them, and prints an access token for that user.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auction-live/pkg/auth"
	"github.com/floroz/auction-live/pkg/money"
	"github.com/floroz/auction-live/services/auction-service/internal/adapters/database"
	"github.com/floroz/auction-live/services/auction-service/internal/config"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	name := flag.String("name", "Local User", "display name of the user")
	userFlag := flag.String("user", "", "user id (random when empty)")
	title := flag.String("auction", "", "open an auction with this title for the user")
	basePrice := flag.String("base-price", "100.00", "auction base price")
	duration := flag.Duration("duration", 24*time.Hour, "auction length")
	flag.Parse()

	if err := run(*name, *userFlag, *title, *basePrice, *duration); err != nil {
		logger.Error("Seed failed", "error", err)
		os.Exit(1)
	}
}

func run(name, userFlag, title, basePrice string, duration time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAuth(); err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%w: AUCTION_DB_URL", config.ErrMissingSetting)
	}

	privateKeyPath := os.Getenv("AUTH_PRIVATE_KEY_PATH")
	if privateKeyPath == "" {
		return fmt.Errorf("%w: AUTH_PRIVATE_KEY_PATH", config.ErrMissingSetting)
	}
	privateKeyPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read private key: %w", err)
	}
	publicKeyPEM, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	signer, err := auth.NewSigner(privateKeyPEM, publicKeyPEM, cfg.JWTIssuer)
	if err != nil {
		return fmt.Errorf("failed to create signer: %w", err)
	}

	userID := uuid.New()
	if userFlag != "" {
		if userID, err = uuid.Parse(userFlag); err != nil {
			return fmt.Errorf("invalid user id: %w", err)
		}
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("unable to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := database.NewPostgresUserDirectory(pool).UpsertUser(ctx, userID, name); err != nil {
		return err
	}

	if title != "" {
		base, err := money.Parse(basePrice)
		if err != nil {
			return fmt.Errorf("invalid base price: %w", err)
		}
		now := time.Now().UTC()
		auction := &auctions.Auction{
			ID:        uuid.New(),
			SellerID:  userID,
			Title:     title,
			BasePrice: base,
			Quantity:  1,
			Status:    auctions.AuctionStatusAvailable,
			IsAuction: true,
			EndAt:     now.Add(duration),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := database.NewPostgresAuctionRepository(pool).CreateAuction(ctx, auction); err != nil {
			return err
		}
		fmt.Printf("auction_id=%s\n", auction.ID)
	}

	token, expiresAt, err := signer.GenerateToken(userID, name, nil)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	fmt.Printf("user_id=%s\ntoken=%s\nexpires_at=%s\n", userID, token, expiresAt.Format(time.RFC3339))
	return nil
}
