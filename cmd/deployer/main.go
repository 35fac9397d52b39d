package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deployer/internal/address"
	"deployer/internal/api"
	"deployer/internal/config"
	"deployer/internal/contracts/valuestore"
	"deployer/internal/factory"
	"deployer/internal/host"
	"deployer/internal/ledger"
	"deployer/internal/retry"
	"deployer/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("🌟 Starting Contract Deployer...")

	// 1. Load configuration
	_ = godotenv.Load()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Configure logger
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Configuration loaded",
		"network", cfg.NetworkPassphrase,
		"persistent", cfg.DatabaseURL != "",
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Open the store
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open store: %v", err)
	}
	defer store.Close()

	// 4. Create the ledger and install contracts
	deriver := address.NewDeriver(cfg.NetworkPassphrase)
	l := ledger.New(store, deriver)

	for _, code := range [][]byte{valuestore.Code, valuestore.CodeB} {
		if _, err := l.UploadCode(ctx, code, valuestore.Contract{}); err != nil {
			log.Fatalf("❌ Failed to upload code: %v", err)
		}
	}

	factoryID := sha256.Sum256([]byte(cfg.FactorySeed))
	factoryAddr, err := l.RegisterContract(ctx, factoryID, factory.Code, factory.NewContract(factory.New(deriver)))
	if err != nil && !errors.Is(err, host.ErrAddressAlreadyClaimed) {
		log.Fatalf("❌ Failed to register factory: %v", err)
	}
	slog.Info("✅ Factory ready",
		"factory", factoryAddr.String(),
		"valuestore_hash", host.HashCode(valuestore.Code).String(),
	)

	// 5. Start API server
	server := api.NewServer(cfg.APIPort, l, cfg.NetworkPassphrase, api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	if err := server.Start(); err != nil {
		log.Fatalf("❌ Failed to start API server: %v", err)
	}

	// 6. Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Warn("Interrupt received, shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error stopping API server", "error", err)
	}

	slog.Info("Deployer stopped")
}

// openStore connects to PostgreSQL when a database URL is configured and falls back
// to an in-memory store otherwise
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, ledger state is kept in memory")
		return storage.NewMemoryStore(), nil
	}

	var store *storage.PostgresStore
	strategy := retry.NewStrategy(cfg.Retry)
	err := strategy.Execute(ctx, "database connect", func(ctx context.Context) error {
		var err error
		store, err = storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Database connected successfully")
	return store, nil
}
