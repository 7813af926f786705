package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumensave/lumensave/internal/api"
	"github.com/lumensave/lumensave/internal/config"
	"github.com/lumensave/lumensave/internal/envelope"
	"github.com/lumensave/lumensave/internal/keystore"
	"github.com/lumensave/lumensave/internal/ledger"
	"github.com/lumensave/lumensave/internal/logger"
	"github.com/lumensave/lumensave/internal/masterkey"
	"github.com/lumensave/lumensave/internal/middleware"
	"github.com/lumensave/lumensave/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Load the master key once; it lives read-only for the process lifetime.
	// A malformed key prevents startup entirely.
	key, err := masterkey.Load(context.Background(), &masterkey.Config{
		Source:             cfg.MasterKeySource,
		KeyHex:             cfg.MasterKeyHex,
		AWSKMSKeyID:        cfg.KMSKeyID,
		AWSKMSRegion:       cfg.KMSRegion,
		AWSEncryptedKeyB64: cfg.KMSEncryptedKeyB64,
		VaultAddress:       cfg.VaultAddress,
		VaultToken:         cfg.VaultToken,
		VaultSecretPath:    cfg.VaultSecretPath,
		VaultKeyField:      cfg.VaultKeyField,
		ShamirShares:       cfg.ShamirShares,
	})
	if err != nil {
		slog.Error("failed to load master key", "source", cfg.MasterKeySource, "error", err)
		os.Exit(1)
	}

	cipher, err := envelope.NewCipher(key)
	envelope.Zero(key)
	if err != nil {
		slog.Error("failed to initialize envelope cipher", "error", err)
		os.Exit(1)
	}

	slog.Info("loaded master key", "source", cfg.MasterKeySource)

	// Select the persistence backend at construction time. Demo mode uses
	// the in-process store with the same real keypair generation; there is
	// no shared demo secret.
	var walletStore keystore.WalletStore
	if cfg.DemoMode {
		walletStore = storage.NewMemoryWalletStore()
		slog.Warn("demo mode: using in-memory wallet store, records will not survive restart")
	} else {
		store, err := storage.New(cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		walletStore = storage.NewWalletRepository(store)
		slog.Info("connected to database")
	}

	stellar, err := ledger.NewStellar(cfg.NetworkPassphrase)
	if err != nil {
		slog.Error("failed to initialize ledger backend", "error", err)
		os.Exit(1)
	}

	keyStore := keystore.NewService(cipher, walletStore, stellar)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled)
	server := api.NewServer(cfg, keyStore, rateLimiter)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}
	}
}
