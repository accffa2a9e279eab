package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iM5LB/dbot/internal/config"
	"github.com/iM5LB/dbot/internal/db"
	"github.com/iM5LB/dbot/internal/discord"
	"github.com/iM5LB/dbot/internal/gameserver"
	"github.com/iM5LB/dbot/internal/gift"
	"github.com/iM5LB/dbot/internal/item"
	"github.com/iM5LB/dbot/internal/ledger"
	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/minecraft"
	"github.com/iM5LB/dbot/internal/notify"
	"github.com/iM5LB/dbot/internal/purchase"
	"github.com/iM5LB/dbot/internal/server"
	"github.com/iM5LB/dbot/internal/settings"
	"github.com/iM5LB/dbot/internal/user"
	"github.com/iM5LB/dbot/internal/worker"
)

func main() {
	logger.Init()
	logger.Info("Starting dbot")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	ledgerRepo := ledger.NewRepository(database)
	userRepo := user.NewRepository(database)
	itemRepo := item.NewRepository(database)
	purchaseRepo := purchase.NewRepository(database, ledgerRepo)
	giftRepo := gift.NewRepository(database, ledgerRepo)
	serverRepo := gameserver.NewRepository(database)
	settingsRepo := settings.NewRepository(database)

	mcClient := minecraft.NewClient()

	bot, err := discord.NewBot(cfg.DiscordToken, cfg.CommandPrefix)
	if err != nil {
		logger.Fatalf("Failed to create Discord session: %v", err)
	}

	notifier := notify.New(cfg.RedisAddr, bot)
	defer notifier.Close()

	buyService := purchase.NewService(purchaseRepo, itemRepo, userRepo, ledgerRepo)

	earner := discord.NewEarner(userRepo, ledgerRepo, settingsRepo)
	commands := discord.NewCommands(cfg.CommandPrefix, userRepo, itemRepo, buyService, giftRepo, serverRepo, mcClient)
	bot.RegisterEarnHandler(earner)
	bot.RegisterCommandHandler(commands)

	if err := bot.Open(); err != nil {
		logger.Fatalf("Failed to connect to Discord: %v", err)
	}
	defer bot.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go notifier.Start(ctx)

	fulfillWorker := worker.New(
		purchaseRepo, itemRepo, userRepo, bot, mcClient, serverRepo, notifier,
		worker.RCONTarget{
			Host:     cfg.RCONHost,
			Port:     cfg.RCONPort,
			Password: cfg.RCONPassword,
		},
		cfg.FulfillInterval,
	)
	fulfillWorker.Start(ctx)

	poller := gameserver.NewPoller(serverRepo, mcClient, cfg.StatusPollInterval)
	poller.Start(ctx)

	srv := server.New(database, cfg, fulfillWorker, mcClient)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
