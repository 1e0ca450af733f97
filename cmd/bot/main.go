package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dodogate/dodogate/internal/bot"
	"github.com/dodogate/dodogate/internal/setup"
	"github.com/dodogate/dodogate/internal/setup/logging"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize application with required dependencies
	app, err := setup.InitializeApp(ctx, logging.ServiceBot, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	// Create bot instance
	discordBot, err := bot.New(&app.Config.Bot, app.DB, app.RedisManager, app.Logger)
	if err != nil {
		log.Printf("Failed to create bot: %v", err)
		return
	}

	// Start the bot and connect to Discord
	if err := discordBot.Start(ctx); err != nil {
		log.Printf("Failed to start bot: %v", err)
		return
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt signal to gracefully shutdown the bot
	// This ensures all pending events are processed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Stop the monitor before the gateway closes
	cancel()

	// Cleanly close down the Discord session
	discordBot.Close(context.Background())
}
