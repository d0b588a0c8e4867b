package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"github.com/santimundi-aideology/v0-investor-portfolio-os-sub005/internal/config"
)

func main() {
	fmt.Println("🔧 Validating alert dispatch configuration...")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: Could not load .env file: %v\n", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if !cfg.Alerts.Enabled {
		fmt.Println("⚠️  alerts.enabled is false; the dispatcher will stay inert")
	}

	// Check if the Telegram bot token is configured
	if cfg.Alerts.TelegramBotToken == "" {
		fmt.Println("❌ ALERTS_TELEGRAM_BOT_TOKEN is not configured")
		os.Exit(1)
	}

	fmt.Printf("✅ ALERTS_TELEGRAM_BOT_TOKEN is configured (length: %d)\n", len(cfg.Alerts.TelegramBotToken))

	// Try to create bot instance
	b, err := bot.New(cfg.Alerts.TelegramBotToken)
	if err != nil {
		fmt.Printf("❌ Failed to create Telegram bot: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Telegram bot created successfully")

	fmt.Printf("✅ alerts.min_relevance: %.2f\n", cfg.Alerts.MinRelevance)

	// Try to get bot info (this makes an actual API call)
	fmt.Println("🔍 Testing bot API connection...")
	ctx := context.Background()
	botInfo, err := b.GetMe(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get bot info: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Bot API connection successful!\n")
	fmt.Printf("   Bot Name: %s\n", botInfo.FirstName)
	fmt.Printf("   Bot Username: @%s\n", botInfo.Username)
	fmt.Printf("   Bot ID: %d\n", botInfo.ID)

	fmt.Println("\n🎉 All alert dispatch configuration checks passed!")
}
