package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/TheRealTwizzy/snow_clicker/internal/supabase"
)

type Config struct {
	TelegramBotToken       string        `env:"TELEGRAM_BOT_TOKEN" envDefault:"YOUR_TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL         string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	SupabaseURL            string        `env:"SUPABASE_URL" envDefault:"https://YOUR_SUPABASE_URL"`
	SupabaseServiceRoleKey string        `env:"SUPABASE_SERVICE_ROLE_KEY" envDefault:"YOUR_SUPABASE_SERVICE_ROLE_KEY"`
	WebAppURL              string        `env:"WEBAPP_URL" envDefault:"https://YOUR_WEBAPP_URL"`
	PollTimeout            time.Duration `env:"BOT_POLL_TIMEOUT" envDefault:"30s"`
	HTTPTimeout            time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
}

func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logError(fmt.Sprintf("skipping .env: %v", err))
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func isPlaceholder(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.Contains(value, "YOUR_")
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logError(err.Error())
		os.Exit(1)
	}
	if isPlaceholder(cfg.TelegramBotToken) {
		logError("set TELEGRAM_BOT_TOKEN before starting the bot")
	}

	var users UserUpserter
	if isPlaceholder(cfg.SupabaseURL) {
		logInfo("SUPABASE_URL not set; users are not registered")
	} else {
		users = supabase.New(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.HTTPTimeout)
	}

	// Long polls hold the request open for PollTimeout.
	tg := NewTelegramClient(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.PollTimeout+cfg.HTTPTimeout)
	launcher := NewLauncher(tg, users, cfg.WebAppURL, cfg.PollTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logInfo("bot launcher polling for updates")
	if err := launcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logError(fmt.Sprintf("launcher stopped: %v", err))
		os.Exit(1)
	}
	logInfo("bot launcher stopped")
}

func logInfo(message string) {
	fmt.Printf("[INFO] %s %s\n", time.Now().Format(time.RFC3339), message)
}

func logError(message string) {
	fmt.Printf("[ERROR] %s %s\n", time.Now().Format(time.RFC3339), message)
}
