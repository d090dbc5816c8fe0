package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const placeholderMarker = "YOUR_"

type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"local"`
	Port   string `env:"PORT" envDefault:"8080"`

	SupabaseURL     string `env:"SUPABASE_URL" envDefault:"https://YOUR_SUPABASE_URL"`
	SupabaseAnonKey string `env:"SUPABASE_ANON_KEY" envDefault:"YOUR_SUPABASE_ANON_KEY"`
	DatabaseURL     string `env:"DATABASE_URL"`
	LocalStorePath  string `env:"LOCAL_STORE_PATH" envDefault:"./data/snowclicker.db"`
	PersistenceMode string `env:"PERSISTENCE_MODE"`

	TelegramBotToken string        `env:"TELEGRAM_BOT_TOKEN" envDefault:"YOUR_TELEGRAM_BOT_TOKEN"`
	InitDataMaxAge   time.Duration `env:"INIT_DATA_MAX_AGE" envDefault:"24h"`
	SessionSecret    string        `env:"SESSION_SECRET"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	TickInterval       time.Duration `env:"TICK_INTERVAL" envDefault:"100ms"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	HTTPTimeout        time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Println("Config: skipping", file+":", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TickInterval <= 0 {
		return Config{}, fmt.Errorf("parse env: TICK_INTERVAL must be positive")
	}
	return cfg, nil
}

// PersistenceMode selects where every save and load of the process goes.
type PersistenceMode int

const (
	ModeLocal PersistenceMode = iota
	ModeRemote
	ModeDatabase
)

func (m PersistenceMode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeRemote:
		return "remote"
	case ModeDatabase:
		return "database"
	default:
		return fmt.Sprintf("PersistenceMode(%d)", int(m))
	}
}

func ParsePersistenceMode(value string) (PersistenceMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "local", "mock":
		return ModeLocal, nil
	case "remote", "supabase":
		return ModeRemote, nil
	case "database", "postgres":
		return ModeDatabase, nil
	default:
		return 0, fmt.Errorf("unsupported persistence mode: %s", value)
	}
}

// ResolveMode picks the persistence mode once at startup. An explicit
// PERSISTENCE_MODE wins; otherwise a DATABASE_URL selects the database, and
// placeholder Supabase credentials fall back to the local store.
func ResolveMode(cfg Config) (PersistenceMode, error) {
	if strings.TrimSpace(cfg.PersistenceMode) != "" {
		mode, err := ParsePersistenceMode(cfg.PersistenceMode)
		if err != nil {
			return 0, err
		}
		if mode == ModeDatabase && strings.TrimSpace(cfg.DatabaseURL) == "" {
			return 0, errors.New("database persistence requires DATABASE_URL")
		}
		if mode == ModeRemote && cfg.RemotePlaceholder() {
			return 0, errors.New("remote persistence requires SUPABASE_URL and SUPABASE_ANON_KEY")
		}
		return mode, nil
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		return ModeDatabase, nil
	}
	if cfg.RemotePlaceholder() {
		return ModeLocal, nil
	}
	return ModeRemote, nil
}

func (c Config) RemotePlaceholder() bool {
	return isPlaceholder(c.SupabaseURL) || isPlaceholder(c.SupabaseAnonKey)
}

func (c Config) TelegramConfigured() bool {
	return !isPlaceholder(c.TelegramBotToken)
}

func isPlaceholder(value string) bool {
	value = strings.TrimSpace(value)
	return value == "" || strings.Contains(value, placeholderMarker)
}
