package main

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheRealTwizzy/snow_clicker/internal/supabase"
)

const shutdownTimeout = 10 * time.Second

// backend bundles the store chosen for the process and the optional
// capabilities it also provides.
type backend struct {
	store     Store
	profiles  ProfileSource
	rating    RatingSource
	telemetry TelemetrySink
	closer    io.Closer
}

func openBackend(ctx context.Context, cfg Config, mode PersistenceMode) (*backend, error) {
	switch mode {
	case ModeLocal:
		store, err := OpenLocalStore(cfg.LocalStorePath)
		if err != nil {
			return nil, err
		}
		log.Println("Persistence: local store at", cfg.LocalStorePath)
		return &backend{store: store, profiles: store, closer: store}, nil
	case ModeRemote:
		client := supabase.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.HTTPTimeout)
		store := NewRemoteStore(client, time.Now)
		log.Println("Persistence: remote store at", cfg.SupabaseURL)
		return &backend{store: store, profiles: store}, nil
	case ModeDatabase:
		store, err := OpenPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("Persistence: connected to PostgreSQL")
		return &backend{store: store, profiles: store, rating: store, telemetry: store, closer: store}, nil
	default:
		return nil, errors.New("unsupported persistence mode: " + mode.String())
	}
}

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	log.Println("App environment:", cfg.AppEnv)

	flags, err := loadFeatureFlags()
	if err != nil {
		log.Fatal("Failed to load feature flags:", err)
	}

	mode, err := ResolveMode(cfg)
	if err != nil {
		log.Fatal("Failed to resolve persistence mode:", err)
	}
	log.Println("Persistence mode:", mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, mode)
	if err != nil {
		log.Fatal("Failed to open store:", err)
	}
	if be.closer != nil {
		defer be.closer.Close()
	}

	auth, err := NewAuthenticator(cfg.SessionSecret, cfg.SessionTTL, time.Now)
	if err != nil {
		log.Fatal("Failed to set up auth:", err)
	}

	botToken := ""
	if cfg.TelegramConfigured() {
		botToken = cfg.TelegramBotToken
	} else {
		log.Println("WARN: TELEGRAM_BOT_TOKEN not set; sessions use the demo user")
	}

	telemetry := NewTelemetry(flags.Telemetry, be.telemetry, time.Now)
	roller := rand.New(rand.NewSource(time.Now().UnixNano()))

	sessions := NewSessionManager(ctx, SessionManagerConfig{
		Mode:        mode,
		Store:       be.store,
		Profiles:    be.profiles,
		Engine:      EngineOptions{Prices: DefaultBoostPrices(), Clock: time.Now},
		Telemetry:   telemetry,
		IdleTimeout: cfg.SessionIdleTimeout,
	})

	app := &App{
		Sessions:       sessions,
		Auth:           auth,
		Flags:          flags,
		Rating:         be.rating,
		SeededRating:   seededRating(roller, ratingSize),
		Telemetry:      telemetry,
		Mode:           mode,
		Streams:        newStreamSet(),
		BotToken:       botToken,
		InitDataMaxAge: cfg.InitDataMaxAge,
		Now:            time.Now,
	}

	startTickLoop(ctx, sessions, cfg.TickInterval)

	mux := http.NewServeMux()
	registerRoutes(mux, app)

	addr := "0.0.0.0:" + cfg.Port
	server := &http.Server{Addr: addr, Handler: mux}
	server.RegisterOnShutdown(app.Streams.Close)

	serveErr := make(chan error, 1)
	go func() {
		log.Println("Listening on", addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed:", err)
		}
	}
	drain(server, app.Streams, sessions, shutdownTimeout)
}

// drain stops the server in order: no new requests, in-flight handlers and
// live streams finished, then every session flushed to the store.
func drain(server *http.Server, streams *streamSet, sessions *SessionManager, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Println("Shutdown: server:", err)
	}
	streams.Close()
	if err := streams.Wait(ctx); err != nil {
		log.Println("Shutdown: streams still open:", err)
	}
	sessions.CloseAll(ctx)
	log.Println("Shutdown: sessions flushed")
}

/* ======================
   Routes
   ====================== */

func registerRoutes(mux *http.ServeMux, app *App) {
	mux.HandleFunc("/health", healthHandler(app))
	mux.HandleFunc("/api/session", sessionHandler(app))
	mux.HandleFunc("/api/state", stateHandler(app))
	mux.HandleFunc("/api/click", clickHandler(app))
	mux.HandleFunc("/api/boost", boostHandler(app))
	mux.HandleFunc("/api/claim", claimHandler(app))
	mux.HandleFunc("/api/gift", giftHandler(app))
	mux.HandleFunc("/api/event", eventHandler(app))
	mux.HandleFunc("/api/pay", payHandler(app))
	mux.HandleFunc("/api/rating", ratingHandler(app))
	mux.HandleFunc("/events", eventsHandler(app))
	mux.HandleFunc("/ws", wsHandler(app))
}
