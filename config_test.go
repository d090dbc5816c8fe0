package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveMode(t *testing.T) {
	live := Config{SupabaseURL: "https://abc.supabase.co", SupabaseAnonKey: "anon"}
	placeholder := Config{SupabaseURL: "https://YOUR_SUPABASE_URL", SupabaseAnonKey: "YOUR_SUPABASE_ANON_KEY"}

	cases := []struct {
		name    string
		cfg     Config
		want    PersistenceMode
		wantErr bool
	}{
		{name: "placeholders fall back to local", cfg: placeholder, want: ModeLocal},
		{name: "empty credentials fall back to local", cfg: Config{}, want: ModeLocal},
		{name: "real credentials go remote", cfg: live, want: ModeRemote},
		{name: "database url wins", cfg: Config{SupabaseURL: live.SupabaseURL, SupabaseAnonKey: "anon", DatabaseURL: "postgres://x"}, want: ModeDatabase},
		{name: "explicit local", cfg: Config{PersistenceMode: "mock", SupabaseURL: live.SupabaseURL, SupabaseAnonKey: "anon"}, want: ModeLocal},
		{name: "explicit remote with placeholders", cfg: Config{PersistenceMode: "remote", SupabaseURL: placeholder.SupabaseURL}, wantErr: true},
		{name: "explicit database without url", cfg: Config{PersistenceMode: "postgres"}, wantErr: true},
		{name: "unknown mode", cfg: Config{PersistenceMode: "carrier-pigeon"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveMode(tc.cfg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got mode %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("PERSISTENCE_MODE", "local")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" || cfg.TickInterval != 250*time.Millisecond || cfg.PersistenceMode != "local" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigReadsDotEnvFile(t *testing.T) {
	if _, ok := os.LookupEnv("LOCAL_STORE_PATH"); ok {
		t.Skip("LOCAL_STORE_PATH set in the environment")
	}
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOCAL_STORE_PATH=/tmp/from-dotenv.db\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("LOCAL_STORE_PATH") })

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LocalStorePath != "/tmp/from-dotenv.db" {
		t.Fatalf("expected path from .env, got %q", cfg.LocalStorePath)
	}
}

func TestLoadConfigRejectsBadTickInterval(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "0s")
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for zero tick interval")
	}
}

func TestTelegramConfigured(t *testing.T) {
	if (Config{TelegramBotToken: "YOUR_TELEGRAM_BOT_TOKEN"}).TelegramConfigured() {
		t.Fatalf("placeholder token treated as configured")
	}
	if !(Config{TelegramBotToken: "123:abc"}).TelegramConfigured() {
		t.Fatalf("real token treated as placeholder")
	}
}

func TestFeatureFlagsFromEnv(t *testing.T) {
	t.Setenv("ENABLE_RATING", "false")
	t.Setenv("ENABLE_SEASONAL_EVENTS", "true")

	flags, err := loadFeatureFlags()
	if err != nil {
		t.Fatalf("loadFeatureFlags: %v", err)
	}
	if flags.Rating || !flags.SeasonalEvents {
		t.Fatalf("unexpected flags %+v", flags)
	}
}
