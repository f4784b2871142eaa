package main

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"compliment_bot/internal/bitrix24"
	"compliment_bot/internal/bot"
	"compliment_bot/internal/config"
	"compliment_bot/internal/dispatch"
	"compliment_bot/internal/generator"
	"compliment_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("load timezone", "timezone", cfg.Timezone, "error", err)
		os.Exit(1)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	gen, err := generator.New(cfg, newGeneratorClient(cfg), log)
	if err != nil {
		log.Error("create generator", "provider", cfg.GeneratorProvider, "error", err)
		os.Exit(1)
	}

	b24 := bitrix24.New(http.DefaultClient, log,
		cfg.Bitrix24PortalURL, cfg.Bitrix24WebhookUserID, cfg.Bitrix24WebhookToken)

	b, err := bot.New(cfg.TelegramBotToken, store, gen, b24, cfg, loc, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	engine := dispatch.New(store, b.Compliments(), loc, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "provider", cfg.GeneratorProvider, "bitrix24", b24.IsConfigured())

	go func() {
		if err := engine.Run(ctx); err != nil {
			log.Error("dispatch engine", "error", err)
		}
	}()

	b.Run(ctx)

	log.Info("bot stopped")
}

// newGeneratorClient returns the HTTP client for the generation provider.
// The GigaChat endpoints present certificates from the Russian trust store,
// which is usually absent from the host, so verification is skipped there.
func newGeneratorClient(cfg *config.Config) *http.Client {
	client := &http.Client{Timeout: 60 * time.Second}
	if cfg.GeneratorProvider == config.ProviderGigaChat {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
