package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"newswatch/internal/bot"
	"newswatch/internal/classifier"
	"newswatch/internal/config"
	"newswatch/internal/crypto"
	"newswatch/internal/feed"
	"newswatch/internal/pipeline"
	"newswatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

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

	ai := classifier.New(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel,
		cfg.ClassifyTimeout, cfg.ComposeTimeout, log)

	b, err := bot.New(cfg.TelegramBotToken, store, ai, cfg.AdminIDs, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	fetcher := feed.New(http.DefaultClient, cfg.FetchTimeout, cfg.RecencyWindow, log)
	producer := pipeline.NewProducer(store, fetcher, cfg.FetchInterval, log)
	consumer := pipeline.NewConsumer(store, ai, b, cfg.ConsumeInterval, log)

	quotes := crypto.New(http.DefaultClient, cfg.CoinMarketCapKey)
	watcher := pipeline.NewCryptoWatcher(store, quotes, ai, b, cfg.CryptoTickInterval, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting newswatch")

	go producer.Run(ctx)
	go consumer.Run(ctx)
	go watcher.Run(ctx)

	b.Run(ctx)

	log.Info("stopped")
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
