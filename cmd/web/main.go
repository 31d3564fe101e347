package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"product-studio-ai/internal/config"
	"product-studio-ai/internal/gemini"
	"product-studio-ai/internal/httpclient"
	"product-studio-ai/internal/session"
	"product-studio-ai/internal/studio"
	"product-studio-ai/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4:   cfg.PreferIPv4,
		Timeout:      cfg.HTTPTimeout,
		RateInterval: cfg.GeminiRateInterval,
		RateBurst:    cfg.GeminiRateBurst,
	})

	gen, err := gemini.NewImageGenerator(ctx, cfg.GeminiBackend, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		Model:      cfg.GeminiImageModel,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("gemini init failed", "backend", cfg.GeminiBackend, "err", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Options{
		TTL: cfg.SessionTTL,
		New: func(id string) *studio.Session {
			return studio.New(studio.Options{
				Generator:    gen,
				Logger:       logger.With("session_id", id),
				HistoryLimit: cfg.HistoryLimit,
			})
		},
	})

	srv := &http.Server{
		Addr: cfg.WebAddr,
		Handler: web.New(web.Options{
			Sessions:       sessions,
			Logger:         logger,
			RequestTimeout: cfg.RequestTimeout,
		}).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("web started", "addr", cfg.WebAddr, "backend", cfg.GeminiBackend, "model", cfg.GeminiImageModel)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
