package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/portfolio/pkg/config"
	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/pkg/mailer"
	mw "github.com/diagnosis/portfolio/pkg/middleware"
	"github.com/diagnosis/portfolio/pkg/notify"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()
	if cfg.NATS.URL == "" {
		logger.Error("NATS_URL is required for the notify worker")
		os.Exit(1)
	}

	mail, err := mailer.FromConfig(cfg.Email)
	if err != nil {
		logger.Error("Failed to configure mailer", "error", err)
		os.Exit(1)
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL, "portfolio-notify")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	pipeline := notify.NewPipeline(mail, cfg.Email.ContactInbox, cfg.Frontend.URL)
	if err := pipeline.Register(bus, cfg.NATS.Queue); err != nil {
		logger.Error("Failed to subscribe to contact events", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("notify"))
	r.Use(mw.Recoverer)
	r.Use(mw.Health(map[string]mw.Pinger{"events": bus}))

	port := getEnv("NOTIFY_PORT", "8086")
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down notify service...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Notify service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting notify service", "port", port, "queue", cfg.NATS.Queue, "provider", cfg.Email.Provider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Notify service error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
