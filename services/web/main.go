package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/portfolio/pkg/config"
	"github.com/diagnosis/portfolio/pkg/logger"
	mw "github.com/diagnosis/portfolio/pkg/middleware"
	"github.com/diagnosis/portfolio/services/web/internal/proxy"
	"github.com/diagnosis/portfolio/services/web/internal/spa"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()

	api := proxy.NewServiceProxy(cfg.Frontend.APIURL)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("web"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.CORS(cfg.Frontend.URL))
	r.Use(mw.Health(nil))

	r.Handle("/api/*", api)
	r.Handle("/media/*", api)
	r.Handle("/*", spa.Handler(cfg.Frontend.StaticDir))

	port := getEnv("WEB_PORT", "3000")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down web service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Web shutdown error", "error", err)
		}
	}()

	logger.Info("Starting web service", "port", port, "api", cfg.Frontend.APIURL, "static", cfg.Frontend.StaticDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Web server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
