package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/portfolio/pkg/cache"
	"github.com/diagnosis/portfolio/pkg/config"
	"github.com/diagnosis/portfolio/pkg/database"
	"github.com/diagnosis/portfolio/pkg/events"
	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/diagnosis/portfolio/pkg/mailer"
	"github.com/diagnosis/portfolio/pkg/media"
	mw "github.com/diagnosis/portfolio/pkg/middleware"
	"github.com/diagnosis/portfolio/pkg/notify"
	"github.com/diagnosis/portfolio/services/api/internal/handlers"
	"github.com/diagnosis/portfolio/services/api/internal/repository"
	"github.com/diagnosis/portfolio/services/api/internal/service"
	"github.com/go-chi/chi/v5"
)

type eventBus interface {
	events.EventBus
	Ping(ctx context.Context) error
}

type cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Database.MigrateOnStart {
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	mail, err := mailer.FromConfig(cfg.Email)
	if err != nil {
		logger.Error("Failed to configure mailer", "error", err)
		os.Exit(1)
	}

	// Without NATS the notification pipeline runs in-process.
	var bus eventBus
	if cfg.NATS.URL != "" {
		nb, err := events.NewNATSEventBus(cfg.NATS.URL, "portfolio-api")
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		bus = nb
	} else {
		lb := events.NewLocalEventBus()
		pipeline := notify.NewPipeline(mail, cfg.Email.ContactInbox, cfg.Frontend.URL)
		if err := pipeline.Register(lb, cfg.NATS.Queue); err != nil {
			logger.Error("Failed to register notification pipeline", "error", err)
			os.Exit(1)
		}
		logger.Info("NATS_URL not set, using in-process event bus")
		bus = lb
	}
	defer bus.Close()

	checks := map[string]mw.Pinger{"database": pool, "events": bus}

	var (
		limiter     handlers.RateLimiter
		idempotency mw.IdempotencyStore
		janitor     []cleaner
	)
	if cfg.Redis.URL != "" {
		store, err := cache.New(cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		limiter, idempotency = store, store
		checks["redis"] = store
	} else {
		rl := repository.NewRateLimitRepository(pool)
		ir := repository.NewIdempotencyRepository(pool)
		limiter, idempotency = rl, ir
		janitor = append(janitor, rl, ir)
	}

	var (
		host  media.Host
		local *media.LocalHost
	)
	switch cfg.Media.Provider {
	case "s3":
		s3host, err := media.NewS3Host(ctx, cfg.Media)
		if err != nil {
			logger.Error("Failed to configure S3 media host", "error", err)
			os.Exit(1)
		}
		host = s3host
		checks["media"] = s3host
	default:
		local = media.NewLocalHost(cfg.Media.Dir, cfg.Media.BaseURL)
		host = local
	}
	maxBytes := int64(cfg.Media.MaxUploadMB) << 20
	uploader := media.NewUploader(host, maxBytes)

	// Initialize repositories
	userRepo := repository.NewUserRepository(pool)
	contactRepo := repository.NewContactRepository(pool)
	mediaRepo := repository.NewMediaRepository(pool)

	// Initialize services
	authService := service.NewAuthService(userRepo, bus, cfg)
	contactService := service.NewContactService(contactRepo, mail, bus, cfg.Email.FromName)
	uploadService := service.NewUploadService(uploader, mediaRepo, bus, maxBytes, cfg.Media.MaxBatchFiles)

	if err := authService.EnsureAdmin(ctx, cfg.Admin); err != nil {
		logger.Error("Failed to bootstrap admin user", "error", err)
		os.Exit(1)
	}

	h := handlers.New(authService, contactService, uploadService, limiter, idempotency, cfg)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("api"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.CORS(cfg.Frontend.URL))
	r.Use(mw.Health(checks))

	h.Routes(r)
	r.Route("/api", h.Routes)
	if local != nil {
		r.Handle("/media/*", local.Handler("/media/"))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	stop := make(chan struct{})
	if len(janitor) > 0 {
		go sweep(janitor, time.Hour, stop)
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down api service...")
		close(stop)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("API shutdown error", "error", err)
		}
	}()

	logger.Info("Starting api service", "port", cfg.Server.Port, "env", cfg.Env)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("API server error", "error", err)
		os.Exit(1)
	}
}

// sweep removes expired rate limit and idempotency rows until stop closes.
func sweep(tables []cleaner, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, t := range tables {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				n, err := t.CleanupExpired(ctx)
				cancel()
				if err != nil {
					logger.Warn("Cleanup of expired rows failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Debug("Removed expired rows", "count", n)
				}
			}
		}
	}
}
