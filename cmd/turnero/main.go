package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/snake33madb2017/turno-barberia/internal/admin"
	"github.com/snake33madb2017/turno-barberia/internal/config"
	"github.com/snake33madb2017/turno-barberia/internal/httpapi"
	"github.com/snake33madb2017/turno-barberia/internal/queue"
	"github.com/snake33madb2017/turno-barberia/internal/store"
	"github.com/snake33madb2017/turno-barberia/internal/store/file"
	"github.com/snake33madb2017/turno-barberia/internal/store/postgres"
	"github.com/snake33madb2017/turno-barberia/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	ticketStore, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("store open: %v", err)
	}
	defer closeStore()

	shutdownTelemetry := telemetry.Setup("turnero")
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	now := func() time.Time { return time.Now().UTC() }
	rollover := queue.NewRollover(ticketStore, now)
	service := queue.NewService(ticketStore, rollover, now)
	guard := admin.NewGuard(ticketStore, cfg.AdminSessionTTL, now)
	handler := httpapi.NewHandler(service, guard)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		PerMinute: cfg.RateLimitPerMinute,
		Burst:     cfg.RateLimitBurst,
	})

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(limiter.Middleware(handler.Routes())), "turnero")

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("turnero listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// The rollover also runs lazily on every request; the ticker keeps the
	// store current through idle nights so the first customer of the day
	// never pays for the cleanup.
	go func() {
		if cfg.RolloverInterval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.RolloverInterval)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := rollover.EnsureCurrent(ctx)
			cancel()
			if err != nil {
				log.Printf("rollover error: %v", err)
			}
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// openStore picks PostgreSQL when DB_DSN is set and falls back to the
// single-file JSON document otherwise.
func openStore(cfg config.Config) (store.TicketStore, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st := postgres.NewStore(pool)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool.Close, nil
	}

	st, err := file.Open(cfg.DataFile)
	if err != nil {
		return nil, nil, err
	}
	return st, func() {}, nil
}
