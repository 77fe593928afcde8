package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/adstream-gateway/config"
	"github.com/vnmchuo/adstream-gateway/internal/adgen"
	"github.com/vnmchuo/adstream-gateway/internal/provider"
	"github.com/vnmchuo/adstream-gateway/internal/provider/factory"
	"github.com/vnmchuo/adstream-gateway/internal/proxy"
	"github.com/vnmchuo/adstream-gateway/internal/telemetry"
	"github.com/vnmchuo/adstream-gateway/internal/usage"
	"github.com/vnmchuo/adstream-gateway/pkg/ratelimit"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg(), slog.Default(), cmd.OutOrStdout())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, traceOut io.Writer) error {
	// 1. Telemetry
	shutdownTracer, err := telemetry.InitTracer(ctx, serviceName, Version, cfg, traceOut)
	if err != nil {
		return fmt.Errorf("failed to init tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	// 2. Usage persistence
	var store usage.Store = usage.NopStore{}
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("failed to ping postgres: %w", err)
		}
		pg := usage.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		store = usage.NewBreakerStore(pg)
		logger.Info("PostgreSQL connected")
	} else {
		logger.Info("POSTGRES_DSN not set, usage records are not persisted")
	}

	// 3. Rate limiting
	var limiter *ratelimit.Limiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		limiter = ratelimit.NewLimiter(rdb, cfg.RateLimitRPM)
		logger.Info("Redis connected", slog.Int64("rpm", cfg.RateLimitRPM))
	} else {
		logger.Info("REDIS_ADDR not set, rate limiting disabled")
	}

	// 4. Handler. The provider is resolved per request so a missing
	// credential surfaces as a request error rather than a startup failure.
	httpClient := &http.Client{}
	resolve := func() (provider.Provider, error) {
		return factory.New(cfg.Provider, httpClient, logger)
	}
	if _, err := resolve(); err != nil {
		logger.Warn("chat provider is not usable yet", slog.Any("error", err))
	}

	completer := factory.NewAdCompleter(cfg.Provider, httpClient)
	if completer == nil {
		logger.Warn("GEMINI_API_KEY not set, ad generation returns sample creative")
	}
	ads := adgen.New(completer, cfg.Provider.AdModel, logger)

	tracer := otel.GetTracerProvider().Tracer(serviceName)
	handler := proxy.NewHandler(resolve, store, limiter, tracer, logger, proxy.Options{
		Service:       serviceName,
		Version:       Version,
		Provider:      cfg.Provider.Name,
		StreamTimeout: cfg.StreamTimeout,
		Ads:           ads,
	})

	// 5. Server with graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      proxy.NewRouter(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.StreamTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", slog.String("port", cfg.Port), slog.String("provider", cfg.Provider.Name))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	handler.Wait()
	logger.Info("Server stopped")
	return nil
}
