package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nippolabs/nippo/internal/api"
	"github.com/nippolabs/nippo/internal/config"
	"github.com/nippolabs/nippo/internal/metrics"
	"github.com/nippolabs/nippo/internal/ratelimit"
	"github.com/nippolabs/nippo/internal/report"
	"github.com/nippolabs/nippo/internal/session"
	"github.com/nippolabs/nippo/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})

	sessions, err := session.NewManager(session.Options{
		CookieName: cfg.Session.CookieName,
		Secret:     cfg.Session.Secret,
		Timeout:    cfg.Session.Timeout,
		Secure:     cfg.IsProduction(),
		OnTimeout:  m.SessionTimeoutsTotal.Inc,
	})
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.NewMemoryStore(),
		ratelimit.Options{Interval: cfg.RateLimit.LoginInterval, MaxRequests: cfg.RateLimit.LoginMax},
		ratelimit.Options{Interval: cfg.RateLimit.APIInterval, MaxRequests: cfg.RateLimit.APIMax},
	)
	go limiter.Start(ctx, cfg.RateLimit.CleanupInterval)

	router := api.NewRouter(api.RouterDeps{
		Users:    user.NewStore(pool),
		Reports:  report.NewStore(pool),
		Sessions: sessions,
		CSRF:     session.NewGuard(sessions),
		Limiter:  limiter,
		Metrics:  m,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	limiter.Stop()

	return srv.Shutdown(shutdownCtx)
}
