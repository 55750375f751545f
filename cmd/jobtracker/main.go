package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	jobtracker "github.com/goliatone/go-jobtracker"
	"github.com/goliatone/go-jobtracker/activitymap"
	"github.com/goliatone/go-jobtracker/config"
	"github.com/goliatone/go-jobtracker/repository"
)

func main() {
	logger := jobtracker.NewLogger("jobtracker", slog.LevelInfo)

	if err := run(logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger jobtracker.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, repository.Options{
		Driver:      cfg.Persistence.GetDriver(),
		DSN:         cfg.Persistence.GetDSN(),
		Debug:       cfg.Persistence.GetDebug(),
		DebugWriter: os.Stderr,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	services := jobtracker.NewServices(db.DB, cfg.Auth,
		jobtracker.WithServicesLogger(logger),
		jobtracker.WithServicesActivitySink(activitySink(logger)),
	)
	services.Repo.MustValidate()

	srv := jobtracker.NewServer(services.Controller, jobtracker.ServerOptions{
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		ProxyHeader:    cfg.Server.ProxyHeader,
		LoginLimit: jobtracker.RateLimit{
			Max:    cfg.Server.LoginLimit.Max,
			Window: cfg.Server.LoginLimit.Window,
		},
		RegisterLimit: jobtracker.RateLimit{
			Max:    cfg.Server.RegisterLimit.Max,
			Window: cfg.Server.RegisterLimit.Window,
		},
		RequestLog:  os.Stdout,
		HealthCheck: db.PingContext,
		Logger:      logger,
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.GetAddr(), "driver", db.Driver(), "env", cfg.Env)
		errc <- srv.Serve(cfg.Server.GetAddr())
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func activitySink(logger jobtracker.Logger) jobtracker.ActivitySink {
	return activitymap.NewSink(func(_ context.Context, n activitymap.Normalized) error {
		logger.Info("activity",
			"verb", n.Verb,
			"channel", n.Channel,
			"actor_id", n.ActorID,
			"object_type", n.ObjectType,
			"object_id", n.ObjectID,
			"metadata", n.Metadata,
		)
		return nil
	})
}
