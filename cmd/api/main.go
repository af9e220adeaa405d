package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"finsync/internal/infrastructure/postgres"
	"finsync/internal/infrastructure/postgres/listener"
	"finsync/internal/interfaces/scheduler"
	"finsync/internal/shared/config"
	"finsync/internal/shared/logger"
	"finsync/internal/shared/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, log)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				log.Error().Err(err).Msg("failed to flush telemetry")
			}
		}()
	}

	deps, err := NewDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Durable sync tasks: the listener wakes the worker on every enqueue.
	worker := scheduler.NewTaskWorker(log, deps.Tasks, deps.Sync, 0)
	worker.Start(ctx)
	taskListener := listener.New(cfg.Database.ConnectionString(), postgres.SyncTaskChannel, worker.Wake)
	taskListener.Start(ctx)

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(log, scheduler.Config{
			ScheduleTimes: cfg.Scheduler.ScheduleTimes,
			WorkerCount:   cfg.Scheduler.WorkerCount,
			JobDelay:      cfg.Scheduler.JobDelay,
			QueueSize:     cfg.Scheduler.QueueSize,
			RunOnStartup:  cfg.Scheduler.RunOnStartup,
			JobProvider:   scheduler.SweepProvider(deps.Items, deps.Sync),
		})
		if err != nil {
			return err
		}
		sched.Start()
		log.Info().Time("next_run", sched.NextRun()).Msg("sweep scheduler started")
	} else {
		log.Info().Msg("sweep scheduler disabled")
	}

	handler := SetupRoutes(deps, cfg, log)
	errc := make(chan error, 1)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg), log, errc)

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-errc:
		log.Error().Err(err).Msg("server failed, shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	ShutdownServers(sctx, log, redirectSrv, srv)
	taskListener.Stop()
	worker.Stop()
	if sched != nil {
		sched.Shutdown(shutdownTimeout)
	}

	log.Info().Msg("server stopped")
	return err
}
