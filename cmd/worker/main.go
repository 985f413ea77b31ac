package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"basegraph.app/assist/common/id"
	"basegraph.app/assist/common/logger"
	"basegraph.app/assist/common/otel"
	"basegraph.app/assist/core/config"
	"basegraph.app/assist/internal/queue"
	"basegraph.app/assist/internal/service"
	"basegraph.app/assist/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "assist worker starting",
		"env", cfg.Env,
		"stream", cfg.Queue.Stream,
		"consumer_group", cfg.Queue.Group,
		"consumer_name", cfg.Queue.Consumer)

	// Workers must not share a snowflake node id with the server.
	if err := id.Init(cfg.NodeID + 1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	infra, err := service.NewInfra(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to initialize infrastructure", "error", err)
		os.Exit(1)
	}
	defer infra.Close()
	if infra.DB == nil {
		slog.WarnContext(ctx, "no DATABASE_URL configured, reports are kept in this process only")
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	infra.Start(runCtx)

	services := service.NewServices(infra, nil)

	consumer, err := queue.NewRedisConsumer(ctx, infra.Redis, queue.ConsumerConfig{
		Stream:       cfg.Queue.Stream,
		Group:        cfg.Queue.Group,
		Consumer:     cfg.Queue.Consumer,
		DLQStream:    cfg.Queue.DLQStream,
		BatchSize:    1,
		Block:        5 * time.Second,
		RequeueDelay: cfg.Queue.RequeueDelay,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	processor := worker.NewProcessor(services.Inspector(), infra.Reports)
	w := worker.New(consumer, processor, worker.Config{
		MaxAttempts: cfg.Queue.MaxAttempts,
	})

	reclaimer := worker.NewRedisReclaimer(infra.Redis, worker.RedisReclaimerConfig{
		Stream:    cfg.Queue.Stream,
		Group:     cfg.Queue.Group,
		Consumer:  cfg.Queue.Consumer,
		MinIdle:   cfg.Queue.ReclaimIdle,
		Interval:  time.Minute,
		BatchSize: 10,
	}, consumer, w.Handle)

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(runCtx)
	}()
	go func() {
		reclaimer.Run(runCtx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop reclaimer first (quick), then the worker, which may be mid-inspection.
	done := make(chan struct{})
	go func() {
		reclaimer.Stop()
		w.Stop()
		close(done)
	}()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
		cancelRun()
	case <-done:
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 █████╗ ███████╗███████╗██╗███████╗████████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔══██╗██╔════╝██╔════╝██║██╔════╝╚══██╔══╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
███████║███████╗███████╗██║███████╗   ██║       ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██╔══██║╚════██║╚════██║██║╚════██║   ██║       ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║  ██║███████║███████║██║███████║   ██║       ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██████║
╚═╝  ╚═╝╚══════╝╚══════╝╚═╝╚══════╝   ╚═╝        ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═════╝
`
