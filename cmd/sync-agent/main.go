package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/zoff-tech/go-opqueue/pkg/config"
	"github.com/zoff-tech/go-opqueue/pkg/processor"
	"github.com/zoff-tech/go-opqueue/pkg/queue"
	"github.com/zoff-tech/go-opqueue/pkg/store"
	"github.com/zoff-tech/go-opqueue/pkg/telemetry"
	"github.com/zoff-tech/go-opqueue/pkg/transport"
	"github.com/zoff-tech/go-opqueue/pkg/trigger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from file or environment
	cfg, err := config.LoadFromFile("./cmd/sync-agent")
	if err != nil {
		logrus.WithError(err).Fatal("Error loading configuration")
	}

	// Initialize telemetry (tracing)
	shutdownTelemetry, err := telemetry.Init(cfg.Observability)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize telemetry")
	}
	defer shutdownTelemetry()

	// Initialize the queue store
	repo, err := store.NewRepository(ctx, cfg.Store)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize queue store")
	}
	defer repo.Close()

	// Initialize the write-API transport
	client, err := transport.NewClient(&cfg.API)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize transport")
	}
	defer client.Close()

	manager := queue.NewManager(repo, cfg.MaxRetries)
	proc := processor.NewSyncProcessor(manager, client)

	// Run the connectivity trigger (blocks until the context is canceled)
	trigger.NewConnectivityTrigger(proc, cfg.Trigger).Run(ctx)
}
