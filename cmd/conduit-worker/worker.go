package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veilstream/conduit/pkg/cmd"
	"github.com/veilstream/conduit/pkg/engine"
	"github.com/veilstream/conduit/pkg/eventbus"
	"github.com/veilstream/conduit/pkg/intake"
	"github.com/veilstream/conduit/pkg/notification"
	"github.com/veilstream/conduit/pkg/persistence"
	"github.com/veilstream/conduit/pkg/queue"
	"github.com/veilstream/conduit/pkg/translation"
)

type WorkerConfig struct {
	MaxConcurrent     int
	RunCeilingMinutes int
	RedisURL          string
	IntakeQueue       string
}

// WorkerManager wires the engine, dispatcher and optional intake consumer
// into one long-running process.
type WorkerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	cfg         WorkerConfig
}

func NewWorkerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
	cfg WorkerConfig,
) *WorkerManager {
	return &WorkerManager{
		id:          id,
		logger:      logger.With("module", "conduit-worker"),
		persistence: persistence,
		eventBus:    eventBus,
		cfg:         cfg,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := cmd.NewRegistry(w.logger)
	notifier := notification.NewEventBusNotifier(w.eventBus)
	translator := translation.NewStaticTranslator(nil)

	eng := engine.NewEngine(w.persistence, registry, translator, notifier, w.eventBus, w.logger)

	dispatcher := queue.NewDispatcher(
		queue.NewPriorityQueue(),
		eng,
		w.persistence.ExecutionRepository(),
		w.eventBus,
		w.logger,
		queue.Config{
			MaxConcurrent: w.cfg.MaxConcurrent,
			RunCeiling:    time.Duration(w.cfg.RunCeilingMinutes) * time.Minute,
		},
	)

	if err := dispatcher.Restore(ctx); err != nil {
		return err
	}

	go dispatcher.Start(ctx)

	if w.cfg.RedisURL != "" {
		consumer, err := intake.NewConsumer(w.cfg.RedisURL, w.cfg.IntakeQueue, eng, dispatcher,
			w.persistence.ExecutionRepository(), w.logger)
		if err != nil {
			return err
		}

		if err := consumer.Start(ctx); err != nil {
			return err
		}

		defer func() {
			if err := consumer.Close(); err != nil {
				w.logger.Error("Failed to close intake consumer", "error", err)
			}
		}()
	}

	w.logger.InfoContext(ctx, "Worker started successfully", "worker_id", w.id)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.InfoContext(ctx, "Shutting down worker...")
		cancel()
	case <-ctx.Done():
	}

	return nil
}
