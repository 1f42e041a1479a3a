package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/veilstream/conduit/pkg/cmd"
	"github.com/veilstream/conduit/pkg/engine"
	"github.com/veilstream/conduit/pkg/eventbus"
	"github.com/veilstream/conduit/pkg/notification"
	"github.com/veilstream/conduit/pkg/persistence"
	"github.com/veilstream/conduit/pkg/queue"
	"github.com/veilstream/conduit/pkg/scheduler"
	"github.com/veilstream/conduit/pkg/translation"
)

// SchedulerManager runs the schedule service with an in-process dispatcher
// so fired executions run in this process.
type SchedulerManager struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
}

func NewSchedulerManager(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	logger *slog.Logger,
) *SchedulerManager {
	return &SchedulerManager{
		id:          id,
		logger:      logger.With("module", "conduit-scheduler"),
		persistence: persistence,
		eventBus:    eventBus,
	}
}

func (m *SchedulerManager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	registry := cmd.NewRegistry(m.logger)
	notifier := notification.NewEventBusNotifier(m.eventBus)
	translator := translation.NewStaticTranslator(nil)

	eng := engine.NewEngine(m.persistence, registry, translator, notifier, m.eventBus, m.logger)

	dispatcher := queue.NewDispatcher(
		queue.NewPriorityQueue(),
		eng,
		m.persistence.ExecutionRepository(),
		m.eventBus,
		m.logger,
		queue.Config{},
	)

	go dispatcher.Start(ctx)

	service := scheduler.NewService(m.persistence, eng, dispatcher, m.logger)
	if err := service.Start(ctx); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "Scheduler started successfully", "scheduler_id", m.id)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		m.logger.InfoContext(ctx, "Shutting down scheduler...")
		cancel()
	case <-ctx.Done():
	}

	return nil
}
