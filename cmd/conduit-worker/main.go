package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/veilstream/conduit/pkg/cmd"
	"github.com/veilstream/conduit/pkg/log"
	"github.com/veilstream/conduit/pkg/otelhelper"
	"github.com/veilstream/conduit/pkg/queue"
)

func main() {
	command := &cli.Command{
		Name:                  "conduit-worker",
		EnableShellCompletion: true,
		Usage:                 "Run workflow executions from the priority queue",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the intake queue (intake disabled when empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "intake-queue",
				Usage:   "Redis list name to consume execution requests from",
				Value:   "conduit:intake",
				Sources: cli.EnvVars("INTAKE_QUEUE"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent",
				Usage:   "Maximum number of executions running at once",
				Value:   queue.DefaultMaxConcurrent,
				Sources: cli.EnvVars("MAX_CONCURRENT"),
			},
			&cli.IntFlag{
				Name:    "run-ceiling-minutes",
				Usage:   "Minutes before a running execution is forcibly failed",
				Value:   int(queue.DefaultRunCeiling / time.Minute),
				Sources: cli.EnvVars("RUN_CEILING_MINUTES"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OpenTelemetry tracing",
				Value:   false,
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("conduit-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing conduit worker")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "conduit-worker"); err != nil {
					logger.WarnContext(ctx, "Tracing disabled", "error", err)
				}
			}

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), "conduit-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			worker := NewWorkerManager(workerID, persistence, eventBus, logger, WorkerConfig{
				MaxConcurrent:     command.Int("max-concurrent"),
				RunCeilingMinutes: command.Int("run-ceiling-minutes"),
				RedisURL:          command.String("redis-url"),
				IntakeQueue:       command.String("intake-queue"),
			})

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
