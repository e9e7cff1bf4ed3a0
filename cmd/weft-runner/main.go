// Package main provides the Weft poll runner, which drives poll trigger
// subscriptions on their schedules.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/weftflow/weft/pkg/cmd"
	"github.com/weftflow/weft/pkg/log"
	"github.com/weftflow/weft/pkg/otelhelper"
	"github.com/weftflow/weft/pkg/sources/httppoll"
	"github.com/weftflow/weft/pkg/subscription"
	"github.com/weftflow/weft/pkg/template"
	"github.com/weftflow/weft/pkg/workflow"
)

func main() {
	logger := log.WithModule("runner")

	command := &cli.Command{
		Name:                  "weft-runner",
		Usage:                 "Run poll trigger subscriptions for active workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "ledger-url",
				Usage:   "Idempotency ledger URL (redis://, postgres://, empty for in-memory)",
				Sources: cli.EnvVars("LEDGER_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.BoolFlag{
				Name:    "strict-templates",
				Usage:   "Fail executions on unresolvable template paths",
				Sources: cli.EnvVars("STRICT_TEMPLATES"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces for executions",
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

			logger.InfoContext(ctx, "Initializing Weft runner")

			registry := cmd.NewRegistry(logger)

			store := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			idempotency := cmd.NewLedger(ctx, logger, command.String("ledger-url"), store)
			defer func() {
				if err := idempotency.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close ledger", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "weft-runner", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			opts := []workflow.ExecutorOption{
				workflow.WithLedger(idempotency),
				workflow.WithEventBus(eventBus),
			}

			if command.Bool("strict-templates") {
				opts = append(opts, workflow.WithResolver(&template.Resolver{Strict: true}))
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "weft-runner")
				if err != nil {
					return err
				}

				opts = append(opts, workflow.WithTracer(tracer))
			}

			executor := workflow.NewExecutor(store, registry, logger, opts...)

			poller := subscription.NewPoller(store, executor, logger)
			poller.RegisterSource(httppoll.NewSource())

			runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := poller.Start(runCtx); err != nil {
				return err
			}

			<-runCtx.Done()

			logger.Info("Shutting down runner")

			return poller.Stop(context.Background())
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
