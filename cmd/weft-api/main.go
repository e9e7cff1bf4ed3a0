package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/weftflow/weft/pkg/cmd"
	"github.com/weftflow/weft/pkg/log"
	"github.com/weftflow/weft/pkg/otelhelper"
	"github.com/weftflow/weft/pkg/template"
	"github.com/weftflow/weft/pkg/workflow"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "weft-api",
		Usage:                 "Create, manage, and execute workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
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

			logger.InfoContext(ctx, "Initializing Weft API")

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

			eventBus := cmd.NewEventBus(command.String("event-bus"), "weft-api", logger)
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
				tracer, err := otelhelper.NewTracer(ctx, "weft-api")
				if err != nil {
					return err
				}

				opts = append(opts, workflow.WithTracer(tracer))
			}

			api := NewAPI(logger, store, registry, workflow.NewExecutor(store, registry, logger, opts...))

			return api.Start(command.Int("port"))
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
