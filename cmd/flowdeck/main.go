package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/flowdeck/flowdeck/pkg/cmd"
	"github.com/flowdeck/flowdeck/pkg/conditional"
	"github.com/flowdeck/flowdeck/pkg/engine"
	"github.com/flowdeck/flowdeck/pkg/log"
	"github.com/flowdeck/flowdeck/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("flowdeck")

	app := &cli.Command{
		Name:                  "flowdeck",
		Usage:                 "Create, manage, and execute node-based workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "api",
				Usage: "Run the workflow management and execution API server",
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
						Usage:    "Database connection URL for persistence (redis:// or a file path)",
						Required: true,
						Sources:  cli.EnvVars("DATABASE_URL"),
					},
					&cli.StringFlag{
						Name:    "event-bus",
						Usage:   "Event bus provider (gochannel, kafka)",
						Value:   "gochannel",
						Sources: cli.EnvVars("EVENT_BUS"),
					},
					&cli.StringFlag{
						Name:    "plugins-path",
						Usage:   "Path to the directory containing node plugins",
						Sources: cli.EnvVars("PLUGINS_PATH"),
					},
					&cli.IntFlag{
						Name:    "max-concurrency",
						Usage:   "Maximum number of concurrently running executions",
						Sources: cli.EnvVars("MAX_CONCURRENCY"),
					},
					&cli.BoolFlag{
						Name:    "tracing",
						Usage:   "Enable OpenTelemetry tracing",
						Sources: cli.EnvVars("OTEL_ENABLED"),
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					logger.InfoContext(ctx, "Initializing Flowdeck API")

					persist, err := cmd.NewPersistence(command.String("database-url"))
					if err != nil {
						return err
					}

					defer func() {
						if err := persist.Close(ctx); err != nil {
							logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
						}
					}()

					eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
					if err != nil {
						return err
					}

					defer func() {
						if err := eventBus.Close(); err != nil {
							logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
						}
					}()

					reg := cmd.NewRegistry(ctx, logger, command.String("plugins-path"))

					cfg := engine.Config{
						Registry:       reg,
						Evaluator:      conditional.NewEvaluator(logger),
						Persistence:    persist,
						Publisher:      eventBus,
						Logger:         logger,
						MaxConcurrency: command.Int("max-concurrency"),
					}

					if command.Bool("tracing") {
						tracer, err := otelhelper.NewTracer(ctx, "flowdeck")
						if err != nil {
							return err
						}

						cfg.Tracer = tracer
					}

					api := NewAPI(logger, persist, reg, engine.NewEngine(cfg), eventBus)

					return api.Start(command.Int("port"))
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
