package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/peoplelab/hr-kb/internal/adapter/ai"
	"github.com/peoplelab/hr-kb/internal/adapter/store"
	"github.com/peoplelab/hr-kb/internal/service"
	"github.com/peoplelab/hr-kb/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	app := &cli.App{
		Name:  "embedtool",
		Usage: "Embedding maintenance for the HR knowledge base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "backfill",
				Usage:  "Compute embeddings for rows that do not have one yet",
				Action: backfillCommand,
				Flags:  runFlags(),
			},
			{
				Name:   "regenerate",
				Usage:  "Recompute embeddings for every row, for model migrations",
				Action: regenerateCommand,
				Flags:  runFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "database-url",
			Usage: "Postgres connection string (defaults to DATABASE_URL)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Overall run timeout",
			Value: 30 * time.Minute,
		},
		&cli.IntFlag{
			Name:  "report-interval",
			Usage: "Report progress every N entries",
			Value: 100,
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch c.String("log-level") {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level: %s", c.String("log-level"))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func backfillCommand(c *cli.Context) error {
	return runReindex(c, service.ReindexMissing)
}

func regenerateCommand(c *cli.Context) error {
	return runReindex(c, service.ReindexAll)
}

func runReindex(c *cli.Context, mode service.ReindexMode) error {
	_ = godotenv.Load()
	cfg := config.Load()

	if url := c.String("database-url"); url != "" {
		cfg.DatabaseURL = url
	}

	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pgStore.Close()

	vectorStore := store.NewVectorStore(pgStore, cfg.EmbeddingDimension)
	embedder := ai.NewOpenAIProvider(ai.OpenAIConfig{
		BaseURL:   cfg.EmbeddingBaseURL,
		APIKey:    cfg.EmbeddingAPIKey,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		Timeout:   time.Duration(cfg.EmbeddingTimeout) * time.Second,
	})

	maintenance := service.NewMaintenanceService(pgStore, pgStore, vectorStore, embedder)

	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	interval := c.Int("report-interval")
	start := time.Now()

	report, err := maintenance.Reindex(ctx, mode, func(entity string, done, total int) {
		if interval > 0 && (done%interval == 0 || done == total) {
			slog.Info("progress", "entity", entity, "done", done, "total", total)
		}
	})
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	fmt.Printf("Reindex (%s) finished in %s: %d processed, %d failed\n",
		mode, time.Since(start).Round(time.Second), report.Processed, report.Failed)
	return nil
}
