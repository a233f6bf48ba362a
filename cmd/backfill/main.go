// Package main is a maintenance tool that seeds baseline ranking records for
// questions that predate the ranking tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dataforaction/questionbank/internal/config"
	"github.com/dataforaction/questionbank/internal/db"
	"github.com/dataforaction/questionbank/internal/middleware"
	"github.com/dataforaction/questionbank/internal/question"
	"github.com/dataforaction/questionbank/internal/ranking"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configFile := flag.String("config", "", "path to optional YAML config file")
	limit := flag.Int("limit", 10000, "maximum number of public questions to seed")
	flag.Parse()

	if *help {
		fmt.Println("Question Bank ranking backfill")
		fmt.Println()
		fmt.Println("Usage: backfill [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required for backfill")
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	conn, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	repo := question.NewPostgresRepository(conn, logger)
	ranks := ranking.NewPostgresStore(conn, logger)

	questions, err := repo.ListPublic(ctx, *limit)
	if err != nil {
		logger.Error("failed to list public questions", "error", err)
		os.Exit(1)
	}

	seeded := 0
	for _, q := range questions {
		if _, err := ranks.Ensure(ctx, q.ID, ranking.GlobalScope); err != nil {
			logger.Error("failed to seed ranking record", "question_id", q.ID, "error", err)
			os.Exit(1)
		}
		seeded++
	}

	logger.Info("backfill complete", "questions", len(questions), "seeded", seeded)
}
