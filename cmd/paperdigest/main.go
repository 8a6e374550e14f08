package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"PaperDigest/internal/app"
	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/logging"
)

const usage = `Usage: paperdigest [flags] <command>

Commands:
  run        execute the full daily workflow (default)
  ingest     discover, score, and select the day's papers
  score      backfill missing relevance scores on the day's snapshot
  summarize  attach structured summaries to the day's snapshot
  pages      rebuild the static site from the snapshot archive
  notify     send the day's digest to the configured channels
  serve      run the daily workflow on the cron schedule

Flags:
  -config path   configuration file (default "config.yaml")
  -date day      operate on a specific day, YYYY-MM-DD (default today)
`

func main() {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	date := flag.String("date", "", "day to operate on (YYYY-MM-DD), defaults to today")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "run"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	day := application.Today()
	if *date != "" {
		day, err = time.Parse(domain.DayFormat, *date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -date %q: expected YYYY-MM-DD\n", *date)
			os.Exit(2)
		}
	}

	ctx := context.Background()

	switch command {
	case "run":
		err = application.Run(ctx, day)
	case "ingest":
		err = application.Ingest(ctx, day)
	case "score":
		err = application.ScoreMissing(ctx, day)
	case "summarize":
		err = application.Summarize(ctx, day)
	case "pages":
		err = application.RenderPages(ctx)
	case "notify":
		err = application.Notify(ctx, day)
	case "serve":
		serveCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		err = application.Serve(serveCtx)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}
