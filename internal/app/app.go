// Package app wires configuration into the pipeline, renderer, notifiers,
// and scheduler, and exposes the stages the CLI runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"PaperDigest/internal/config"
	"PaperDigest/internal/infrastructure/llm"
	"PaperDigest/internal/infrastructure/notify"
	"PaperDigest/internal/infrastructure/pages"
	"PaperDigest/internal/infrastructure/parser"
	"PaperDigest/internal/infrastructure/scheduler"
	"PaperDigest/internal/infrastructure/storage"
	"PaperDigest/internal/logging"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
	"PaperDigest/internal/usecase"
)

// stopTimeout bounds how long Serve waits for an in-flight run when
// shutting down.
const stopTimeout = 30 * time.Second

// Application holds the assembled components for one configured deployment.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	snapshots *storage.SnapshotStore
	renderer  *pages.Renderer
}

// New assembles an Application from configuration. Oracle stages are wired
// only when an API key is present; without one the pipeline still ingests
// and publishes, leaving scores and summaries for a later backfill.
func New(cfg config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewEntrezScanner(httpClient, logger.With("component", "scanner.entrez")))
	registry.Register(parser.NewRSSScanner(httpClient, logger.With("component", "scanner.rss")))
	registry.Register(parser.NewArxivScanner(httpClient, logger.With("component", "scanner.arxiv")))

	source := parser.NewStrategySource(registry, cfg.Sources,
		cfg.Selection.WindowDays, cfg.Selection.MaxResults,
		logger.With("component", "source"))

	ledger := storage.NewLedger(filepath.Join(cfg.Storage.DataDir, "seen_ids.json"))
	scores := storage.NewScoreStore(filepath.Join(cfg.Storage.DataDir, "scores.json"))
	snapshots := storage.NewSnapshotStore(filepath.Join(cfg.Storage.DataDir, "papers"))

	var (
		relevance ports.RelevanceOracle
		summary   ports.SummaryOracle
	)
	if cfg.Oracle.APIKey != "" {
		client := llm.NewClient(cfg.Oracle)
		relevance = llm.NewScorer(client, cfg.Oracle.Profile)
		summary = llm.NewSummarizer(client, cfg.Oracle.Language)
	} else {
		logger.Warn("oracle api key not configured, scoring and summaries disabled")
	}

	pipeline, err := usecase.NewPipeline(usecase.PipelineDeps{
		Source:    source,
		Ledger:    ledger,
		Scores:    scores,
		Snapshots: snapshots,
		Relevance: relevance,
		Summary:   summary,
		Logger:    logger.With("component", "pipeline"),
	}, usecase.Options{
		Quota:      cfg.Selection.Quota,
		WindowDays: cfg.Selection.WindowDays,
		Workers:    cfg.Oracle.Workers,
		CallDelay:  cfg.Oracle.CallDelay(),
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	renderer, err := pages.NewRenderer(snapshots, pages.Site{
		Title:       cfg.Pages.Title,
		Description: cfg.Pages.Description,
		BaseURL:     cfg.Pages.SiteURL(),
	}, cfg.Pages.OutputDir, logger.With("component", "pages"))
	if err != nil {
		return nil, fmt.Errorf("build renderer: %w", err)
	}

	return &Application{
		cfg:       cfg,
		logger:    logger,
		pipeline:  pipeline,
		snapshots: snapshots,
		renderer:  renderer,
	}, nil
}

// Today returns the current day in the configured timezone.
func (a *Application) Today() time.Time {
	return time.Now().In(a.cfg.Scheduler.Location())
}

// Ingest discovers, filters, scores, and selects articles for day, then
// publishes the snapshot.
func (a *Application) Ingest(ctx context.Context, day time.Time) error {
	_, err := a.pipeline.IngestAndSelect(ctx, day)
	return err
}

// ScoreMissing backfills relevance scores missing from the day's snapshot.
func (a *Application) ScoreMissing(ctx context.Context, day time.Time) error {
	return a.pipeline.ScoreMissing(ctx, day)
}

// Summarize attaches structured summaries to the day's snapshot.
func (a *Application) Summarize(ctx context.Context, day time.Time) error {
	return a.pipeline.Summarize(ctx, day)
}

// RenderPages rebuilds the static site from the snapshot archive.
func (a *Application) RenderPages(ctx context.Context) error {
	return a.renderer.RenderAll(ctx)
}

// Notify pushes the day's digest through every configured channel. A missing
// snapshot sends the empty-day message. With no channels configured it logs
// and succeeds; it fails only when every configured channel failed.
func (a *Application) Notify(ctx context.Context, day time.Time) error {
	articles, err := a.snapshots.Read(ctx, day)
	if err != nil && !errors.Is(err, ports.ErrSnapshotNotFound) {
		return fmt.Errorf("read snapshot: %w", err)
	}

	channels, failures := a.notifiers()
	configured := len(channels) + len(failures)
	if configured == 0 {
		a.logger.Info("no notification channels configured")
		return nil
	}

	subject, body := usecase.BuildDigest(a.cfg.Pages.Title, day, articles, a.cfg.Pages.SiteURL())

	for _, channel := range channels {
		if err := channel.PublishDigest(ctx, subject, body); err != nil {
			a.logger.Warn("notification failed", "channel", channel.Name(), "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", channel.Name(), err))
			continue
		}
		a.logger.Info("notification sent", "channel", channel.Name())
	}

	if len(failures) == configured {
		return errors.Join(failures...)
	}
	return nil
}

// notifiers builds the configured channels. Telegram construction dials the
// bot API, so it happens per send rather than at startup; a build failure
// counts as a failed channel.
func (a *Application) notifiers() ([]ports.Notifier, []error) {
	var (
		channels []ports.Notifier
		failures []error
	)

	tg := a.cfg.Notifications.Telegram
	if tg.BotToken != "" && tg.ChatID != "" {
		notifier, err := notify.NewTelegram(tg.BotToken, tg.ChatID)
		if err != nil {
			a.logger.Warn("telegram channel unavailable", "error", err)
			failures = append(failures, fmt.Errorf("telegram: %w", err))
		} else {
			channels = append(channels, notifier)
		}
	}
	if key := a.cfg.Notifications.ServerChan.Key; key != "" {
		channels = append(channels, notify.NewServerChan(key))
	}

	return channels, failures
}

// Run executes the full daily workflow. An ingest failure aborts; later
// stages degrade independently so a broken notifier cannot cost the site a
// day, and every failure surfaces in the returned error.
func (a *Application) Run(ctx context.Context, day time.Time) error {
	if err := a.Ingest(ctx, day); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	var failures []error
	if err := a.Summarize(ctx, day); err != nil {
		a.logger.Error("summarize stage failed", "error", err)
		failures = append(failures, fmt.Errorf("summarize: %w", err))
	}
	if err := a.RenderPages(ctx); err != nil {
		a.logger.Error("pages stage failed", "error", err)
		failures = append(failures, fmt.Errorf("pages: %w", err))
	}
	if err := a.Notify(ctx, day); err != nil {
		a.logger.Error("notify stage failed", "error", err)
		failures = append(failures, fmt.Errorf("notify: %w", err))
	}
	return errors.Join(failures...)
}

// Serve runs the daily workflow on the configured cron schedule until ctx is
// cancelled, then waits for any in-flight run.
func (a *Application) Serve(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		a.logger.With("component", "cron"),
	)
	sched := usecase.NewScheduler(driver, func(jobCtx context.Context, trigger time.Time) error {
		return a.Run(jobCtx, trigger)
	}, a.logger.With("component", "scheduler"))

	if err := sched.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("scheduler running",
		"cron", a.cfg.Scheduler.CronExpression,
		"timezone", a.cfg.Scheduler.Timezone)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return sched.Stop(stopCtx)
}
