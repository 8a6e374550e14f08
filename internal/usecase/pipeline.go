package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Relevance and Summary may be nil when no oracle is configured; the affected
// stages then degrade to recency-only ranking and unsummarized snapshots.
type PipelineDeps struct {
	Source    ports.DocumentSource
	Ledger    ports.IdentityLedger
	Scores    ports.ScoreCache
	Snapshots ports.SnapshotStore
	Relevance ports.RelevanceOracle
	Summary   ports.SummaryOracle
	Logger    *slog.Logger
}

// Options bounds a pipeline run. All values come from configuration.
type Options struct {
	Quota      int
	WindowDays int
	Workers    int           // concurrent relevance calls
	CallDelay  time.Duration // pause between consecutive summary calls
}

// Pipeline implements the daily ingestion workflow: discover, filter, score,
// select, snapshot. It owns no state of its own; every run loads the ledger
// and score cache fresh and mutates them only through their atomic commits.
type Pipeline struct {
	source    ports.DocumentSource
	ledger    ports.IdentityLedger
	scores    ports.ScoreCache
	snapshots ports.SnapshotStore
	relevance ports.RelevanceOracle
	summary   ports.SummaryOracle
	logger    *slog.Logger

	quota      int
	windowDays int
	workers    int
	callDelay  time.Duration
}

// NewPipeline validates the options and constructs the orchestration
// component. A non-positive quota or window is a configuration error.
func NewPipeline(deps PipelineDeps, opts Options) (*Pipeline, error) {
	if opts.Quota <= 0 {
		return nil, fmt.Errorf("pipeline: quota must be positive, got %d", opts.Quota)
	}
	if opts.WindowDays <= 0 {
		return nil, fmt.Errorf("pipeline: recency window must be positive, got %d", opts.WindowDays)
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		source:     deps.Source,
		ledger:     deps.Ledger,
		scores:     deps.Scores,
		snapshots:  deps.Snapshots,
		relevance:  deps.Relevance,
		summary:    deps.Summary,
		logger:     deps.Logger,
		quota:      opts.Quota,
		windowDays: opts.WindowDays,
		workers:    opts.Workers,
		callDelay:  opts.CallDelay,
	}, nil
}

// IngestAndSelect runs one full ingestion pass for day: fetch candidates,
// filter to the recency window, score whatever the cache is missing, select
// up to quota unpublished articles, write the day's snapshot, and commit the
// selection to the ledger. The snapshot is written before the ledger commit
// so a crash between the two leaves the day re-runnable: rerunning produces
// the identical snapshot and retries the commit.
func (p *Pipeline) IngestAndSelect(ctx context.Context, day time.Time) ([]domain.Article, error) {
	candidates, err := p.source.FetchDaily(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}

	recent := FilterRecent(candidates, day, p.windowDays)
	p.logger.Info("candidates filtered",
		"day", day.Format(domain.DayFormat),
		"fetched", len(candidates),
		"recent", len(recent))

	// Both loads happen before any oracle call: a corrupt store must abort
	// the run before money is spent or anything is published.
	seen, err := p.ledger.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	scores, err := p.scores.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load score cache: %w", err)
	}

	fresh := p.scoreBatch(ctx, recent, scores)
	if len(fresh) > 0 {
		// Persist before selection so a crash from here on cannot lose
		// already-paid oracle calls.
		if err := p.scores.PutMany(ctx, fresh); err != nil {
			return nil, fmt.Errorf("persist scores: %w", err)
		}
		for id, score := range fresh {
			if _, ok := scores[id]; !ok {
				scores[id] = score
			}
		}
	}

	selected := Select(recent, scores, seen, p.quota)
	attachScores(selected, scores)

	if err := p.snapshots.Write(ctx, day, selected); err != nil {
		return nil, fmt.Errorf("write snapshot: %w", err)
	}

	ids := make([]string, 0, len(selected))
	for _, article := range selected {
		ids = append(ids, article.ID)
	}
	if err := p.ledger.Commit(ctx, ids); err != nil {
		return nil, fmt.Errorf("commit ledger: %w", err)
	}

	p.logger.Info("selection published",
		"day", day.Format(domain.DayFormat),
		"selected", len(selected))
	return selected, nil
}

// ScoreMissing backfills relevance scores for an existing snapshot: cache
// first, oracle for the rest. A day with no snapshot is a no-op, not an
// error, so the stage can run on any date.
func (p *Pipeline) ScoreMissing(ctx context.Context, day time.Time) error {
	articles, err := p.snapshots.Read(ctx, day)
	if errors.Is(err, ports.ErrSnapshotNotFound) {
		p.logger.Info("no snapshot to score", "day", day.Format(domain.DayFormat))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	scores, err := p.scores.Load(ctx)
	if err != nil {
		return fmt.Errorf("load score cache: %w", err)
	}

	fresh := map[string]int{}
	updated := 0
	for i := range articles {
		if articles[i].Scored() {
			continue
		}

		score, cached := scores[articles[i].ID]
		if !cached {
			if p.relevance == nil {
				continue
			}
			score, err = p.relevance.Score(ctx, articles[i])
			if err != nil {
				p.logger.Warn("relevance scoring failed",
					"id", articles[i].ID, "error", err)
				continue
			}
			fresh[articles[i].ID] = score
		}

		articles[i].Score = &score
		updated++
	}

	if len(fresh) > 0 {
		if err := p.scores.PutMany(ctx, fresh); err != nil {
			return fmt.Errorf("persist scores: %w", err)
		}
	}
	if updated == 0 {
		p.logger.Info("snapshot fully scored", "day", day.Format(domain.DayFormat))
		return nil
	}

	if err := p.snapshots.Write(ctx, day, articles); err != nil {
		return fmt.Errorf("rewrite snapshot: %w", err)
	}
	p.logger.Info("snapshot scores updated",
		"day", day.Format(domain.DayFormat), "updated", updated)
	return nil
}

// Summarize attaches the structured digest to every snapshot entry that
// still lacks one. Per-entry oracle failures degrade: the entry stays
// summaryless and a later invocation retries it.
func (p *Pipeline) Summarize(ctx context.Context, day time.Time) error {
	if p.summary == nil {
		p.logger.Info("summary oracle unavailable, skipping")
		return nil
	}

	articles, err := p.snapshots.Read(ctx, day)
	if errors.Is(err, ports.ErrSnapshotNotFound) {
		p.logger.Info("no snapshot to summarize", "day", day.Format(domain.DayFormat))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	updated := 0
	for i := range articles {
		if articles[i].Summary != nil && !articles[i].Summary.Empty() {
			continue
		}

		summary, err := p.summary.Summarize(ctx, articles[i])
		p.pause(ctx)
		if err != nil {
			p.logger.Warn("summarization failed", "id", articles[i].ID, "error", err)
			continue
		}
		articles[i].Summary = &summary
		updated++
	}

	if updated == 0 {
		p.logger.Info("snapshot fully summarized", "day", day.Format(domain.DayFormat))
		return nil
	}

	if err := p.snapshots.Write(ctx, day, articles); err != nil {
		return fmt.Errorf("rewrite snapshot: %w", err)
	}
	p.logger.Info("snapshot summaries updated",
		"day", day.Format(domain.DayFormat), "updated", updated)
	return nil
}

// scoreBatch grades every article missing from the cache through a bounded
// worker pool. Failures are logged and skipped; the article simply gets no
// cache entry, which is the retry signal for a later run.
func (p *Pipeline) scoreBatch(ctx context.Context, articles []domain.Article, cached map[string]int) map[string]int {
	if p.relevance == nil {
		p.logger.Info("relevance oracle unavailable, ranking by recency only")
		return nil
	}

	pending := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := cached[article.ID]; ok {
			continue
		}
		pending = append(pending, article)
	}
	if len(pending) == 0 {
		return nil
	}

	var (
		mu    sync.Mutex
		fresh = make(map[string]int, len(pending))
		wg    sync.WaitGroup
		jobs  = make(chan domain.Article)
	)

	for range min(p.workers, len(pending)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for article := range jobs {
				score, err := p.relevance.Score(ctx, article)
				if err != nil {
					p.logger.Warn("relevance scoring failed",
						"id", article.ID, "error", err)
					continue
				}
				mu.Lock()
				fresh[article.ID] = score
				mu.Unlock()
			}
		}()
	}
	for _, article := range pending {
		jobs <- article
	}
	close(jobs)
	wg.Wait()

	p.logger.Info("scored new candidates",
		"pending", len(pending), "scored", len(fresh))
	return fresh
}

func (p *Pipeline) pause(ctx context.Context) {
	if p.callDelay <= 0 {
		return
	}
	timer := time.NewTimer(p.callDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func attachScores(articles []domain.Article, scores map[string]int) {
	for i := range articles {
		if score, ok := scores[articles[i].ID]; ok {
			articles[i].Score = &score
		}
	}
}
