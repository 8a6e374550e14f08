package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/scanner"
)

const userAgent = "PaperDigest/1.0"

// StrategySource implements ports.DocumentSource via registered scanner
// strategies. A failing source degrades to a warning; the fetch only errors
// when every source failed and nothing at all was collected.
type StrategySource struct {
	registry   *scanner.Registry
	sources    []config.SourceConfig
	windowDays int
	limit      int
	logger     *slog.Logger
}

var _ ports.DocumentSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, windowDays, limit int, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:   reg,
		sources:    sources,
		windowDays: windowDays,
		limit:      limit,
		logger:     log,
	}
}

// FetchDaily iterates over configured sources, executes their scanners, and
// aggregates the results deduplicated by article id (first occurrence wins).
func (s *StrategySource) FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch daily", "sources", len(s.sources), "day", day.Format(domain.DayFormat))

	var (
		aggregated []domain.Article
		failures   []error
		seen       = map[string]struct{}{}
	)

	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Scanner)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		req := scanner.Request{
			Day:        day,
			SourceName: src.Name,
			Query:      src.Query,
			Limit:      s.limit,
			WindowDays: s.windowDays,
			Feeds:      toScannerFeeds(src.Feeds),
			Options:    src.Options,
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			failures = append(failures, fmt.Errorf("scan source %s: %w", src.Name, err))
			s.warn("source failed", "source", src.Name, "error", err)
			continue
		}

		added := 0
		for _, article := range results {
			if article.ID == "" {
				continue
			}
			if _, ok := seen[article.ID]; ok {
				continue
			}
			seen[article.ID] = struct{}{}
			if article.Journal == "" {
				article.Journal = src.Name
			}
			aggregated = append(aggregated, article)
			added++
		}
		s.debug("source produced articles", "source", src.Name, "count", added)
	}

	if len(aggregated) == 0 && len(failures) > 0 {
		return nil, errors.Join(failures...)
	}

	if s.limit > 0 && len(aggregated) > s.limit {
		aggregated = aggregated[:s.limit]
	}

	s.debug("strategy source done", "total", len(aggregated), "failed_sources", len(failures))
	return aggregated, nil
}

func toScannerFeeds(cfg []config.FeedConfig) []scanner.Feed {
	feeds := make([]scanner.Feed, 0, len(cfg))
	for _, feed := range cfg {
		feeds = append(feeds, scanner.Feed{
			Name: feed.Name,
			URL:  feed.URL,
		})
	}
	return feeds
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
