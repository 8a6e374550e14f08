package parser

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

// RSSScanner polls journal RSS and Atom feeds.
type RSSScanner struct {
	client *http.Client
	logger *slog.Logger
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client; a nil client gets a 30s timeout.
func NewRSSScanner(client *http.Client, logger *slog.Logger) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RSSScanner{client: client, logger: logger}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches every configured feed. A broken feed degrades to a warning;
// the scan only errors when all feeds failed and nothing was collected.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("source %s: rss scanner needs at least one feed", req.SourceName)
	}

	var (
		articles []domain.Article
		failures []error
	)

	for _, feed := range req.Feeds {
		parsed, err := r.fetchFeed(ctx, feed.URL)
		if err != nil {
			failures = append(failures, fmt.Errorf("feed %s: %w", feed.Name, err))
			if r.logger != nil {
				r.logger.Warn("feed failed", "source", req.SourceName, "feed", feed.Name, "error", err)
			}
			continue
		}

		journal := strings.TrimSpace(parsed.Title)
		if journal == "" {
			journal = feed.Name
		}

		for _, item := range parsed.Items {
			article, ok := rssItemToArticle(item, journal)
			if !ok {
				continue
			}
			articles = append(articles, article)
			if req.Limit > 0 && len(articles) >= req.Limit {
				return articles, nil
			}
		}
	}

	if len(articles) == 0 && len(failures) > 0 {
		return nil, errors.Join(failures...)
	}
	return articles, nil
}

func (r *RSSScanner) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func rssItemToArticle(item *gofeed.Item, journal string) (domain.Article, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return domain.Article{}, false
	}

	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}
	if id == "" {
		return domain.Article{}, false
	}

	var authors []string
	for _, person := range item.Authors {
		if person == nil {
			continue
		}
		if name := strings.TrimSpace(person.Name); name != "" {
			authors = append(authors, name)
		}
	}

	return domain.Article{
		ID:        id,
		Title:     title,
		Abstract:  rssExcerpt(item),
		Authors:   authors,
		Published: rssPublished(item),
		Journal:   journal,
		URL:       strings.TrimSpace(item.Link),
	}, true
}

// rssExcerpt prefers full content over the description, stripped of markup.
func rssExcerpt(item *gofeed.Item) string {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	return stripHTML(raw)
}

// rssPublished normalizes the item date to YYYY-MM-DD via the feed's parsed
// timestamps, falling back to fuzzy parsing of the raw date string.
func rssPublished(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(domain.DayFormat)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(domain.DayFormat)
	}

	raw := item.Published
	if raw == "" {
		raw = item.Updated
	}
	if raw == "" {
		return ""
	}
	when, err := dateparse.ParseAny(raw)
	if err != nil {
		return ""
	}
	return when.UTC().Format(domain.DayFormat)
}

var (
	htmlTagExpr    = regexp.MustCompile(`<[^>]*>`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// stripHTML flattens markup into plain text.
func stripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	text := htmlTagExpr.ReplaceAllString(raw, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
}
