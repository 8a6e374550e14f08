package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

const arxivBaseURL = "https://arxiv.org"

var listingDateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3,} \d{4}`)

// ArxivScanner crawls arXiv listing pages. Each configured feed is one
// category listing URL; pagination stops once entries age past the window.
type ArxivScanner struct {
	client   *http.Client
	logger   *slog.Logger
	pageSize int
}

var _ scanner.Scanner = (*ArxivScanner)(nil)

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client, logger *slog.Logger) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArxivScanner{client: client, logger: logger, pageSize: 200}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks each category listing and returns entries still inside the
// recency window. A broken listing degrades to a warning; the scan only
// errors when all listings failed and nothing was collected.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Feeds) == 0 {
		return nil, fmt.Errorf("source %s: arxiv scanner needs at least one listing feed", req.SourceName)
	}

	window := req.WindowDays
	if window <= 0 {
		window = 30
	}
	cutoff := req.Day.AddDate(0, 0, -window).Format(domain.DayFormat)

	var (
		articles []domain.Article
		failures []error
		seen     = map[string]struct{}{}
	)

	for _, feed := range req.Feeds {
		collected, err := a.scanListing(ctx, feed, cutoff, req.Limit)
		if err != nil {
			failures = append(failures, fmt.Errorf("listing %s: %w", feed.Name, err))
			if a.logger != nil {
				a.logger.Warn("listing failed", "source", req.SourceName, "feed", feed.Name, "error", err)
			}
			continue
		}
		for _, article := range collected {
			if _, ok := seen[article.ID]; ok {
				continue
			}
			seen[article.ID] = struct{}{}
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

func (a *ArxivScanner) scanListing(ctx context.Context, feed scanner.Feed, cutoff string, limit int) ([]domain.Article, error) {
	var collected []domain.Article
	for skip := 0; ; skip += a.pageSize {
		pageURL, err := buildListingURL(feed.URL, skip, a.pageSize)
		if err != nil {
			return nil, err
		}
		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		pageArticles, processed, keepPaging := extractListingEntries(doc, feed.Name, cutoff)
		collected = append(collected, pageArticles...)

		if limit > 0 && len(collected) >= limit {
			return collected[:limit], nil
		}
		if !keepPaging || processed < a.pageSize {
			return collected, nil
		}
	}
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	return doc, nil
}

// extractListingEntries parses one listing page. Listings run newest first,
// so the first entry older than the cutoff ends the crawl.
func extractListingEntries(doc *goquery.Document, category, cutoff string) ([]domain.Article, int, bool) {
	var (
		collected  []domain.Article
		processed  int
		keepPaging = true
	)

	doc.Find("dl > dt").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		processed++
		article := parseListingEntry(dt, dt.Next(), category)
		if article.ID == "" {
			return true
		}
		if article.Published != "" && article.Published < cutoff {
			keepPaging = false
			return false
		}
		collected = append(collected, article)
		return true
	})

	return collected, processed, keepPaging
}

func parseListingEntry(dt, dd *goquery.Selection, category string) domain.Article {
	link := dt.Find(`a[href*="/abs/"]`).First()

	id := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if id == "" && href != "" {
		id = "arXiv:" + strings.TrimPrefix(href, "/abs/")
	}
	if id == "" {
		return domain.Article{}
	}
	if href != "" && !strings.HasPrefix(href, "http") {
		href = arxivBaseURL + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	abstract := strings.TrimSpace(dd.Find("p.mathjax").First().Text())
	abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, sel *goquery.Selection) {
		if name := strings.TrimSpace(sel.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	journal := "arXiv"
	if category != "" {
		journal = "arXiv " + category
	}

	return domain.Article{
		ID:        id,
		Title:     title,
		Abstract:  abstract,
		Authors:   authors,
		Published: listingDate(dd),
		Journal:   journal,
		URL:       href,
	}
}

// listingDate pulls the announcement date out of the entry metadata.
func listingDate(dd *goquery.Selection) string {
	text := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if text == "" {
		text = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	match := listingDateExpr.FindString(text)
	if match == "" {
		return ""
	}
	when, err := dateparse.ParseAny(match)
	if err != nil {
		return ""
	}
	return when.UTC().Format(domain.DayFormat)
}

func buildListingURL(base string, skip, show int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(show))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
