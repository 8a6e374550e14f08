package parser

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/scanner"
)

const (
	entrezBaseURL   = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	pubmedURLPrefix = "https://pubmed.ncbi.nlm.nih.gov/"
	entrezFetchSize = 100
)

// EntrezScanner queries the PubMed E-utilities API: esearch for recent ids,
// efetch for the article metadata.
type EntrezScanner struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewEntrezScanner wires an HTTP client; a nil client gets a 30s timeout.
func NewEntrezScanner(client *http.Client, logger *slog.Logger) *EntrezScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &EntrezScanner{client: client, baseURL: entrezBaseURL, logger: logger}
}

// Name identifies the strategy inside the registry.
func (e *EntrezScanner) Name() string {
	return "entrez"
}

// Scan searches PubMed for the configured query within the recency window
// and hydrates metadata for every hit.
func (e *EntrezScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("source %s: entrez scanner needs a query", req.SourceName)
	}

	base := e.baseURL
	if v := req.Options["baseUrl"]; v != "" {
		base = v
	}
	base = strings.TrimSuffix(base, "/")

	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	window := req.WindowDays
	if window <= 0 {
		window = 30
	}

	ids, err := e.search(ctx, base, query, window, limit)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", req.SourceName, err)
	}
	if e.logger != nil {
		e.logger.Debug("esearch done", "source", req.SourceName, "ids", len(ids))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var articles []domain.Article
	for start := 0; start < len(ids); start += entrezFetchSize {
		end := min(start+entrezFetchSize, len(ids))
		batch, err := e.fetch(ctx, base, ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", req.SourceName, err)
		}
		articles = append(articles, batch...)
	}
	return articles, nil
}

func (e *EntrezScanner) search(ctx context.Context, base, query string, windowDays, limit int) ([]string, error) {
	term := fmt.Sprintf("(%s) AND (\"last %d days\"[dp])", query, windowDays)

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(limit))
	params.Set("sort", "pub date")
	params.Set("retmode", "json")

	raw, err := e.get(ctx, base+"/esearch.fcgi?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result struct {
			IDList []string `json:"idlist"`
		} `json:"esearchresult"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode esearch response: %w", err)
	}
	return parsed.Result.IDList, nil
}

func (e *EntrezScanner) fetch(ctx context.Context, base string, ids []string) ([]domain.Article, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")

	raw, err := e.get(ctx, base+"/efetch.fcgi?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var parsed pubmedArticleSet
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode efetch response: %w", err)
	}

	articles := make([]domain.Article, 0, len(parsed.Articles))
	for _, entry := range parsed.Articles {
		article := entry.toArticle()
		if article.ID == "" {
			continue
		}
		articles = append(articles, article)
	}
	return articles, nil
}

func (e *EntrezScanner) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request entrez: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entrez returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

type pubmedArticleSet struct {
	Articles []pubmedEntry `xml:"PubmedArticle"`
}

type pubmedEntry struct {
	PMID     string         `xml:"MedlineCitation>PMID"`
	Title    string         `xml:"MedlineCitation>Article>ArticleTitle"`
	Abstract []string       `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Authors  []pubmedAuthor `xml:"MedlineCitation>Article>AuthorList>Author"`
	Journal  string         `xml:"MedlineCitation>Article>Journal>Title"`
	PubDate  pubmedDate     `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate"`
}

type pubmedAuthor struct {
	LastName string `xml:"LastName"`
	Initials string `xml:"Initials"`
}

type pubmedDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

func (p pubmedEntry) toArticle() domain.Article {
	pmid := strings.TrimSpace(p.PMID)

	authors := make([]string, 0, len(p.Authors))
	for _, author := range p.Authors {
		name := strings.TrimSpace(author.LastName)
		if name == "" {
			continue
		}
		if initials := strings.TrimSpace(author.Initials); initials != "" {
			name = name + " " + initials
		}
		authors = append(authors, name)
	}

	parts := make([]string, 0, len(p.Abstract))
	for _, part := range p.Abstract {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	return domain.Article{
		ID:        pmid,
		Title:     strings.TrimSpace(p.Title),
		Abstract:  strings.Join(parts, "\n"),
		Authors:   authors,
		Published: p.PubDate.normalize(),
		Journal:   strings.TrimSpace(p.Journal),
		URL:       pubmedURLPrefix + pmid + "/",
	}
}

var monthNumbers = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

// normalize assembles YYYY-MM-DD, defaulting month and day to 01 when the
// record only carries a partial date. No year means no usable date.
func (d pubmedDate) normalize() string {
	year := strings.TrimSpace(d.Year)
	if year == "" {
		return ""
	}

	month := strings.ToLower(strings.TrimSpace(d.Month))
	if number, ok := monthNumbers[month]; ok {
		month = number
	}
	if month == "" {
		month = "01"
	}
	if len(month) == 1 {
		month = "0" + month
	}

	day := strings.TrimSpace(d.Day)
	if day == "" {
		day = "01"
	}
	if len(day) == 1 {
		day = "0" + day
	}

	return year + "-" + month + "-" + day
}
