package pages

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Site carries reader-facing page metadata.
type Site struct {
	Title       string
	Description string
	BaseURL     string
}

// Renderer writes the static HTML site from the snapshot archive.
type Renderer struct {
	snapshots ports.SnapshotStore
	site      Site
	outDir    string
	templates *template.Template
	logger    *slog.Logger
}

// NewRenderer parses the embedded templates.
func NewRenderer(snapshots ports.SnapshotStore, site Site, outDir string, logger *slog.Logger) (*Renderer, error) {
	tmpl, err := template.New("pages").
		Funcs(template.FuncMap{"authorLine": authorLine}).
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("pages: parse templates: %w", err)
	}
	return &Renderer{
		snapshots: snapshots,
		site:      site,
		outDir:    outDir,
		templates: tmpl,
		logger:    logger,
	}, nil
}

type dayPage struct {
	Site     Site
	Day      string
	Articles []domain.Article
}

type archiveEntry struct {
	Day   string
	Count int
}

type archivePage struct {
	Site    Site
	Entries []archiveEntry
}

// RenderAll writes one page per snapshot day, an archive listing, and
// index.html mirroring the newest day.
func (r *Renderer) RenderAll(ctx context.Context) error {
	if err := os.MkdirAll(r.outDir, 0o755); err != nil {
		return fmt.Errorf("pages: create output dir: %w", err)
	}

	days, err := r.snapshots.Days(ctx)
	if err != nil {
		return fmt.Errorf("pages: list snapshot days: %w", err)
	}

	entries := make([]archiveEntry, 0, len(days))
	for i, day := range days {
		articles, err := r.snapshots.Read(ctx, day)
		if err != nil {
			return fmt.Errorf("pages: read snapshot: %w", err)
		}

		key := day.Format(domain.DayFormat)
		page := dayPage{Site: r.site, Day: key, Articles: articles}

		if err := r.renderTo(key+".html", "day.tmpl", page); err != nil {
			return err
		}
		if i == 0 {
			if err := r.renderTo("index.html", "day.tmpl", page); err != nil {
				return err
			}
		}
		entries = append(entries, archiveEntry{Day: key, Count: len(articles)})
	}

	if len(days) == 0 {
		empty := dayPage{Site: r.site, Day: time.Now().UTC().Format(domain.DayFormat)}
		if err := r.renderTo("index.html", "day.tmpl", empty); err != nil {
			return err
		}
	}

	if err := r.renderTo("archive.html", "archive.tmpl", archivePage{Site: r.site, Entries: entries}); err != nil {
		return err
	}

	if r.logger != nil {
		r.logger.Info("site rendered", "days", len(days), "dir", r.outDir)
	}
	return nil
}

func (r *Renderer) renderTo(filename, tmpl string, data any) error {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("pages: render %s: %w", filename, err)
	}
	if err := os.WriteFile(filepath.Join(r.outDir, filename), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("pages: write %s: %w", filename, err)
	}
	return nil
}

// authorLine joins the first eight authors for the card byline.
func authorLine(authors []string) string {
	if len(authors) > 8 {
		authors = authors[:8]
	}
	return strings.Join(authors, ", ")
}
