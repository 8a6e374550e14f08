package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// SnapshotStore archives the selected articles for each day as one
// YYYY-MM-DD.json file per day.
type SnapshotStore struct {
	dir string
}

var _ ports.SnapshotStore = (*SnapshotStore)(nil)

// NewSnapshotStore points the store at its directory.
func NewSnapshotStore(dir string) *SnapshotStore {
	return &SnapshotStore{dir: dir}
}

// Write replaces the day's snapshot wholesale. An empty selection still
// writes an empty array: the run happened, nothing qualified.
func (s *SnapshotStore) Write(ctx context.Context, day time.Time, articles []domain.Article) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	if articles == nil {
		articles = []domain.Article{}
	}
	data, err := json.MarshalIndent(articles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return writeFileAtomic(s.path(day), data)
}

// Read returns the day's snapshot or ports.ErrSnapshotNotFound.
func (s *SnapshotStore) Read(ctx context.Context, day time.Time) ([]domain.Article, error) {
	raw, err := os.ReadFile(s.path(day))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ports.ErrSnapshotNotFound, day.Format(domain.DayFormat))
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var articles []domain.Article
	if err := json.Unmarshal(raw, &articles); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path(day), err)
	}
	return articles, nil
}

// Days lists every archived day, newest first. Files that do not look like
// day snapshots are skipped.
func (s *SnapshotStore) Days(ctx context.Context) ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var days []time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, found := strings.CutSuffix(entry.Name(), ".json")
		if !found {
			continue
		}
		day, err := time.Parse(domain.DayFormat, name)
		if err != nil {
			continue
		}
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days, nil
}

func (s *SnapshotStore) path(day time.Time) string {
	return filepath.Join(s.dir, day.Format(domain.DayFormat)+".json")
}
