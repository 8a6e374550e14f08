package ports

import (
	"context"
	"errors"
	"time"

	"PaperDigest/internal/domain"
)

// ErrSnapshotNotFound reports a day with no archived snapshot. A present but
// empty snapshot is a different thing: the run happened, nothing qualified.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// DocumentSource pulls candidate articles from upstream providers.
type DocumentSource interface {
	FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error)
}

// IdentityLedger records every article id ever published to a snapshot.
// Ids are never removed.
type IdentityLedger interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	Commit(ctx context.Context, ids []string) error
}

// ScoreCache persists oracle scores so an id is never graded twice.
// Entries are write-once: an id that already has a score keeps it.
type ScoreCache interface {
	Load(ctx context.Context) (map[string]int, error)
	PutMany(ctx context.Context, scores map[string]int) error
}

// SnapshotStore owns the per-day selection archive. Read returns
// ErrSnapshotNotFound for days that were never written.
type SnapshotStore interface {
	Write(ctx context.Context, day time.Time, articles []domain.Article) error
	Read(ctx context.Context, day time.Time) ([]domain.Article, error)
	Days(ctx context.Context) ([]time.Time, error)
}

// RelevanceOracle grades an article against the research profile.
type RelevanceOracle interface {
	Score(ctx context.Context, article domain.Article) (int, error)
}

// SummaryOracle produces the structured digest for a published article.
type SummaryOracle interface {
	Summarize(ctx context.Context, article domain.Article) (domain.Summary, error)
}

// Notifier pushes the daily digest message to one outbound channel.
type Notifier interface {
	Name() string
	PublishDigest(ctx context.Context, subject, body string) error
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
