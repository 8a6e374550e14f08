package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// --- fakes ---

type fakeSource struct {
	articles []domain.Article
	err      error
}

func (f *fakeSource) FetchDaily(ctx context.Context, day time.Time) ([]domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Article, len(f.articles))
	copy(out, f.articles)
	return out, nil
}

type fakeLedger struct {
	ids     map[string]struct{}
	loadErr error
	commits [][]string
}

func newFakeLedger(ids ...string) *fakeLedger {
	l := &fakeLedger{ids: map[string]struct{}{}}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return l
}

func (f *fakeLedger) Load(ctx context.Context) (map[string]struct{}, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]struct{}, len(f.ids))
	for id := range f.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (f *fakeLedger) Commit(ctx context.Context, ids []string) error {
	f.commits = append(f.commits, ids)
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	return nil
}

type fakeScoreCache struct {
	entries map[string]int
	loadErr error
	puts    int
}

func newFakeScoreCache() *fakeScoreCache {
	return &fakeScoreCache{entries: map[string]int{}}
}

func (f *fakeScoreCache) Load(ctx context.Context) (map[string]int, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	out := make(map[string]int, len(f.entries))
	for id, score := range f.entries {
		out[id] = score
	}
	return out, nil
}

func (f *fakeScoreCache) PutMany(ctx context.Context, scores map[string]int) error {
	f.puts++
	for id, score := range scores {
		if _, ok := f.entries[id]; ok {
			continue
		}
		f.entries[id] = score
	}
	return nil
}

type fakeSnapshotStore struct {
	files map[string][]domain.Article
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{files: map[string][]domain.Article{}}
}

func (f *fakeSnapshotStore) Write(ctx context.Context, day time.Time, articles []domain.Article) error {
	out := make([]domain.Article, len(articles))
	copy(out, articles)
	f.files[day.Format(domain.DayFormat)] = out
	return nil
}

func (f *fakeSnapshotStore) Read(ctx context.Context, day time.Time) ([]domain.Article, error) {
	articles, ok := f.files[day.Format(domain.DayFormat)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrSnapshotNotFound, day.Format(domain.DayFormat))
	}
	out := make([]domain.Article, len(articles))
	copy(out, articles)
	return out, nil
}

func (f *fakeSnapshotStore) Days(ctx context.Context) ([]time.Time, error) {
	var days []time.Time
	for key := range f.files {
		day, err := time.Parse(domain.DayFormat, key)
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days, nil
}

type fakeRelevanceOracle struct {
	mu     sync.Mutex
	scores map[string]int
	errs   map[string]error
	calls  []string
}

func (f *fakeRelevanceOracle) Score(ctx context.Context, article domain.Article) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, article.ID)
	if err, ok := f.errs[article.ID]; ok {
		return 0, err
	}
	score, ok := f.scores[article.ID]
	if !ok {
		return 0, fmt.Errorf("no scripted score for %s", article.ID)
	}
	return score, nil
}

func (f *fakeRelevanceOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRelevanceOracle) sortedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	sort.Strings(out)
	return out
}

type fakeSummaryOracle struct {
	errs  map[string]error
	calls []string
}

func (f *fakeSummaryOracle) Summarize(ctx context.Context, article domain.Article) (domain.Summary, error) {
	f.calls = append(f.calls, article.ID)
	if err, ok := f.errs[article.ID]; ok {
		return domain.Summary{}, err
	}
	return domain.Summary{
		LocalizedTitle: "localized " + article.Title,
		ToolType:       "method",
	}, nil
}

// --- harness ---

type pipelineEnv struct {
	source     *fakeSource
	ledger     *fakeLedger
	cache      *fakeScoreCache
	snapshots  *fakeSnapshotStore
	relevance  *fakeRelevanceOracle
	summarizer *fakeSummaryOracle
}

func newPipelineEnv() *pipelineEnv {
	return &pipelineEnv{
		source:     &fakeSource{},
		ledger:     newFakeLedger(),
		cache:      newFakeScoreCache(),
		snapshots:  newFakeSnapshotStore(),
		relevance:  &fakeRelevanceOracle{scores: map[string]int{}, errs: map[string]error{}},
		summarizer: &fakeSummaryOracle{errs: map[string]error{}},
	}
}

func (e *pipelineEnv) build(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	p, err := NewPipeline(PipelineDeps{
		Source:    e.source,
		Ledger:    e.ledger,
		Scores:    e.cache,
		Snapshots: e.snapshots,
		Relevance: e.relevance,
		Summary:   e.summarizer,
	}, opts)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

var testDay = time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)

// --- tests ---

func TestNewPipelineRejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	deps := PipelineDeps{
		Source:    env.source,
		Ledger:    env.ledger,
		Scores:    env.cache,
		Snapshots: env.snapshots,
	}

	if _, err := NewPipeline(deps, Options{Quota: 0, WindowDays: 30}); err == nil {
		t.Error("quota 0 should be rejected")
	}
	if _, err := NewPipeline(deps, Options{Quota: -1, WindowDays: 30}); err == nil {
		t.Error("negative quota should be rejected")
	}
	if _, err := NewPipeline(deps, Options{Quota: 5, WindowDays: 0}); err == nil {
		t.Error("window 0 should be rejected")
	}
}

func TestIngestAndSelectPublishesRankedSelection(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	env.source.articles = []domain.Article{
		{ID: "C3", Title: "third", Published: "2026-08-25"},
		{ID: "C2", Title: "second", Published: "2026-08-24"},
		{ID: "C1", Title: "first", Published: "2026-08-25"},
	}
	env.relevance.scores = map[string]int{"C1": 90, "C2": 90, "C3": 40}

	p := env.build(t, Options{Quota: 2, WindowDays: 30, Workers: 2})

	selected, err := p.IngestAndSelect(context.Background(), testDay)
	if err != nil {
		t.Fatalf("IngestAndSelect: %v", err)
	}
	if !equalIDs(selected, []string{"C1", "C2"}) {
		t.Fatalf("selected = %v, want [C1 C2]", candidateIDs(selected))
	}

	snapshot, err := env.snapshots.Read(context.Background(), testDay)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if !equalIDs(snapshot, []string{"C1", "C2"}) {
		t.Fatalf("snapshot = %v, want [C1 C2]", candidateIDs(snapshot))
	}
	if snapshot[0].Score == nil || *snapshot[0].Score != 90 {
		t.Errorf("snapshot entry C1 should carry score 90, got %v", snapshot[0].Score)
	}

	if _, ok := env.ledger.ids["C1"]; !ok {
		t.Error("C1 missing from ledger after commit")
	}
	if _, ok := env.ledger.ids["C3"]; ok {
		t.Error("C3 was not selected and must not be ledgered")
	}

	want := []string{"C1", "C2", "C3"}
	got := env.relevance.sortedCalls()
	if len(got) != len(want) {
		t.Fatalf("oracle calls = %v, want one per candidate %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("oracle calls = %v, want one per candidate %v", got, want)
		}
	}
}

func TestIngestAndSelectIdempotentRerun(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	env.source.articles = []domain.Article{
		{ID: "A", Published: "2026-08-25"},
		{ID: "B", Published: "2026-08-24"},
	}
	env.relevance.scores = map[string]int{"A": 80, "B": 60}

	p := env.build(t, Options{Quota: 5, WindowDays: 30, Workers: 1})
	ctx := context.Background()

	first, err := p.IngestAndSelect(ctx, testDay)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("first run selected %d, want 2", len(first))
	}

	second, err := p.IngestAndSelect(ctx, testDay)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second run selected %v, want empty: everything is ledgered", candidateIDs(second))
	}

	snapshot, err := env.snapshots.Read(ctx, testDay)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("rerun snapshot = %v, want empty overwrite", candidateIDs(snapshot))
	}

	// The cache served the second run: no article was graded twice.
	if calls := env.relevance.callCount(); calls != 2 {
		t.Errorf("oracle called %d times across both runs, want 2", calls)
	}
}

func TestIngestAndSelectSkipsCachedScores(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	env.source.articles = []domain.Article{{ID: "C1", Published: "2026-08-25"}}
	env.cache.entries["C1"] = 80
	// If the oracle were consulted it would disagree with the cache.
	env.relevance.scores = map[string]int{"C1": 20}

	p := env.build(t, Options{Quota: 1, WindowDays: 30, Workers: 1})
	if _, err := p.IngestAndSelect(context.Background(), testDay); err != nil {
		t.Fatalf("IngestAndSelect: %v", err)
	}

	if calls := env.relevance.callCount(); calls != 0 {
		t.Errorf("cached article was re-scored %d times", calls)
	}
	if env.cache.entries["C1"] != 80 {
		t.Errorf("cached score changed to %d, want stable 80", env.cache.entries["C1"])
	}
}

func TestIngestAndSelectOracleFailureDegrades(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	env.source.articles = []domain.Article{
		{ID: "C6", Published: "2026-08-25"},
		{ID: "C7", Published: "2026-08-24"},
	}
	env.relevance.scores = map[string]int{"C7": 50}
	env.relevance.errs["C6"] = errors.New("oracle returned garbage")

	p := env.build(t, Options{Quota: 2, WindowDays: 30, Workers: 1})
	ctx := context.Background()

	selected, err := p.IngestAndSelect(ctx, testDay)
	if err != nil {
		t.Fatalf("IngestAndSelect: %v", err)
	}

	// C6 degrades to effective score zero but stays eligible.
	if !equalIDs(selected, []string{"C7", "C6"}) {
		t.Fatalf("selected = %v, want [C7 C6]", candidateIDs(selected))
	}
	if selected[1].Score != nil {
		t.Errorf("failed-oracle article must be published unscored, got %d", *selected[1].Score)
	}
	if _, ok := env.cache.entries["C6"]; ok {
		t.Fatal("failed oracle call must not write a cache entry")
	}

	// A later score-missing pass retries C6: absence is the retry signal.
	delete(env.relevance.errs, "C6")
	env.relevance.scores["C6"] = 88

	if err := p.ScoreMissing(ctx, testDay); err != nil {
		t.Fatalf("ScoreMissing: %v", err)
	}
	snapshot, err := env.snapshots.Read(ctx, testDay)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot[1].Score == nil || *snapshot[1].Score != 88 {
		t.Errorf("ScoreMissing should attach the retried score 88, got %v", snapshot[1].Score)
	}
	if env.cache.entries["C6"] != 88 {
		t.Errorf("retried score not cached: %v", env.cache.entries)
	}
}

func TestIngestAndSelectAbortsOnCorruptState(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		wreck func(*pipelineEnv)
	}{
		{"ledger", func(e *pipelineEnv) { e.ledger.loadErr = errors.New("state file corrupt") }},
		{"score cache", func(e *pipelineEnv) { e.cache.loadErr = errors.New("state file corrupt") }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newPipelineEnv()
			env.source.articles = []domain.Article{{ID: "X", Published: "2026-08-25"}}
			env.relevance.scores = map[string]int{"X": 70}
			tc.wreck(env)

			p := env.build(t, Options{Quota: 1, WindowDays: 30, Workers: 1})
			if _, err := p.IngestAndSelect(context.Background(), testDay); err == nil {
				t.Fatal("corrupt state must abort the run")
			}

			if calls := env.relevance.callCount(); calls != 0 {
				t.Errorf("aborted run still made %d oracle calls", calls)
			}
			if len(env.snapshots.files) != 0 {
				t.Error("aborted run wrote a snapshot")
			}
			if len(env.ledger.commits) != 0 {
				t.Error("aborted run committed to the ledger")
			}
		})
	}
}

func TestIngestAndSelectSourceFailureAborts(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	env.source.err = errors.New("all sources failed")

	p := env.build(t, Options{Quota: 5, WindowDays: 30, Workers: 1})
	if _, err := p.IngestAndSelect(context.Background(), testDay); err == nil {
		t.Fatal("source failure must abort the run")
	}
	if len(env.snapshots.files) != 0 {
		t.Error("failed run wrote a snapshot")
	}
}

func TestIngestAndSelectEmptySelectionWritesEmptySnapshot(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	env.source.articles = []domain.Article{{ID: "old", Published: "2026-08-25"}}
	env.cache.entries["old"] = 95
	env.ledger.ids["old"] = struct{}{}

	p := env.build(t, Options{Quota: 5, WindowDays: 30, Workers: 1})
	selected, err := p.IngestAndSelect(context.Background(), testDay)
	if err != nil {
		t.Fatalf("IngestAndSelect: %v", err)
	}
	if len(selected) != 0 {
		t.Fatalf("selected = %v, want empty", candidateIDs(selected))
	}

	snapshot, err := env.snapshots.Read(context.Background(), testDay)
	if err != nil {
		t.Fatalf("an empty run must still write its snapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("snapshot = %v, want empty", candidateIDs(snapshot))
	}
}

func TestIngestAndSelectWorkerPoolScoresEverything(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("P%02d", i)
		env.source.articles = append(env.source.articles,
			domain.Article{ID: id, Published: "2026-08-25"})
		env.relevance.scores[id] = i * 10
	}

	p := env.build(t, Options{Quota: 10, WindowDays: 30, Workers: 4})
	selected, err := p.IngestAndSelect(context.Background(), testDay)
	if err != nil {
		t.Fatalf("IngestAndSelect: %v", err)
	}

	if len(selected) != 10 {
		t.Fatalf("selected %d articles, want 10", len(selected))
	}
	if calls := env.relevance.callCount(); calls != 10 {
		t.Fatalf("oracle called %d times, want 10", calls)
	}
	// Highest score first regardless of which worker graded it.
	if selected[0].ID != "P09" {
		t.Errorf("top selection = %s, want P09", selected[0].ID)
	}
	if len(env.cache.entries) != 10 {
		t.Errorf("cache holds %d entries, want 10", len(env.cache.entries))
	}
}

func TestScoreMissingNoSnapshotIsNoop(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	p := env.build(t, Options{Quota: 5, WindowDays: 30, Workers: 1})

	if err := p.ScoreMissing(context.Background(), testDay); err != nil {
		t.Fatalf("missing snapshot should be a no-op, got %v", err)
	}
}

func TestScoreMissingPrefersCacheOverOracle(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	env.snapshots.files[testDay.Format(domain.DayFormat)] = []domain.Article{
		{ID: "hit", Title: "cache hit", Published: "2026-08-25"},
	}
	env.cache.entries["hit"] = 73

	p := env.build(t, Options{Quota: 5, WindowDays: 30, Workers: 1})
	if err := p.ScoreMissing(context.Background(), testDay); err != nil {
		t.Fatalf("ScoreMissing: %v", err)
	}

	if calls := env.relevance.callCount(); calls != 0 {
		t.Errorf("cache hit still reached the oracle %d times", calls)
	}
	snapshot, _ := env.snapshots.Read(context.Background(), testDay)
	if snapshot[0].Score == nil || *snapshot[0].Score != 73 {
		t.Errorf("snapshot score = %v, want 73 from cache", snapshot[0].Score)
	}
}

func TestSummarizeAttachesAndDegrades(t *testing.T) {
	t.Parallel()

	done := domain.Summary{LocalizedTitle: "done"}
	env := newPipelineEnv()
	env.snapshots.files[testDay.Format(domain.DayFormat)] = []domain.Article{
		{ID: "done", Title: "already summarized", Summary: &done},
		{ID: "ok", Title: "fresh"},
		{ID: "bad", Title: "oracle chokes"},
	}
	env.summarizer.errs["bad"] = errors.New("malformed payload")

	p := env.build(t, Options{Quota: 5, WindowDays: 30, Workers: 1})
	if err := p.Summarize(context.Background(), testDay); err != nil {
		t.Fatalf("Summarize: %v", err)
	}

	if got := env.summarizer.calls; len(got) != 2 || got[0] != "ok" || got[1] != "bad" {
		t.Fatalf("summarizer calls = %v, want [ok bad]", got)
	}

	snapshot, _ := env.snapshots.Read(context.Background(), testDay)
	if snapshot[0].Summary == nil || snapshot[0].Summary.LocalizedTitle != "done" {
		t.Error("existing summary was disturbed")
	}
	if snapshot[1].Summary == nil || snapshot[1].Summary.LocalizedTitle != "localized fresh" {
		t.Errorf("fresh entry summary = %+v, want attached", snapshot[1].Summary)
	}
	if snapshot[2].Summary != nil {
		t.Error("failed entry must stay summaryless for a later retry")
	}
}

func TestSummarizeNoSnapshotIsNoop(t *testing.T) {
	t.Parallel()

	env := newPipelineEnv()
	p := env.build(t, Options{Quota: 5, WindowDays: 30, Workers: 1})

	if err := p.Summarize(context.Background(), testDay); err != nil {
		t.Fatalf("missing snapshot should be a no-op, got %v", err)
	}
	if len(env.summarizer.calls) != 0 {
		t.Errorf("summarizer called %d times for a missing snapshot", len(env.summarizer.calls))
	}
}
