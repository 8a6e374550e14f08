package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"PaperDigest/internal/ports"
)

// ScoreStore persists oracle scores keyed by article id as a JSON object.
// An id with no entry was never graded successfully; absence is the retry
// signal, distinct from a legitimate score of zero.
type ScoreStore struct {
	path string
}

var _ ports.ScoreCache = (*ScoreStore)(nil)

// NewScoreStore points the store at its backing file.
func NewScoreStore(path string) *ScoreStore {
	return &ScoreStore{path: path}
}

// Load reads the full cache. A missing file is an empty cache.
func (s *ScoreStore) Load(ctx context.Context) (map[string]int, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]int{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read score cache: %w", err)
	}

	var scores map[string]int
	if err := json.Unmarshal(raw, &scores); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	if scores == nil {
		scores = map[string]int{}
	}
	return scores, nil
}

// PutMany merges new entries into the cache and atomically replaces the
// backing file. An id that already has a score keeps it.
func (s *ScoreStore) PutMany(ctx context.Context, scores map[string]int) error {
	if len(scores) == 0 {
		return nil
	}

	existing, err := s.Load(ctx)
	if err != nil {
		return err
	}

	for id, score := range scores {
		if _, ok := existing[id]; ok {
			continue
		}
		existing[id] = score
	}

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal score cache: %w", err)
	}
	return writeFileAtomic(s.path, data)
}
