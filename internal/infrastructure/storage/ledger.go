package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"PaperDigest/internal/ports"
)

// Ledger is the append-only set of article ids that were ever published to a
// snapshot. It is stored as a sorted JSON array so diffs stay readable.
type Ledger struct {
	path string
}

var _ ports.IdentityLedger = (*Ledger)(nil)

// NewLedger points the store at its backing file.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// Load reads the full id set. A missing file is an empty ledger.
func (l *Ledger) Load(ctx context.Context) (map[string]struct{}, error) {
	ids, err := l.read()
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Commit merges ids into the ledger and atomically replaces the backing
// file. Existing ids are never removed.
func (l *Ledger) Commit(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	existing, err := l.read()
	if err != nil {
		return err
	}

	merged := make(map[string]struct{}, len(existing)+len(ids))
	for _, id := range existing {
		merged[id] = struct{}{}
	}
	for _, id := range ids {
		if id != "" {
			merged[id] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(merged))
	for id := range merged {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	return writeFileAtomic(l.path, data)
}

func (l *Ledger) read() ([]string, error) {
	raw, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, l.path, err)
	}
	return ids, nil
}
