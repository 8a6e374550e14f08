package storage

import (
	"errors"
	"fmt"
	"os"
)

// ErrCorrupt marks a state file that exists but cannot be decoded. Callers
// treat it as fatal: guessing at state risks double-publishing.
var ErrCorrupt = errors.New("storage: state file corrupt")

// writeFileAtomic replaces path by writing a sibling temp file and renaming
// it over, so readers never observe a half-written file.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
