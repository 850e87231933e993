// Package storage keeps generated export files on local disk.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/campus-request-api/pkg/clock"
)

// ErrOutsideDir is returned for names that would escape the base directory.
var ErrOutsideDir = errors.New("path escapes export directory")

// Dir is a flat directory of export files.
type Dir struct {
	base  string
	clock clock.Clock
}

// NewDir ensures base exists. An empty base means ./exports.
func NewDir(base string, c clock.Clock) (*Dir, error) {
	if base == "" {
		base = "./exports"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Dir{base: base, clock: clock.OrSystem(c)}, nil
}

// Create opens name for writing, truncating any previous file, and returns
// the resolved path.
func (d *Dir) Create(name string) (*os.File, string, error) {
	path, err := d.resolve(name)
	if err != nil {
		return nil, "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("create export file: %w", err)
	}
	return f, path, nil
}

// Prune deletes regular files last modified before now-ttl and returns their names.
func (d *Dir) Prune(ttl time.Duration) ([]string, error) {
	cutoff := d.clock.Now().Add(-ttl)
	entries, err := os.ReadDir(d.base)
	if err != nil {
		return nil, fmt.Errorf("list export directory: %w", err)
	}

	removed := make([]string, 0)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.base, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove %s: %w", entry.Name(), err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

func (d *Dir) resolve(name string) (string, error) {
	clean := filepath.Clean(name)
	if clean == "." || filepath.IsAbs(clean) || strings.ContainsRune(clean, filepath.Separator) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrOutsideDir, name)
	}
	return filepath.Join(d.base, clean), nil
}
