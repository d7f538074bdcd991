// Package source provides document sources for the annotation engine.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ordertalk/tagflow/internal/model"
)

// DirectorySource enumerates transcript files from a directory. Document IDs
// are the file names, which keeps them stable across runs for resume.
type DirectorySource struct {
	dir string
}

// NewDirectorySource creates a source over all .txt files in dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// Enumerate reads every .txt file in the directory in lexicographic order.
// Files that are empty after trimming whitespace are skipped. A missing or
// unreadable directory is a fatal error; an unreadable individual file is
// skipped with a warning, matching the forgiving posture of ingestion.
func (s *DirectorySource) Enumerate(ctx context.Context) ([]model.Document, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript directory %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	documents := make([]model.Document, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path) // #nosec G304 -- path is confined to the configured directory
		if err != nil {
			slog.Warn("Skipping unreadable transcript", "path", path, "error", err)
			continue
		}

		text := strings.TrimSpace(string(data))
		if text == "" {
			slog.Debug("Skipping empty transcript", "path", path)
			continue
		}

		documents = append(documents, model.Document{
			ID:   name,
			Text: text,
		})
	}

	slog.Info("Loaded transcripts", "directory", s.dir, "count", len(documents))
	return documents, nil
}
