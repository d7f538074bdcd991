package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ordertalk/tagflow/internal/model"
)

// JSONWriter persists the report to a JSON file. The write goes through a
// temporary file and an atomic rename so a crash mid-write cannot leave a
// torn report behind.
type JSONWriter struct {
	path string
}

// NewJSONWriter creates a writer targeting the given output path.
func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

// Write marshals and persists the report.
func (w *JSONWriter) Write(r *model.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(w.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if err := os.Rename(tmpPath, w.path); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}

	return nil
}
