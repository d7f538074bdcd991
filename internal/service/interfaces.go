// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/ordertalk/tagflow/internal/model"
)

// DocumentSource produces the ordered set of documents available for
// analysis. Enumerate must be stable (same IDs, same order) across repeated
// calls within a run for resume correctness.
type DocumentSource interface {
	Enumerate(ctx context.Context) ([]model.Document, error)
}

// Annotator produces an annotation for one document, or fails. Failures from
// Annotate are terminal for the document in this run: the implementation owns
// retries for recoverable errors. Safe for concurrent use.
type Annotator interface {
	Annotate(ctx context.Context, doc model.Document) (model.Annotation, error)
}

// CheckpointStore is the durable progress record. CommitBatch must be atomic
// with respect to process crash: either the full batch is recorded or none
// of it is.
type CheckpointStore interface {
	Load(ctx context.Context) (*model.Checkpoint, error)
	CommitBatch(ctx context.Context, runID string, batch int, results []model.DocumentResult) error
	Reset(ctx context.Context) error
	Close() error
}

// ReportWriter persists the final report.
type ReportWriter interface {
	Write(report *model.Report) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
