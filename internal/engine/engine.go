// Package engine implements the resumable batch annotation engine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ordertalk/tagflow/internal/model"
	"github.com/ordertalk/tagflow/internal/report"
	"github.com/ordertalk/tagflow/internal/service"
)

// Config holds configuration options for the annotation engine.
type Config struct {
	// ProgressFunc, when set, is called after each settled document with the
	// cumulative settled count and the total pending count for this run.
	ProgressFunc func(settled, total int)
	Rules        []report.CategoryRule
	BatchSize    int
	MaxWorkers   int
	// Resume controls whether an existing checkpoint is honored. When false
	// the checkpoint is discarded and every document is annotated afresh.
	Resume bool
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:  10,
		MaxWorkers: 5,
		Resume:     true,
	}
}

// Engine drives the pending document set to completion: it partitions work
// into fixed-size batches, annotates each batch under a bounded worker pool,
// commits every settled batch atomically, and aggregates the cumulative
// results into the final report.
type Engine struct {
	source    service.DocumentSource
	annotator service.Annotator
	store     service.CheckpointStore
	writer    service.ReportWriter
	cfg       Config
}

// New creates an annotation engine with the given collaborators.
func New(source service.DocumentSource, annotator service.Annotator, store service.CheckpointStore, writer service.ReportWriter, cfg Config) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultConfig().MaxWorkers
	}
	if cfg.Rules == nil {
		cfg.Rules = report.DefaultCategoryRules
	}
	return &Engine{
		source:    source,
		annotator: annotator,
		store:     store,
		writer:    writer,
		cfg:       cfg,
	}
}

// Run executes one annotation job: load checkpoint, compute the pending set,
// process it batch by batch, then aggregate and persist the report. Source
// and storage failures are fatal; per-document failures are contained and
// reported in the summary. An empty pending set still produces a report, so
// a completed corpus can be re-aggregated without re-annotating.
func (e *Engine) Run(ctx context.Context) (*model.Report, error) {
	start := time.Now()
	runID := uuid.New().String()

	if !e.cfg.Resume {
		slog.Info("Resume disabled, discarding existing checkpoint")
		if err := e.store.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset checkpoint: %w", err)
		}
	}

	checkpoint, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	documents, err := e.source.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate documents: %w", err)
	}

	pending := checkpoint.Pending(documents)
	slog.Info("Starting annotation run",
		"run_id", runID,
		"total_documents", len(documents),
		"already_settled", len(documents)-len(pending),
		"pending", len(pending),
		"batch_size", e.cfg.BatchSize,
		"max_workers", e.cfg.MaxWorkers)

	settled := 0
	for batchNum, batch := range sliceBatches(pending, e.cfg.BatchSize) {
		results, complete := e.processBatch(ctx, batch)
		if !complete {
			// Cancellation drained the in-flight calls but the batch never
			// fully settled. The checkpoint stays at the last committed
			// boundary; the whole batch is retried on resume.
			slog.Warn("Run canceled, batch not committed",
				"batch", batchNum,
				"settled_in_batch", len(results))
			return nil, ctx.Err()
		}

		// A batch that fully settled is committed even when cancellation
		// arrived during the drain, so the checkpoint lands on a clean
		// boundary.
		if err := e.store.CommitBatch(context.WithoutCancel(ctx), runID, batchNum, results); err != nil {
			// Proceeding without a durable checkpoint risks repeating or
			// losing work on the next resume.
			return nil, fmt.Errorf("failed to commit batch %d: %w", batchNum, err)
		}

		checkpoint.Merge(results)
		settled += len(results)
		if e.cfg.ProgressFunc != nil {
			e.cfg.ProgressFunc(settled, len(pending))
		}

		slog.Info("Batch committed",
			"run_id", runID,
			"batch", batchNum,
			"documents", len(results))
	}

	frequency, recommended := report.Aggregate(checkpoint.Results, e.cfg.Rules)

	rpt := &model.Report{
		RunID:           runID,
		GeneratedAt:     time.Now(),
		Transcripts:     checkpoint.Results,
		TagFrequency:    frequency,
		RecommendedTags: recommended,
		Summary: model.RunSummary{
			DocumentsProcessed: len(checkpoint.Attempted),
			Succeeded:          len(checkpoint.Results),
			PermanentlyFailed:  len(checkpoint.Attempted) - len(checkpoint.Results),
			DurationSeconds:    time.Since(start).Seconds(),
		},
	}

	if err := e.writer.Write(rpt); err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	slog.Info("Annotation run complete",
		"run_id", runID,
		"processed", rpt.Summary.DocumentsProcessed,
		"succeeded", rpt.Summary.Succeeded,
		"failed", rpt.Summary.PermanentlyFailed,
		"duration", time.Since(start))

	return rpt, nil
}

// sliceBatches partitions documents into batches of at most size, preserving
// source order. The last batch may be smaller.
func sliceBatches(documents []model.Document, size int) [][]model.Document {
	if len(documents) == 0 {
		return nil
	}
	batches := make([][]model.Document, 0, (len(documents)+size-1)/size)
	for start := 0; start < len(documents); start += size {
		end := start + size
		if end > len(documents) {
			end = len(documents)
		}
		batches = append(batches, documents[start:end])
	}
	return batches
}
