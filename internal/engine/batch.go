package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ordertalk/tagflow/internal/model"
)

// batchAccumulator collects settled outcomes from the batch's workers.
// Workers never touch the checkpoint store; they only write here, and the
// scheduler flushes the accumulator to storage once the batch settles.
type batchAccumulator struct {
	results map[string]model.DocumentResult
	mu      sync.Mutex
}

func newBatchAccumulator(size int) *batchAccumulator {
	return &batchAccumulator{
		results: make(map[string]model.DocumentResult, size),
	}
}

func (a *batchAccumulator) add(result model.DocumentResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[result.DocumentID] = result
}

// ordered returns the accumulated results in the batch's document order.
func (a *batchAccumulator) ordered(batch []model.Document) []model.DocumentResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	results := make([]model.DocumentResult, 0, len(a.results))
	for _, doc := range batch {
		if result, ok := a.results[doc.ID]; ok {
			results = append(results, result)
		}
	}
	return results
}

// processBatch annotates every document in the batch under the worker pool
// and waits until all dispatched work settles. The returned flag is true only
// when the whole batch settled; cancellation stops further dispatch, lets
// in-flight calls drain, and returns false so the caller skips the commit.
//
// Each document sees at most one annotation call in flight at any instant:
// documents are dispatched exactly once, and retries happen inside the
// annotator, sequentially per call.
func (e *Engine) processBatch(ctx context.Context, batch []model.Document) ([]model.DocumentResult, bool) {
	acc := newBatchAccumulator(len(batch))
	sem := make(chan struct{}, e.cfg.MaxWorkers)
	var wg sync.WaitGroup

	// Workers run on a detached context: cancellation is a dispatch gate, not
	// a kill switch, so calls already in flight settle before the run exits.
	workCtx := context.WithoutCancel(ctx)

	complete := true
	for _, doc := range batch {
		select {
		case <-ctx.Done():
			complete = false
		case sem <- struct{}{}:
		}
		if !complete {
			break
		}

		wg.Add(1)
		go func(doc model.Document) {
			defer wg.Done()
			defer func() { <-sem }()
			acc.add(e.annotateOne(workCtx, doc))
		}(doc)
	}

	wg.Wait()
	return acc.ordered(batch), complete
}

// annotateOne settles a single document: either an annotation or a permanent
// failure. Errors never escape the worker boundary.
func (e *Engine) annotateOne(ctx context.Context, doc model.Document) model.DocumentResult {
	annotation, err := e.annotator.Annotate(ctx, doc)
	if err != nil {
		slog.Warn("Document permanently failed",
			"document_id", doc.ID,
			"error", err)
		return model.DocumentResult{
			DocumentID: doc.ID,
			Status:     model.StatusFailed,
			Error:      err.Error(),
			SettledAt:  time.Now(),
		}
	}

	return model.DocumentResult{
		DocumentID: doc.ID,
		Status:     model.StatusAnnotated,
		Annotation: annotation,
		SettledAt:  time.Now(),
	}
}
