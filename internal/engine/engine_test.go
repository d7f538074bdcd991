package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordertalk/tagflow/internal/model"
	"github.com/ordertalk/tagflow/internal/service"
	"github.com/ordertalk/tagflow/internal/storage"
)

type sliceSource struct {
	docs []model.Document
}

func (s sliceSource) Enumerate(_ context.Context) ([]model.Document, error) {
	return s.docs, nil
}

type captureWriter struct {
	report *model.Report
}

func (w *captureWriter) Write(r *model.Report) error {
	w.report = r
	return nil
}

// recordingStore wraps a real store, recording every committed batch and
// optionally failing a chosen batch number before it reaches storage.
type recordingStore struct {
	service.CheckpointStore
	mu      sync.Mutex
	commits [][]string
	failOn  int
}

func newRecordingStore(inner service.CheckpointStore) *recordingStore {
	return &recordingStore{CheckpointStore: inner, failOn: -1}
}

func (s *recordingStore) CommitBatch(ctx context.Context, runID string, batch int, results []model.DocumentResult) error {
	if batch == s.failOn {
		return errors.New("injected commit failure")
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.DocumentID)
	}
	s.mu.Lock()
	s.commits = append(s.commits, ids)
	s.mu.Unlock()

	return s.CheckpointStore.CommitBatch(ctx, runID, batch, results)
}

func (s *recordingStore) committedBatches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.commits...)
}

func newEngineStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "tagflow.db"))
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeDocs(n int) []model.Document {
	docs := make([]model.Document, 0, n)
	for i := 1; i <= n; i++ {
		docs = append(docs, model.Document{
			ID:   fmt.Sprintf("call-%03d.txt", i),
			Text: "Customer: everything went smooth, very happy",
		})
	}
	return docs
}

func TestRunPartitionsIntoBatches(t *testing.T) {
	docs := makeDocs(25)
	store := newRecordingStore(newEngineStore(t))
	annotator := NewMockAnnotator()
	writer := &captureWriter{}

	var progress [][2]int
	eng := New(sliceSource{docs}, annotator, store, writer, Config{
		BatchSize:  10,
		MaxWorkers: 5,
		Resume:     true,
		ProgressFunc: func(settled, total int) {
			progress = append(progress, [2]int{settled, total})
		},
	})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	commits := store.committedBatches()
	require.Len(t, commits, 3)
	assert.Len(t, commits[0], 10)
	assert.Len(t, commits[1], 10)
	assert.Len(t, commits[2], 5)

	// Batches cover the source in order with no overlap.
	var committed []string
	for _, batch := range commits {
		committed = append(committed, batch...)
	}
	require.Len(t, committed, 25)
	for i, doc := range docs {
		assert.Equal(t, doc.ID, committed[i])
	}

	assert.Equal(t, 25, annotator.CallCount())
	assert.Equal(t, 25, rpt.Summary.DocumentsProcessed)
	assert.Equal(t, 25, rpt.Summary.Succeeded)
	assert.Zero(t, rpt.Summary.PermanentlyFailed)

	require.NotEmpty(t, progress)
	assert.Equal(t, [2]int{25, 25}, progress[len(progress)-1])
}

func TestRunAggregatesResults(t *testing.T) {
	docs := []model.Document{
		{ID: "call-001.txt", Text: "the customer sounded happy and the order was smooth"},
		{ID: "call-002.txt", Text: "caller was annoyed by the repetitions"},
		{ID: "call-003.txt", Text: "happy customer, quick call"},
	}
	writer := &captureWriter{}
	eng := New(sliceSource{docs}, NewMockAnnotator(), newEngineStore(t), writer, DefaultConfig())

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, writer.report)

	assert.Equal(t, 2, rpt.TagFrequency["happy"])
	assert.Equal(t, 1, rpt.TagFrequency["smooth"])
	assert.Equal(t, 1, rpt.TagFrequency["annoyed"])

	assert.Contains(t, rpt.RecommendedTags["Negative_Experience"], "annoyed")
	assert.Contains(t, rpt.RecommendedTags["Positive_Experience"], "happy")

	require.Len(t, rpt.Transcripts, 3)
	assert.Contains(t, rpt.Transcripts["call-001.txt"].Tags, "happy")
}

func TestRunIsolatesPermanentFailures(t *testing.T) {
	docs := makeDocs(5)
	annotator := NewMockAnnotator()
	annotator.FailWith("call-003.txt", errors.New("max retries exceeded"))

	writer := &captureWriter{}
	eng := New(sliceSource{docs}, annotator, newEngineStore(t), writer, Config{
		BatchSize:  2,
		MaxWorkers: 2,
		Resume:     true,
	})

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, rpt.Summary.DocumentsProcessed)
	assert.Equal(t, 4, rpt.Summary.Succeeded)
	assert.Equal(t, 1, rpt.Summary.PermanentlyFailed)

	// Failed documents never contribute to the aggregates.
	assert.NotContains(t, rpt.Transcripts, "call-003.txt")
	assert.Equal(t, 4, rpt.TagFrequency["happy"])

	// Every document was still dispatched despite the failure.
	assert.Equal(t, 5, annotator.CallCount())
}

func TestRunResumeSkipsSettledDocuments(t *testing.T) {
	docs := makeDocs(7)
	store := newEngineStore(t)

	first := New(sliceSource{docs}, NewMockAnnotator(), store, &captureWriter{}, Config{
		BatchSize:  3,
		MaxWorkers: 2,
		Resume:     true,
	})
	firstReport, err := first.Run(context.Background())
	require.NoError(t, err)

	annotator := NewMockAnnotator()
	second := New(sliceSource{docs}, annotator, store, &captureWriter{}, Config{
		BatchSize:  3,
		MaxWorkers: 2,
		Resume:     true,
	})
	secondReport, err := second.Run(context.Background())
	require.NoError(t, err)

	// Nothing left to annotate; the report is rebuilt from the checkpoint.
	assert.Zero(t, annotator.CallCount())
	assert.Equal(t, firstReport.TagFrequency, secondReport.TagFrequency)
	assert.Equal(t, firstReport.RecommendedTags, secondReport.RecommendedTags)
	assert.Equal(t, 7, secondReport.Summary.DocumentsProcessed)
}

func TestRunCommitFailureIsFatal(t *testing.T) {
	docs := makeDocs(25)
	sqlite := newEngineStore(t)

	store := newRecordingStore(sqlite)
	store.failOn = 1

	eng := New(sliceSource{docs}, NewMockAnnotator(), store, &captureWriter{}, Config{
		BatchSize:  10,
		MaxWorkers: 5,
		Resume:     true,
	})

	_, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "injected commit failure")

	// Only the first batch made it to storage.
	require.Len(t, store.committedBatches(), 1)

	// Resume picks up from the failed batch's first document.
	annotator := NewMockAnnotator()
	retry := New(sliceSource{docs}, annotator, newRecordingStore(sqlite), &captureWriter{}, Config{
		BatchSize:  10,
		MaxWorkers: 5,
		Resume:     true,
	})
	rpt, err := retry.Run(context.Background())
	require.NoError(t, err)

	calls := annotator.Calls()
	require.Len(t, calls, 15)
	sort.Strings(calls)
	for i, id := range calls {
		assert.Equal(t, fmt.Sprintf("call-%03d.txt", i+11), id)
	}
	assert.Equal(t, 25, rpt.Summary.DocumentsProcessed)
}

func TestRunEmptyPendingStillWritesReport(t *testing.T) {
	docs := makeDocs(3)
	store := newEngineStore(t)

	results := make([]model.DocumentResult, 0, len(docs))
	for _, doc := range docs {
		results = append(results, model.DocumentResult{
			DocumentID: doc.ID,
			Status:     model.StatusAnnotated,
			Annotation: model.Annotation{Tags: []string{"happy"}},
		})
	}
	require.NoError(t, store.CommitBatch(context.Background(), "earlier-run", 0, results))

	annotator := NewMockAnnotator()
	writer := &captureWriter{}
	eng := New(sliceSource{docs}, annotator, store, writer, DefaultConfig())

	rpt, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, annotator.CallCount())
	require.NotNil(t, writer.report)
	assert.Equal(t, 3, rpt.TagFrequency["happy"])
}

func TestRunNoResumeDiscardsCheckpoint(t *testing.T) {
	docs := makeDocs(4)
	store := newEngineStore(t)

	first := New(sliceSource{docs}, NewMockAnnotator(), store, &captureWriter{}, DefaultConfig())
	_, err := first.Run(context.Background())
	require.NoError(t, err)

	annotator := NewMockAnnotator()
	second := New(sliceSource{docs}, annotator, store, &captureWriter{}, Config{
		BatchSize:  10,
		MaxWorkers: 5,
		Resume:     false,
	})
	_, err = second.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, annotator.CallCount())
}

// cancelingAnnotator cancels the run once a given number of calls have been
// dispatched, then lingers so the dispatch gate observes the cancellation.
type cancelingAnnotator struct {
	inner   service.Annotator
	cancel  context.CancelFunc
	after   int32
	counter int32
}

func (c *cancelingAnnotator) Annotate(ctx context.Context, doc model.Document) (model.Annotation, error) {
	if atomic.AddInt32(&c.counter, 1) > c.after {
		c.cancel()
		time.Sleep(50 * time.Millisecond)
	}
	return c.inner.Annotate(ctx, doc)
}

func TestRunCancellationStopsAtBatchBoundary(t *testing.T) {
	docs := makeDocs(8)
	sqlite := newEngineStore(t)
	store := newRecordingStore(sqlite)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	annotator := &cancelingAnnotator{inner: NewMockAnnotator(), cancel: cancel, after: 4}
	eng := New(sliceSource{docs}, annotator, store, &captureWriter{}, Config{
		BatchSize:  4,
		MaxWorkers: 2,
		Resume:     true,
	})

	_, err := eng.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// The first batch settled before cancellation and was committed; the
	// second never fully settled and was not.
	commits := store.committedBatches()
	require.Len(t, commits, 1)
	assert.Len(t, commits[0], 4)

	checkpoint, loadErr := sqlite.Load(context.Background())
	require.NoError(t, loadErr)
	assert.Len(t, checkpoint.Attempted, 4)
	for i := 1; i <= 4; i++ {
		assert.Contains(t, checkpoint.Attempted, fmt.Sprintf("call-%03d.txt", i))
	}
}

func TestSliceBatches(t *testing.T) {
	docs := makeDocs(7)

	batches := sliceBatches(docs, 3)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, "call-001.txt", batches[0][0].ID)
	assert.Equal(t, "call-007.txt", batches[2][0].ID)

	assert.Nil(t, sliceBatches(nil, 3))
	assert.Len(t, sliceBatches(docs, 100), 1)
}
