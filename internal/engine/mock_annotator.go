package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ordertalk/tagflow/internal/model"
)

// MockAnnotator is a test implementation of the Annotator interface. It
// derives deterministic tags from the transcript text and can be scripted to
// fail specific documents.
type MockAnnotator struct {
	failures map[string]error
	calls    []string
	mu       sync.Mutex
}

// NewMockAnnotator creates a new mock annotator.
func NewMockAnnotator() *MockAnnotator {
	return &MockAnnotator{
		failures: make(map[string]error),
		calls:    make([]string, 0),
	}
}

// FailWith scripts a permanent failure for the given document.
func (m *MockAnnotator) FailWith(documentID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[documentID] = err
}

// Annotate returns keyword-derived tags so tests control outcomes through
// transcript text alone.
func (m *MockAnnotator) Annotate(_ context.Context, doc model.Document) (model.Annotation, error) {
	m.mu.Lock()
	m.calls = append(m.calls, doc.ID)
	err := m.failures[doc.ID]
	m.mu.Unlock()

	if err != nil {
		return model.Annotation{}, err
	}

	text := strings.ToLower(doc.Text)

	var tags []string
	explanations := make(map[string]string)
	for _, keyword := range []string{"happy", "smooth", "annoyed", "upselling", "human requested", "quick call", "repetitions"} {
		if strings.Contains(text, keyword) {
			tags = append(tags, keyword)
			explanations[keyword] = fmt.Sprintf("transcript mentions %q", keyword)
		}
	}
	if len(tags) == 0 {
		tags = []string{"uneventful"}
		explanations["uneventful"] = "nothing notable in the transcript"
	}

	return model.Annotation{Tags: tags, Explanations: explanations}, nil
}

// Calls returns the document IDs annotated so far, in call order.
func (m *MockAnnotator) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns the number of Annotate invocations.
func (m *MockAnnotator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears all recorded calls.
func (m *MockAnnotator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make([]string, 0)
}
