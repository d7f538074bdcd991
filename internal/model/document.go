// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"
)

// Document is a single call transcript to annotate. The ID is stable across
// runs (for directory sources it is the transcript file name) and is the join
// key for checkpointing and aggregation.
type Document struct {
	ID   string
	Text string
}

// Annotation holds the tags suggested for one document and a per-tag
// explanation of why each applies. Every key in Explanations must be a member
// of Tags.
type Annotation struct {
	Explanations map[string]string `json:"explanations"`
	Tags         []string          `json:"tags"`
}

// Validate checks the annotation's internal consistency.
func (a Annotation) Validate() error {
	tags := make(map[string]bool, len(a.Tags))
	for _, tag := range a.Tags {
		tags[tag] = true
	}
	for tag := range a.Explanations {
		if !tags[tag] {
			return fmt.Errorf("explanation for unknown tag %q", tag)
		}
	}
	return nil
}

// DocumentStatus indicates how a document settled.
type DocumentStatus string

// Document status constants.
const (
	StatusAnnotated DocumentStatus = "ANNOTATED"
	StatusFailed    DocumentStatus = "FAILED"
)

// DocumentResult is the settled outcome for one document within a batch.
// A document settles exactly once per job: either with an annotation or with
// a permanent failure reason.
type DocumentResult struct {
	DocumentID string
	Status     DocumentStatus
	Error      string
	Annotation Annotation
	SettledAt  time.Time
}

// Checkpoint is the durable progress record loaded at startup. Results holds
// every successfully annotated document; Attempted additionally includes
// permanently failed ones, so a resumed run never retries a settled document.
type Checkpoint struct {
	Results   map[string]Annotation
	Attempted map[string]bool
}

// NewCheckpoint returns an empty checkpoint.
func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Results:   make(map[string]Annotation),
		Attempted: make(map[string]bool),
	}
}

// Merge folds a settled batch into the checkpoint. Existing entries are never
// overwritten; a document already present is permanently done.
func (c *Checkpoint) Merge(results []DocumentResult) {
	for _, r := range results {
		if c.Attempted[r.DocumentID] {
			continue
		}
		c.Attempted[r.DocumentID] = true
		if r.Status == StatusAnnotated {
			c.Results[r.DocumentID] = r.Annotation
		}
	}
}

// Pending returns the documents not yet settled, preserving source order.
func (c *Checkpoint) Pending(docs []Document) []Document {
	pending := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if !c.Attempted[doc.ID] {
			pending = append(pending, doc)
		}
	}
	return pending
}
