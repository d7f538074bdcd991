package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationValidate(t *testing.T) {
	valid := Annotation{
		Tags:         []string{"happy customer", "smooth order"},
		Explanations: map[string]string{"happy customer": "thanked the agent twice"},
	}
	require.NoError(t, valid.Validate())

	invalid := Annotation{
		Tags:         []string{"happy customer"},
		Explanations: map[string]string{"upselling": "not in the tag list"},
	}
	assert.Error(t, invalid.Validate())
}

func TestCheckpointMergeNeverOverwrites(t *testing.T) {
	cp := NewCheckpoint()

	cp.Merge([]DocumentResult{{
		DocumentID: "call-001.txt",
		Status:     StatusAnnotated,
		Annotation: Annotation{Tags: []string{"happy customer"}},
	}})

	// A later merge for the same document must not replace the first result.
	cp.Merge([]DocumentResult{{
		DocumentID: "call-001.txt",
		Status:     StatusAnnotated,
		Annotation: Annotation{Tags: []string{"annoyed customer"}},
	}})

	require.Len(t, cp.Results, 1)
	assert.Equal(t, []string{"happy customer"}, cp.Results["call-001.txt"].Tags)
}

func TestCheckpointMergeTracksFailures(t *testing.T) {
	cp := NewCheckpoint()
	cp.Merge([]DocumentResult{
		{DocumentID: "call-001.txt", Status: StatusAnnotated, Annotation: Annotation{Tags: []string{"smooth order"}}},
		{DocumentID: "call-002.txt", Status: StatusFailed, Error: "max retries exceeded"},
	})

	assert.True(t, cp.Attempted["call-001.txt"])
	assert.True(t, cp.Attempted["call-002.txt"])
	assert.Contains(t, cp.Results, "call-001.txt")
	assert.NotContains(t, cp.Results, "call-002.txt")
}

func TestCheckpointPendingPreservesOrder(t *testing.T) {
	cp := NewCheckpoint()
	cp.Merge([]DocumentResult{
		{DocumentID: "b.txt", Status: StatusAnnotated},
		{DocumentID: "d.txt", Status: StatusFailed, Error: "boom"},
	})

	docs := []Document{{ID: "a.txt"}, {ID: "b.txt"}, {ID: "c.txt"}, {ID: "d.txt"}, {ID: "e.txt"}}
	pending := cp.Pending(docs)

	require.Len(t, pending, 3)
	assert.Equal(t, "a.txt", pending[0].ID)
	assert.Equal(t, "c.txt", pending[1].ID)
	assert.Equal(t, "e.txt", pending[2].ID)
}
