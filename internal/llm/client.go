// Package llm implements the annotation client backed by LLM APIs.
package llm

import (
	"context"
)

// Client defines the interface for LLM providers.
type Client interface {
	Annotate(ctx context.Context, prompt string) (AnnotationResponse, error)
}

// AnnotationResponse contains the LLM's tagging result for one transcript.
type AnnotationResponse struct {
	Explanations map[string]string
	Tags         []string
}
