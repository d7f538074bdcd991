package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ordertalk/tagflow/internal/common"
)

// parseAnnotation extracts tags and explanations from the LLM response body.
// Explanations for tags absent from the tag list are dropped rather than
// failing the document; models occasionally explain tags they didn't emit.
func parseAnnotation(content string) (AnnotationResponse, error) {
	var payload struct {
		Tags         []string          `json:"tags"`
		Explanations map[string]string `json:"explanations"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return AnnotationResponse{}, fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}

	if payload.Tags == nil {
		return AnnotationResponse{}, fmt.Errorf("%w: no tags field in response", common.ErrMalformedPayload)
	}

	tags := make([]string, 0, len(payload.Tags))
	seen := make(map[string]bool, len(payload.Tags))
	for _, tag := range payload.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}

	explanations := make(map[string]string, len(payload.Explanations))
	for tag, why := range payload.Explanations {
		tag = strings.TrimSpace(tag)
		if !seen[tag] {
			slog.Debug("Dropping explanation for untagged item", "tag", tag)
			continue
		}
		explanations[tag] = why
	}

	return AnnotationResponse{Tags: tags, Explanations: explanations}, nil
}

// cleanMarkdownWrapper strips markdown code fences that some models wrap
// around JSON despite instructions not to.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx >= 0 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}
