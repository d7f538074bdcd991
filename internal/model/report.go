package model

import "time"

// Report is the persisted analysis output. The top-level JSON layout is
// stable for downstream tooling; map keys marshal in sorted order, so the
// derived sections are byte-identical for the same cumulative results.
type Report struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	Transcripts     map[string]Annotation `json:"individual_transcript_analysis"`
	TagFrequency    map[string]int        `json:"tag_frequency"`
	RecommendedTags map[string][]string   `json:"recommended_tags"`
	RunID           string                `json:"run_id"`
	Summary         RunSummary            `json:"summary"`
}

// RunSummary reports cumulative completion counts so partial completion is
// never mistaken for full success.
type RunSummary struct {
	DocumentsProcessed int     `json:"documents_processed"`
	Succeeded          int     `json:"succeeded"`
	PermanentlyFailed  int     `json:"permanently_failed"`
	DurationSeconds    float64 `json:"run_duration_seconds"`
}
