package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ordertalk/tagflow/internal/common"
	"github.com/ordertalk/tagflow/internal/model"
	"github.com/ordertalk/tagflow/internal/service"
)

// Annotator implements service.Annotator on top of an LLM client. It owns the
// retry policy: recoverable provider errors are retried with exponential
// backoff, and any error it returns is terminal for the document in this run.
type Annotator struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// Config holds configuration for the LLM annotator.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	MaxRetries  int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	RateLimit   int
	Temperature float64
	MaxTokens   int
}

// NewAnnotator creates a new LLM-based annotator.
func NewAnnotator(cfg Config, logger *slog.Logger) (*Annotator, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		client, err = newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   2.0,
	}

	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}
	if retryOpts.MaxDelay == 0 {
		retryOpts.MaxDelay = 30 * time.Second
	}

	return &Annotator{
		client:      client,
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(cfg.RateLimit),
	}, nil
}

// NewAnnotatorWithClient wires an existing client, primarily for tests.
func NewAnnotatorWithClient(client Client, retryOpts service.RetryOptions, logger *slog.Logger) *Annotator {
	return &Annotator{
		client:      client,
		logger:      logger,
		retryOpts:   retryOpts,
		rateLimiter: newRateLimiter(0),
	}
}

// Annotate tags a single transcript.
func (a *Annotator) Annotate(ctx context.Context, doc model.Document) (model.Annotation, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return model.Annotation{}, common.Permanent(fmt.Errorf("%w: %s", common.ErrEmptyTranscript, doc.ID))
	}

	prompt := buildAnnotationPrompt(doc.Text)

	var annotation model.Annotation

	err := common.WithRetry(ctx, func() error {
		if waitErr := a.rateLimiter.wait(ctx); waitErr != nil {
			return common.Permanent(waitErr)
		}

		response, err := a.client.Annotate(ctx, prompt)
		if err != nil {
			a.logger.Warn("annotation attempt failed",
				"document_id", doc.ID,
				"error", err)
			return err
		}

		annotation = model.Annotation{
			Tags:         response.Tags,
			Explanations: response.Explanations,
		}
		return annotation.Validate()
	}, a.retryOpts)

	if err != nil {
		return model.Annotation{}, fmt.Errorf("annotation failed: %w", err)
	}

	a.logger.Debug("transcript annotated",
		"document_id", doc.ID,
		"tag_count", len(annotation.Tags))

	return annotation, nil
}

// Close stops background goroutines.
func (a *Annotator) Close() error {
	if a.rateLimiter != nil {
		a.rateLimiter.Close()
	}
	return nil
}

// buildAnnotationPrompt creates the prompt for transcript tagging.
func buildAnnotationPrompt(transcript string) string {
	return fmt.Sprintf(`Analyze this restaurant phone order transcript from the restaurant owner's perspective and suggest relevant tags that would help them understand the call quality and customer experience.

Focus on tags that capture customer experience and call quality, such as:
- Positive indicators: happy, smooth, quick call, menu explained, questions answered, high order value, upselling
- Negative indicators: annoyed, repetitions, interruptions, missed answers, missing items, no upselling, rejected upsell, order corrections
- Special cases: human requested (when AI directs call to a human agent)

Example tags to consider: [happy, smooth, quick call, menu explained, questions answered, high order value, upselling, annoyed, repetitions, interruptions, human requested, missed answers, missing items, no upselling, rejected upsell, order corrections]

Transcript:
%s

Return your response in this JSON format:
{
    "tags": ["tag1", "tag2", "tag3"],
    "explanations": {
        "tag1": "Brief explanation of why this tag applies",
        "tag2": "Brief explanation of why this tag applies",
        "tag3": "Brief explanation of why this tag applies"
    }
}`, transcript)
}
