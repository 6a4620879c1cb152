// Package gemini implements the content rewrite client against Google's
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/docpolish/docpolish-api/internal/config"
	"github.com/docpolish/docpolish-api/internal/rewrite"
	"google.golang.org/genai"
)

// ErrEmptyDocument is returned when no document body is supplied.
var ErrEmptyDocument = errors.New("document cannot be empty")

// systemPersona is the styling persona sent as the system instruction.
const systemPersona = "You are an expert document designer. You restyle HTML documents: " +
	"you improve typography, layout, spacing, and visual hierarchy while preserving " +
	"the document's text content and structure. You keep every element that carries " +
	"an id attribute exactly where it is, including its id. You respond with the " +
	"complete restyled HTML document."

// Timeout bounds for a single API call. Long payloads get a longer timeout.
const (
	baseCallTimeout  = 60 * time.Second
	longCallTimeout  = 180 * time.Second
	longPayloadBytes = 100_000
)

// RewriteClient implements the rewrite.Rewriter interface using Google's
// Gemini API to restyle a document's markup.
type RewriteClient struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client
	model  string

	// generateFn performs one API call. Overridable in tests.
	generateFn func(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error)

	// sleepFn waits between retries. Overridable in tests.
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewRewriteClient creates a RewriteClient with the provided dependencies.
// The configuration is validated up front so a misconfigured client fails at
// startup rather than on the first task.
func NewRewriteClient(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.LLMConfig,
) (*RewriteClient, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", rewrite.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", rewrite.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			rewrite.ErrInvalidConfig, err)
	}

	rc := &RewriteClient{
		logger: logger,
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}
	rc.generateFn = rc.generate
	rc.sleepFn = sleepContext

	return rc, nil
}

// Rewrite sends the document and instruction to the Gemini API with bounded
// retry and extracts the rewritten HTML from the response.
func (c *RewriteClient) Rewrite(ctx context.Context, doc string, instruction string) (string, error) {
	if doc == "" {
		return "", ErrEmptyDocument
	}

	prompt := instruction + "\n\n" + doc
	text, err := c.callWithRetry(ctx, prompt)
	if err != nil {
		return "", err
	}

	return ExtractHTML(text), nil
}

// generate performs one GenerateContent call with a payload-scaled timeout.
func (c *RewriteClient) generate(
	ctx context.Context,
	contents []*genai.Content,
) (*genai.GenerateContentResponse, error) {
	timeout := baseCallTimeout
	if payloadSize(contents) > longPayloadBytes {
		timeout = longCallTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return c.client.Models.GenerateContent(callCtx, c.model, contents, &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(c.config.Temperature),
		MaxOutputTokens:   c.config.MaxOutputTokens,
		SystemInstruction: genai.NewContentFromText(systemPersona, genai.RoleUser),
	})
}

// callWithRetry calls the API up to MaxRetries+1 times. Rate limiting and
// timeouts back off exponentially (delay doubling from the configured base);
// authentication failures and other server errors fail immediately, since
// burning the retry budget on them cannot help.
func (c *RewriteClient) callWithRetry(ctx context.Context, prompt string) (string, error) {
	maxRetries := c.config.MaxRetries
	if maxRetries < 0 {
		c.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	baseDelaySeconds := c.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		c.logger.WarnContext(ctx, "invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelaySeconds = 2
	}

	contents := genai.Text(prompt)

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		c.logger.InfoContext(ctx, "calling rewrite service",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1,
			"prompt_length", len(prompt))

		resp, err := c.generateFn(ctx, contents)
		if err == nil {
			text, respErr := responseText(resp)
			if respErr != nil {
				// A malformed response will not improve on retry.
				return "", respErr
			}
			c.logger.InfoContext(ctx, "rewrite service call successful",
				"attempt", attemptNum,
				"response_length", len(text))
			return text, nil
		}

		classified, retryable := classifyError(err)
		c.logger.ErrorContext(ctx, "rewrite service call failed",
			"attempt", attemptNum,
			"retryable", retryable,
			"error", err)

		if !retryable {
			return "", classified
		}

		if attempt >= maxRetries {
			c.logger.WarnContext(ctx, "maximum retry attempts reached", "max_retries", maxRetries)
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				rewrite.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt
		delay := time.Duration(float64(baseDelaySeconds)*math.Pow(2, float64(attempt))) * time.Second
		c.logger.InfoContext(ctx, "retrying after delay",
			"attempt", attemptNum,
			"delay", delay)

		if err := c.sleepFn(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %v", rewrite.ErrTransientFailure, err)
		}
	}
}

// responseText pulls the generated text out of a response, validating shape.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", rewrite.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: content blocked by safety filters", rewrite.ErrInvalidResponse)
	}
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty content in response", rewrite.ErrInvalidResponse)
	}

	text := ""
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text += part.Text
		}
	}

	if text == "" {
		return "", fmt.Errorf("%w: response carries no text", rewrite.ErrInvalidResponse)
	}

	return text, nil
}

// classifyError maps a transport error onto the rewrite error taxonomy and
// reports whether it is worth retrying.
func classifyError(err error) (error, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401 || apiErr.Code == 403:
			return fmt.Errorf("%w: %v", rewrite.ErrAuthFailure, err), false
		case apiErr.Code == 429:
			return fmt.Errorf("%w: %v", rewrite.ErrRateLimited, err), true
		default:
			return fmt.Errorf("%w: %v", rewrite.ErrRewriteFailed, err), false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", rewrite.ErrTransientFailure, err), true
	}

	// No response at all (network failure): treat as transient.
	return fmt.Errorf("%w: %v", rewrite.ErrTransientFailure, err), true
}

// payloadSize sums the text bytes across contents.
func payloadSize(contents []*genai.Content) int {
	size := 0
	for _, content := range contents {
		if content == nil {
			continue
		}
		for _, part := range content.Parts {
			if part != nil {
				size += len(part.Text)
			}
		}
	}
	return size
}

// sleepContext waits for the delay or context cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
