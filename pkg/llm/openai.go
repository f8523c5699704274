package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultModel         = "gpt-4o-mini"
	maxRetries           = 3
	initialRetryDelay    = 1 * time.Second
	backoffFactor        = 2.0
)

var codeFence = regexp.MustCompile("(?s)^```(?:json)?\\s*\n?(.*?)\\s*```$")

// OpenAILLM implements LLMClient for OpenAI's Chat Completions API.
// Requests are sent with temperature 0 so repeated extractions of the same
// job description agree. Rate limits, 5xx answers and transport failures are
// retried with jittered exponential backoff.
type OpenAILLM struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  *slog.Logger

	client     *http.Client
	retryDelay time.Duration
}

// NewOpenAILLM creates a new OpenAI LLM client
func NewOpenAILLM(apiKey string) *OpenAILLM {
	return &OpenAILLM{
		APIKey:     apiKey,
		Model:      defaultModel,
		BaseURL:    defaultOpenAIBaseURL,
		client:     &http.Client{Timeout: 60 * time.Second},
		retryDelay: initialRetryDelay,
	}
}

type openAIRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// statusError is a non-200 answer from the API.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.body)
}

// transportError is a request that never got an answer.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "request failed: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func shouldRetry(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= 500
	}
	var te *transportError
	return errors.As(err, &te)
}

// Complete sends prompt as a single user message and returns the assistant's answer.
func (o *OpenAILLM) Complete(ctx context.Context, prompt string) (string, error) {
	delay := o.retryDelay
	if delay <= 0 {
		delay = initialRetryDelay
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := delay/2 + time.Duration(rand.Int63n(int64(delay)))
			if o.Logger != nil {
				o.Logger.Debug("retrying completion",
					slog.String("model", o.Model),
					slog.Int("attempt", attempt),
					slog.Duration("wait", wait),
					slog.String("error", lastErr.Error()),
				)
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay = time.Duration(float64(delay) * backoffFactor)
		}

		content, err := o.chat(ctx, prompt)
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !shouldRetry(err) {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// CompleteWithSchema sends a prompt and unmarshals the JSON response into the provided schema.
// Comma-separated strings returned for []string fields of a struct schema are split into lists.
func (o *OpenAILLM) CompleteWithSchema(ctx context.Context, prompt string, schema any) error {
	response, err := o.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	return decodeSchema(response, schema, o.Logger)
}

// stripMarkdownCodeFence unwraps a ```json ... ``` (or bare ```) block.
// Anything else, including an unclosed fence, is returned trimmed.
func stripMarkdownCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// chat performs one Chat Completions round trip.
func (o *OpenAILLM) chat(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(openAIRequest{
		Model:    o.Model,
		Messages: []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &transportError{err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: string(body)}
	}

	var out openAIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	switch {
	case out.Error != nil:
		return "", fmt.Errorf("OpenAI API error: %s", out.Error.Message)
	case len(out.Choices) == 0:
		return "", fmt.Errorf("no completion choices returned")
	}
	return out.Choices[0].Message.Content, nil
}
