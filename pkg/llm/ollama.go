package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultOllamaURL is the address of a local Ollama server.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// OllamaClient implements LLMClient using local Ollama API
type OllamaClient struct {
	Logger *slog.Logger

	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaClient creates a new Ollama LLM client.
// An empty baseURL falls back to DefaultOllamaURL.
// model is the LLM model name, e.g. "mistral"
func NewOllamaClient(baseURL, model string) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	return &OllamaClient{
		baseURL: baseURL,
		model:   model,
		client: &http.Client{
			Timeout: 300 * time.Second, // 5 minutes for slow local models
		},
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Complete sends a prompt to the LLM and returns the raw completion text
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, prompt, "")
}

// CompleteWithSchema asks for JSON output and unmarshals it into the provided schema.
func (c *OllamaClient) CompleteWithSchema(ctx context.Context, prompt string, schema any) error {
	response, err := c.generate(ctx, prompt, "json")
	if err != nil {
		return err
	}

	if err := decodeSchema(response, schema, c.Logger); err != nil {
		return fmt.Errorf("%w (response: %s)", err, response)
	}

	return nil
}

func (c *OllamaClient) generate(ctx context.Context, prompt, format string) (string, error) {
	reqBody := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: format,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(body))
	}

	var result ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return result.Response, nil
}
