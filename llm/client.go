package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Client talks to an Ollama-compatible endpoint.
type Client struct {
	BaseURL string
	Model   string
	HTTP    *http.Client
	Logger  *zap.Logger
}

func NewClient(baseURL, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  logger,
	}
}

// Generate sends prompt to /api/generate and returns the "response" field
// of the reply.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	jsonBody, err := json.Marshal(GenerateRequest{
		Model:  c.Model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.Logger.Debug("calling LLM", zap.String("url", req.URL.String()), zap.String("model", c.Model))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request to LLM: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("LLM returned non-OK status: %d, body: %s", resp.StatusCode, string(body))
	}

	result := gjson.GetBytes(body, "response")
	if !result.Exists() {
		return "", fmt.Errorf("LLM reply has no response field")
	}
	return result.String(), nil
}

// Ping checks that the endpoint answers on /api/tags.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("LLM endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Analyze asks the model for a free-form answer about text.
func (c *Client) Analyze(ctx context.Context, text string) (string, error) {
	output, err := c.Generate(ctx, text)
	if err != nil {
		return "", err
	}
	_, output = extractCodeBlock(output)
	return strings.TrimSpace(output), nil
}
