// Package llm provides the outbound client for the model vendor's REST API.
//
// The wire format is treated as opaque: the gateway only needs chat
// completions and embeddings, both plain JSON-over-HTTPS.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/voxgate/internal/domain"
)

// DefaultModel is used when a request does not name a model.
const DefaultModel = "qwen-turbo"

// defaultTimeout bounds a single upstream call.
const defaultTimeout = 60 * time.Second

// Client calls the vendor chat/embedding endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ChatOptions carries per-request generation parameters.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatResult is the assistant reply plus reported token usage.
type ChatResult struct {
	Content string
	Usage   domain.TokenUsage
	Model   string
}

// NewClient creates an LLM client. The API key is required.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("llm: base URL is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []domain.ChatMessage `json:"messages"`
	} `json:"input"`
	Parameters struct {
		Temperature float64 `json:"temperature,omitempty"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
		ResultFmt   string  `json:"result_format"`
	} `json:"parameters"`
}

type chatResponse struct {
	Output struct {
		Text string `json:"text"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Chat sends a chat completion request assembled from the session window.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (*ChatResult, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	req := chatRequest{Model: opts.Model}
	req.Input.Messages = messages
	req.Parameters.Temperature = opts.Temperature
	req.Parameters.MaxTokens = opts.MaxTokens
	req.Parameters.ResultFmt = "text"

	var resp chatResponse
	if err := c.post(ctx, "/services/aigc/text-generation/generation", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, fmt.Errorf("llm: upstream error %s: %s", resp.Code, resp.Message)
	}

	return &ChatResult{
		Content: resp.Output.Text,
		Usage: domain.TokenUsage{
			Input:  resp.Usage.InputTokens,
			Output: resp.Usage.OutputTokens,
		},
		Model: opts.Model,
	}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input struct {
		Texts []string `json:"texts"`
	} `json:"input"`
}

type embeddingResponse struct {
	Output struct {
		Embeddings []struct {
			Embedding []float64 `json:"embedding"`
			TextIndex int       `json:"text_index"`
		} `json:"embeddings"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Embeddings returns one vector per input text.
func (c *Client) Embeddings(ctx context.Context, texts []string, model string) ([][]float64, error) {
	if model == "" {
		model = "text-embedding-v1"
	}

	req := embeddingRequest{Model: model}
	req.Input.Texts = texts

	var resp embeddingResponse
	if err := c.post(ctx, "/services/embeddings/text-embedding/text-embedding", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" {
		return nil, fmt.Errorf("llm: upstream error %s: %s", resp.Code, resp.Message)
	}

	out := make([][]float64, len(resp.Output.Embeddings))
	for _, e := range resp.Output.Embeddings {
		if e.TextIndex >= 0 && e.TextIndex < len(out) {
			out[e.TextIndex] = e.Embedding
		}
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("llm: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("llm: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm: upstream status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("llm: decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
