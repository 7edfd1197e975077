package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const clientTimeout = 120 * time.Second

// ClientConfig configures the model endpoint client.
type ClientConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// Client calls a generative model endpoint over HTTP JSON. The endpoint
// receives the topic, pillar, and news context and returns a complete draft.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient creates a model endpoint client.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: clientTimeout},
	}
}

type generateRequest struct {
	Model       string `json:"model,omitempty"`
	Topic       string `json:"topic"`
	Pillar      string `json:"pillar,omitempty"`
	NewsContext string `json:"news_context,omitempty"`
}

// Generate requests one draft from the model endpoint. Non-2xx responses
// surface the status code in the error so callers can infer the failure
// kind (401/403 credential trouble, 429 quota).
func (c *Client) Generate(ctx context.Context, req Request) (*Draft, error) {
	payload, err := json.Marshal(generateRequest{
		Model:       c.cfg.Model,
		Topic:       req.Topic,
		Pillar:      req.Pillar,
		NewsContext: BuildNewsContext(req.News),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model endpoint call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var draft Draft
	if err := json.NewDecoder(resp.Body).Decode(&draft); err != nil {
		return nil, fmt.Errorf("failed to decode draft: %w", err)
	}
	if draft.Slug == "" {
		draft.Slug = BuildSlug(draft.Title)
	}
	return &draft, nil
}
