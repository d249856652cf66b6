// Package hfhub embeds text with the Hugging Face feature-extraction API.
package hfhub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls {BaseURL}/{Model}/pipeline/feature-extraction.
type Client struct {
	baseURL   string
	token     string
	model     string
	dimension int
	client    *http.Client
}

// Config configures the feature-extraction client.
type Config struct {
	BaseURL string
	Model   string
	Token   string
	// Timeout of zero means no client-side timeout.
	Timeout time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("hfhub: missing API token")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://router.huggingface.co/hf-inference/models"
	}
	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/all-mpnet-base-v2"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "hfhub" }

// Prepare is not required for remote embedding. Dimension is set on first embed.
func (c *Client) Prepare(corpus []string) error { return nil }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns one vector per input text.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(map[string]any{
		"inputs":  texts,
		"options": map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s/pipeline/feature-extraction", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("hfhub embeddings failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var out [][]float64
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("hfhub embeddings: unexpected response: %w", err)
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("hfhub embeddings: got %d vectors for %d inputs", len(out), len(texts))
	}
	for _, v := range out {
		if len(v) == 0 {
			return nil, errors.New("empty embedding")
		}
	}
	if c.dimension == 0 {
		c.dimension = len(out[0])
	}
	return out, nil
}
