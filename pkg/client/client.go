// Package client talks to the spam-detector HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a client for the spam-detector API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// PredictRequest represents a single message classification request
type PredictRequest struct {
	Text string `json:"text"`
}

// BatchPredictRequest represents a batch classification request
type BatchPredictRequest struct {
	Messages []string `json:"messages"`
}

// Prediction represents the classification result
type Prediction struct {
	Text       string  `json:"text"`
	Label      string  `json:"label"`
	IsSpam     bool    `json:"is_spam"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"prediction"`
}

// BatchPredictResponse represents batch classification results
type BatchPredictResponse struct {
	Predictions []Prediction `json:"predictions"`
	Total       int          `json:"total"`
}

// ModelInfo describes the model the server loaded
type ModelInfo struct {
	RunID        string    `json:"run_id"`
	State        string    `json:"state"`
	Epochs       int       `json:"epochs"`
	SuccessRate  float64   `json:"success_rate"`
	VocabSize    int       `json:"vocab_size"`
	MaxLen       int       `json:"max_len"`
	EmbeddingDim int       `json:"embedding_dim"`
	TrainedAt    time.Time `json:"trained_at"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Model   string `json:"model"`
}

// StatusError is returned for any non-200 answer
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spam-detector returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a new client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Predict classifies a single message
func (c *Client) Predict(ctx context.Context, text string) (*Prediction, error) {
	var result Prediction
	if err := c.do(ctx, http.MethodPost, "/api/v1/predict", PredictRequest{Text: text}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PredictBatch classifies multiple messages
func (c *Client) PredictBatch(ctx context.Context, messages []string) (*BatchPredictResponse, error) {
	var result BatchPredictResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/predict/batch", BatchPredictRequest{Messages: messages}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the service is healthy
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var result HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetModelInfo retrieves information about the loaded model
func (c *Client) GetModelInfo(ctx context.Context) (*ModelInfo, error) {
	var result ModelInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/model/info", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
