package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arturoeanton/go-pr-dedup/internal/port"
)

// BertServerConfig holds the connection settings for the model-serving
// component that exposes the embedding model's tokenizer and forward pass.
type BertServerConfig struct {
	BaseURL string // e.g. http://localhost:8080
	Model   string // e.g. sentence-transformers/all-MiniLM-L6-v2
	Token   string // Bearer token (empty = no auth)
	Timeout time.Duration
}

// BertClient implements port.ModelBackend and port.TokenCounter against a
// BERT model server over its REST API.
type BertClient struct {
	cfg        BertServerConfig
	httpClient *http.Client
}

// NewBertClient creates a new model-server backed client.
func NewBertClient(cfg BertServerConfig) *BertClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BertClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ModelName returns the identifier of the model being served.
func (c *BertClient) ModelName() string {
	return c.cfg.Model
}

// TokenizeBatch encodes each text into token ids using the server-side
// tokenizer, including special tokens. No padding is applied.
func (c *BertClient) TokenizeBatch(ctx context.Context, texts []string) ([][]int, error) {
	payload := map[string]interface{}{
		"model":              c.cfg.Model,
		"inputs":             texts,
		"add_special_tokens": true,
	}

	body, err := c.post(ctx, "/tokenize", payload)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	var resp struct {
		IDs [][]int `json:"ids"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("tokenize decode: %w", err)
	}
	if len(resp.IDs) != len(texts) {
		return nil, fmt.Errorf("tokenize: got %d encodings, want %d", len(resp.IDs), len(texts))
	}
	return resp.IDs, nil
}

// CountTokens implements port.TokenCounter. Counts exclude special tokens so
// they reflect raw content length.
func (c *BertClient) CountTokens(ctx context.Context, texts []string) ([]int, error) {
	payload := map[string]interface{}{
		"model":              c.cfg.Model,
		"inputs":             texts,
		"add_special_tokens": false,
	}

	body, err := c.post(ctx, "/tokenize", payload)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}

	var resp struct {
		IDs [][]int `json:"ids"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("count tokens decode: %w", err)
	}
	if len(resp.IDs) != len(texts) {
		return nil, fmt.Errorf("count tokens: got %d encodings, want %d", len(resp.IDs), len(texts))
	}

	counts := make([]int, len(resp.IDs))
	for i, ids := range resp.IDs {
		counts[i] = len(ids)
	}
	return counts, nil
}

// Forward runs one padded sequence through the model and returns the final
// hidden state: one vector per input token.
func (c *BertClient) Forward(ctx context.Context, ids []int, attentionMask []int) ([][]float32, error) {
	payload := map[string]interface{}{
		"model":          c.cfg.Model,
		"ids":            ids,
		"attention_mask": attentionMask,
	}

	body, err := c.post(ctx, "/forward", payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrInference, err)
	}

	var resp struct {
		HiddenState [][]float32 `json:"hidden_state"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", port.ErrInference, err)
	}
	if len(resp.HiddenState) == 0 {
		return nil, fmt.Errorf("%w: empty hidden state", port.ErrInference)
	}
	return resp.HiddenState, nil
}

// post is a helper for POST requests to the model server (with optional
// bearer token).
func (c *BertClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model server error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

var _ port.ModelBackend = (*BertClient)(nil)
var _ port.TokenCounter = (*BertClient)(nil)
