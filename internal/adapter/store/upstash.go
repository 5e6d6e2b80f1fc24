package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
	"github.com/arturoeanton/go-pr-dedup/internal/port"
)

// UpstashStore implements port.VectorStore against the Upstash Vector REST
// API. Every operation is exactly one round trip; non-200 responses surface
// as port.RemoteStoreError and are never retried here.
type UpstashStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewUpstashStore creates a REST-backed vector store client.
func NewUpstashStore(baseURL, token string, timeout time.Duration) *UpstashStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UpstashStore{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upsert stores vector under id, overwriting any previous vector.
func (s *UpstashStore) Upsert(ctx context.Context, id string, vector []float32) error {
	payload := map[string]interface{}{
		"id":     id,
		"vector": vector,
	}
	_, err := s.do(ctx, http.MethodPost, "/upsert", payload)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Query requests up to topK nearest neighbours and applies identity and
// threshold filtering to the raw results.
func (s *UpstashStore) Query(ctx context.Context, vector []float32, topK, minSimilarity int, selfID, repo string) ([]domain.SimilarityMatch, error) {
	payload := map[string]interface{}{
		"topK":            topK,
		"vector":          vector,
		"includeVectors":  false,
		"includeMetadata": false,
	}

	body, err := s.do(ctx, http.MethodPost, "/query", payload)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	var resp struct {
		Result []struct {
			ID    string  `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("query decode: %w", err)
	}

	raw := make([]port.RawMatch, len(resp.Result))
	for i, r := range resp.Result {
		raw[i] = port.RawMatch{ID: r.ID, Score: r.Score}
	}
	return filterMatches(raw, minSimilarity, selfID, repo)
}

// Delete removes id from the index. Deleting an unknown id is not an error;
// the API reports a deleted count of zero with status 200.
func (s *UpstashStore) Delete(ctx context.Context, id string) error {
	_, err := s.do(ctx, http.MethodDelete, "/delete", []string{id})
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Close implements port.VectorStore; the REST client holds no resources.
func (s *UpstashStore) Close() error {
	return nil
}

// do issues one request with the bearer token and returns the response body.
func (s *UpstashStore) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &port.RemoteStoreError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

var _ port.VectorStore = (*UpstashStore)(nil)
