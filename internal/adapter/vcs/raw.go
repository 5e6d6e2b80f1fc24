package vcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/arturoeanton/go-pr-dedup/internal/port"
	"golang.org/x/sync/errgroup"
)

// RawContentClient fetches changed-file contents from the raw-content
// endpoint of the source-control host.
type RawContentClient struct {
	baseURL     string
	concurrency int
	httpClient  *http.Client
}

// NewRawContentClient creates a fetcher with bounded request concurrency.
func NewRawContentClient(baseURL string, concurrency int, timeout time.Duration) *RawContentClient {
	if concurrency <= 0 {
		concurrency = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RawContentClient{
		baseURL:     baseURL,
		concurrency: concurrency,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// FetchAll downloads every path at the given commit. Fetches run concurrently
// but each result is written into the slot matching its input position, so
// the returned slice is in input order regardless of completion order. A file
// that cannot be fetched degrades to an empty string so one unreadable file
// does not abort the run.
func (c *RawContentClient) FetchAll(ctx context.Context, repo, commitSHA string, paths []string) ([]string, error) {
	contents := make([]string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			text, err := c.fetch(gctx, repo, commitSHA, path)
			if err != nil {
				slog.Warn("fetch file content", "path", path, "error", err)
				return nil
			}
			contents[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

// fetch retrieves one file's raw content.
func (c *RawContentClient) fetch(ctx context.Context, repo, commitSHA, path string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/%s", c.baseURL, repo, commitSHA, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("raw content error (%d) for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("content of %s is not valid UTF-8", path)
	}
	return string(body), nil
}

var _ port.ContentSource = (*RawContentClient)(nil)
