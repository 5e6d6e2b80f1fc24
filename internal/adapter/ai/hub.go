package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Artifact file names for a sentence-transformer model revision.
var artifactFiles = []string{"config.json", "tokenizer.json", "model.safetensors"}

// ModelArtifacts are the resolved local paths for one model revision.
type ModelArtifacts struct {
	ConfigPath    string
	TokenizerPath string
	WeightsPath   string
}

// HubClient downloads model artifacts from a model-hub-style source into a
// local cache, keyed by model name and revision. In offline mode only the
// cache is consulted.
type HubClient struct {
	baseURL    string
	cacheDir   string
	offline    bool
	httpClient *http.Client
}

// NewHubClient creates a hub client rooted at cacheDir.
func NewHubClient(baseURL, cacheDir string, offline bool, timeout time.Duration) *HubClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HubClient{
		baseURL:    baseURL,
		cacheDir:   cacheDir,
		offline:    offline,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnsureModel resolves the config, tokenizer and weights files for
// model+revision, downloading any that are not already cached.
func (h *HubClient) EnsureModel(ctx context.Context, model, revision string) (ModelArtifacts, error) {
	paths := make([]string, len(artifactFiles))
	for i, name := range artifactFiles {
		p, err := h.ensure(ctx, model, revision, name)
		if err != nil {
			return ModelArtifacts{}, err
		}
		paths[i] = p
	}
	return ModelArtifacts{
		ConfigPath:    paths[0],
		TokenizerPath: paths[1],
		WeightsPath:   paths[2],
	}, nil
}

// ensure returns the local path of one artifact, fetching it on a cache miss.
func (h *HubClient) ensure(ctx context.Context, model, revision, name string) (string, error) {
	local := filepath.Join(h.cacheDir, model, revision, name)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	if h.offline {
		return "", fmt.Errorf("artifact %s not cached for %s@%s (offline mode)", name, model, revision)
	}

	url := fmt.Sprintf("%s/%s/resolve/%s/%s", h.baseURL, model, revision, name)
	slog.Info("downloading model artifact", "model", model, "revision", revision, "file", name)

	if err := h.download(ctx, url, local); err != nil {
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	return local, nil
}

// download fetches url into dest atomically (tmp file + rename), so a failed
// transfer never leaves a partial artifact in the cache.
func (h *HubClient) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub error (%d): %s", resp.StatusCode, string(body))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}

	return os.Rename(tmp.Name(), dest)
}
