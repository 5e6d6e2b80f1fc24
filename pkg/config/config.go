package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Providers for the vector store, chosen once at startup.
const (
	ProviderUpstash  = "upstash"
	ProviderPgVector = "pgvector"
)

// Config holds all job configuration loaded from environment variables.
type Config struct {
	// PR identity
	Repo      string // GITHUB_REPOSITORY, e.g. "owner/name"
	PRNumber  string
	CommitSHA string

	// Raw file content
	RawContentBaseURL string
	FetchConcurrency  int

	// Vector store
	VectorProvider string
	UpstashURL     string
	UpstashToken   string
	DatabaseURL    string

	// Model serving
	ModelServerURL      string
	ModelServerToken    string // Bearer token (empty = no auth)
	ModelName           string
	ModelRevision       string
	PadTokenID          int
	NormalizeEmbeddings bool
	EmbeddingDimension  int
	MaxChunkTokens      int

	// Model hub prefetch
	HubBaseURL    string
	ModelCacheDir string // empty = no prefetch
	HubOffline    bool

	RequestTimeout time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Repo:      os.Getenv("GITHUB_REPOSITORY"),
		PRNumber:  os.Getenv("PR_NUMBER"),
		CommitSHA: os.Getenv("GITHUB_SHA"),

		RawContentBaseURL: envOrDefault("RAW_CONTENT_BASE_URL", "https://raw.githubusercontent.com"),
		FetchConcurrency:  envOrDefaultInt("FETCH_CONCURRENCY", 10),

		VectorProvider: envOrDefault("VECTOR_PROVIDER", ProviderUpstash),
		UpstashURL:     os.Getenv("UPSTASH_VECTOR_REST_URL"),
		UpstashToken:   os.Getenv("UPSTASH_VECTOR_REST_TOKEN"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		ModelServerURL:      envOrDefault("MODEL_SERVER_URL", "http://localhost:8080"),
		ModelServerToken:    os.Getenv("MODEL_SERVER_TOKEN"),
		ModelName:           envOrDefault("MODEL_NAME", "sentence-transformers/all-MiniLM-L6-v2"),
		ModelRevision:       envOrDefault("MODEL_REVISION", "refs/pr/21"),
		PadTokenID:          envOrDefaultInt("PAD_TOKEN_ID", 0),
		NormalizeEmbeddings: envOrDefaultBool("NORMALIZE_EMBEDDINGS", false),
		EmbeddingDimension:  envOrDefaultInt("EMBEDDING_DIMENSION", 384),
		MaxChunkTokens:      envOrDefaultInt("MAX_CHUNK_TOKENS", 399),

		HubBaseURL:    envOrDefault("MODEL_HUB_BASE_URL", "https://huggingface.co"),
		ModelCacheDir: os.Getenv("MODEL_CACHE_DIR"),
		HubOffline:    envOrDefaultBool("MODEL_HUB_OFFLINE", false),

		RequestTimeout: time.Duration(envOrDefaultInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
	}
}

// Validate reports missing required settings before any work starts. The
// commit SHA is only needed on the open path, where file contents are
// fetched.
func (c *Config) Validate(closed bool) error {
	if c.Repo == "" {
		return fmt.Errorf("missing required environment variable GITHUB_REPOSITORY")
	}
	if c.PRNumber == "" {
		return fmt.Errorf("missing required environment variable PR_NUMBER")
	}
	if !closed && c.CommitSHA == "" {
		return fmt.Errorf("missing required environment variable GITHUB_SHA")
	}

	switch c.VectorProvider {
	case ProviderUpstash:
		if c.UpstashURL == "" || c.UpstashToken == "" {
			return fmt.Errorf("both UPSTASH_VECTOR_REST_URL and UPSTASH_VECTOR_REST_TOKEN must be set to use the upstash vector store")
		}
	case ProviderPgVector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set to use the pgvector store")
		}
	default:
		return fmt.Errorf("unknown vector store provider %q", c.VectorProvider)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}
