package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/arturoeanton/go-pr-dedup/internal/adapter/ai"
	"github.com/arturoeanton/go-pr-dedup/internal/adapter/store"
	"github.com/arturoeanton/go-pr-dedup/internal/adapter/vcs"
	"github.com/arturoeanton/go-pr-dedup/internal/gha"
	"github.com/arturoeanton/go-pr-dedup/internal/port"
	"github.com/arturoeanton/go-pr-dedup/internal/service"
	"github.com/arturoeanton/go-pr-dedup/pkg/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/lib/pq"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "prdedup",
		Short:         "Detects near-duplicate pull requests via semantic embeddings",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(cmd); err != nil {
				slog.Error("similar pr detection failed", "error", err)
				gha.NewWriter().SetError(err.Error())
				return err
			}
			return nil
		},
	}

	cmd.Flags().String("added", "", "comma-separated paths of added files")
	cmd.Flags().String("modified", "", "comma-separated paths of modified files")
	cmd.Flags().String("removed", "", "comma-separated paths of removed files")
	cmd.Flags().String("renamed", "", "comma-separated paths of renamed files")
	cmd.Flags().Bool("closed", false, "the pull request was closed; remove its stored vector")
	cmd.Flags().String("provider", "", "vector store provider (upstash or pgvector)")
	cmd.Flags().Int("top-k", 10, "number of nearest neighbours to request")
	cmd.Flags().Int("min-similarity", 80, "minimum similarity percentage to report")

	_ = viper.BindPFlag("provider", cmd.Flags().Lookup("provider"))
	_ = viper.BindPFlag("top_k", cmd.Flags().Lookup("top-k"))
	_ = viper.BindPFlag("min_similarity", cmd.Flags().Lookup("min-similarity"))
	_ = viper.BindEnv("provider", "VECTOR_PROVIDER")
	_ = viper.BindEnv("top_k", "TOP_K")
	_ = viper.BindEnv("min_similarity", "MIN_SIMILARITY")

	return cmd
}

func run(cmd *cobra.Command) error {
	// Silently ignore a missing .env; CI passes everything via environment.
	_ = godotenv.Load()

	ctx := cmd.Context()
	out := gha.NewWriter()
	cfg := config.Load()

	if p := viper.GetString("provider"); p != "" {
		cfg.VectorProvider = p
	}
	closed, _ := cmd.Flags().GetBool("closed")

	if err := cfg.Validate(closed); err != nil {
		return err
	}

	slog.Info("starting similar pr detection",
		"repo", cfg.Repo,
		"pr", cfg.PRNumber,
		"provider", cfg.VectorProvider,
		"model", cfg.ModelName,
		"closed", closed,
	)

	vectorStore, err := newVectorStore(cfg)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	backend := ai.NewBertClient(ai.BertServerConfig{
		BaseURL: cfg.ModelServerURL,
		Model:   cfg.ModelName,
		Token:   cfg.ModelServerToken,
		Timeout: cfg.RequestTimeout,
	})

	if cfg.ModelCacheDir != "" && !closed {
		hub := ai.NewHubClient(cfg.HubBaseURL, cfg.ModelCacheDir, cfg.HubOffline, cfg.RequestTimeout)
		if _, err := hub.EnsureModel(ctx, cfg.ModelName, cfg.ModelRevision); err != nil {
			return fmt.Errorf("prefetch model artifacts: %w", err)
		}
	}

	content := vcs.NewRawContentClient(cfg.RawContentBaseURL, cfg.FetchConcurrency, cfg.RequestTimeout)
	chunker := service.NewChunker(backend)
	encoder := service.NewEncoder(backend, service.EncoderConfig{
		PadTokenID: cfg.PadTokenID,
		Normalize:  cfg.NormalizeEmbeddings,
	})
	pipeline := service.NewPipeline(content, chunker, encoder, vectorStore, service.PipelineConfig{
		MaxChunkTokens:    cfg.MaxChunkTokens,
		ExpectedDimension: cfg.EmbeddingDimension,
		StoreTimeout:      cfg.RequestTimeout,
	})

	added, _ := cmd.Flags().GetString("added")
	modified, _ := cmd.Flags().GetString("modified")
	removed, _ := cmd.Flags().GetString("removed")
	renamed, _ := cmd.Flags().GetString("renamed")

	event := service.PREvent{
		Repo:          cfg.Repo,
		Number:        cfg.PRNumber,
		CommitSHA:     cfg.CommitSHA,
		Closed:        closed,
		Added:         splitList(added),
		Modified:      splitList(modified),
		Removed:       splitList(removed),
		Renamed:       splitList(renamed),
		TopK:          viper.GetInt("top_k"),
		MinSimilarity: viper.GetInt("min_similarity"),
	}

	matches, err := pipeline.Run(ctx, event)
	if err != nil {
		return err
	}
	if closed {
		slog.Info("stored vector removed", "repo", cfg.Repo, "pr", cfg.PRNumber)
		return nil
	}

	jsonOut, err := gha.MatchesJSON(matches)
	if err != nil {
		return err
	}
	htmlOut, err := gha.MatchesHTML(matches)
	if err != nil {
		return err
	}
	if err := out.Set("similar_prs", jsonOut); err != nil {
		return err
	}
	if err := out.Set("similar_prs_table", htmlOut); err != nil {
		return err
	}

	slog.Info("similar pr detection complete", "matches", len(matches))
	return nil
}

// newVectorStore selects the store implementation once, from configuration.
func newVectorStore(cfg *config.Config) (port.VectorStore, error) {
	switch cfg.VectorProvider {
	case config.ProviderUpstash:
		return store.NewUpstashStore(cfg.UpstashURL, cfg.UpstashToken, cfg.RequestTimeout), nil
	case config.ProviderPgVector:
		return store.NewPgVectorStore(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.VectorProvider)
	}
}

// splitList splits a comma-separated flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
