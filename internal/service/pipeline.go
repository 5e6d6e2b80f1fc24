package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
	"github.com/arturoeanton/go-pr-dedup/internal/port"
)

// State tracks pipeline progress through one PR event.
type State int

const (
	StateInit State = iota
	StateClosedPath
	StateOpenPath
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateClosedPath:
		return "closed_path"
	case StateOpenPath:
		return "open_path"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PREvent is one pull request event to process.
type PREvent struct {
	Repo      string
	Number    string
	CommitSHA string
	Closed    bool

	Added    []string
	Modified []string
	Removed  []string
	Renamed  []string

	TopK          int
	MinSimilarity int
}

// PipelineConfig tunes the per-event pipeline.
type PipelineConfig struct {
	// MaxChunkTokens bounds each chunk's token count.
	MaxChunkTokens int
	// ExpectedDimension, when non-zero, validates the PR vector's dimension
	// against the model's hidden size.
	ExpectedDimension int
	// StoreTimeout bounds each vector-store round trip.
	StoreTimeout time.Duration
}

// Pipeline wires the content source, chunker, encoder and vector store into
// the per-event state machine: Init -> (ClosedPath | OpenPath) -> Done or
// Failed. The first failing step is terminal; nothing is retried or rolled
// back.
type Pipeline struct {
	content port.ContentSource
	chunker *Chunker
	encoder *Encoder
	store   port.VectorStore
	cfg     PipelineConfig

	state State
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(content port.ContentSource, chunker *Chunker, encoder *Encoder, store port.VectorStore, cfg PipelineConfig) *Pipeline {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 30 * time.Second
	}
	return &Pipeline{
		content: content,
		chunker: chunker,
		encoder: encoder,
		store:   store,
		cfg:     cfg,
		state:   StateInit,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// Run processes one PR event. A closed PR only deletes its stored vector.
// An open or updated PR is assembled, chunked, embedded, queried against the
// index and then persisted — querying with the freshly computed vector before
// upserting it, so an updated PR never trivially matches the stale copy of
// its own previous vector.
func (p *Pipeline) Run(ctx context.Context, ev PREvent) ([]domain.SimilarityMatch, error) {
	p.state = StateInit
	id := domain.EncodePRID(ev.Repo, ev.Number)

	if ev.Closed {
		p.state = StateClosedPath
		slog.Info("pr closed, removing stored vector", "id", id)
		if err := p.deleteVector(ctx, id); err != nil {
			p.state = StateFailed
			return nil, err
		}
		p.state = StateDone
		return nil, nil
	}

	p.state = StateOpenPath
	slog.Info("processing pr",
		"id", id,
		"added", len(ev.Added),
		"modified", len(ev.Modified),
		"removed", len(ev.Removed),
		"renamed", len(ev.Renamed),
	)

	addedContent, err := p.content.FetchAll(ctx, ev.Repo, ev.CommitSHA, ev.Added)
	if err != nil {
		p.state = StateFailed
		return nil, fmt.Errorf("fetch added files: %w", err)
	}
	modifiedContent, err := p.content.FetchAll(ctx, ev.Repo, ev.CommitSHA, ev.Modified)
	if err != nil {
		p.state = StateFailed
		return nil, fmt.Errorf("fetch modified files: %w", err)
	}

	changes := BuildChanges(ev.Added, ev.Modified, ev.Removed, ev.Renamed, addedContent, modifiedContent)
	blob := AssembleContent(changes)

	chunks, err := p.chunker.Chunk(ctx, blob, p.cfg.MaxChunkTokens)
	if err != nil {
		p.state = StateFailed
		return nil, fmt.Errorf("chunk content: %w", err)
	}
	slog.Info("content chunked", "chunks", len(chunks))

	vector, err := p.encoder.Embed(ctx, chunks)
	if err != nil {
		p.state = StateFailed
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if p.cfg.ExpectedDimension > 0 && len(vector) != p.cfg.ExpectedDimension {
		p.state = StateFailed
		return nil, fmt.Errorf("embedding dimension %d, want %d", len(vector), p.cfg.ExpectedDimension)
	}

	matches, err := p.queryVector(ctx, vector, ev, id)
	if err != nil {
		p.state = StateFailed
		return nil, fmt.Errorf("query similar prs: %w", err)
	}

	if err := p.upsertVector(ctx, id, vector); err != nil {
		// Query results stay visible, but the run still fails so the caller
		// never assumes the vector was persisted.
		p.state = StateFailed
		return matches, fmt.Errorf("persist embedding: %w", err)
	}

	p.state = StateDone
	slog.Info("pr indexed", "id", id, "matches", len(matches))
	return matches, nil
}

func (p *Pipeline) deleteVector(ctx context.Context, id string) error {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()
	return p.store.Delete(sctx, id)
}

func (p *Pipeline) queryVector(ctx context.Context, vector []float32, ev PREvent, selfID string) ([]domain.SimilarityMatch, error) {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()
	return p.store.Query(sctx, vector, ev.TopK, ev.MinSimilarity, selfID, ev.Repo)
}

func (p *Pipeline) upsertVector(ctx context.Context, id string, vector []float32) error {
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StoreTimeout)
	defer cancel()
	return p.store.Upsert(sctx, id, vector)
}
