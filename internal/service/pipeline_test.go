package service

import (
	"context"
	"errors"
	"testing"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeContent struct {
	byPath map[string]string
}

func (f *fakeContent) FetchAll(_ context.Context, _ string, _ string, paths []string) ([]string, error) {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = f.byPath[p]
	}
	return out, nil
}

type fakeStore struct {
	calls []string

	upsertID     string
	upsertVector []float32
	deleteID     string
	querySelfID  string
	queryRepo    string

	matches   []domain.SimilarityMatch
	upsertErr error
	deleteErr error
	queryErr  error
}

func (f *fakeStore) Upsert(_ context.Context, id string, vector []float32) error {
	f.calls = append(f.calls, "upsert")
	f.upsertID = id
	f.upsertVector = vector
	return f.upsertErr
}

func (f *fakeStore) Query(_ context.Context, _ []float32, _ int, _ int, selfID, repo string) ([]domain.SimilarityMatch, error) {
	f.calls = append(f.calls, "query")
	f.querySelfID = selfID
	f.queryRepo = repo
	return f.matches, f.queryErr
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.calls = append(f.calls, "delete")
	f.deleteID = id
	return f.deleteErr
}

func (f *fakeStore) Close() error { return nil }

func newTestPipeline(content *fakeContent, store *fakeStore) *Pipeline {
	chunker := NewChunker(fieldsCounter{})
	encoder := NewEncoder(&fakeBackend{}, EncoderConfig{})
	return NewPipeline(content, chunker, encoder, store, PipelineConfig{MaxChunkTokens: 399})
}

func TestRunOpenPRQueriesThenUpserts(t *testing.T) {
	store := &fakeStore{
		matches: []domain.SimilarityMatch{
			{PRURL: "https://github.com/owner/repo/pull/2", Percentage: 91},
		},
	}
	content := &fakeContent{byPath: map[string]string{"a.txt": "hello"}}
	p := newTestPipeline(content, store)

	matches, err := p.Run(context.Background(), PREvent{
		Repo:      "repo",
		Number:    "1",
		CommitSHA: "abc123",
		Added:     []string{"a.txt"},
		TopK:      10,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"query", "upsert"}, store.calls)
	assert.Equal(t, "repo:1", store.upsertID)
	assert.Equal(t, "repo:1", store.querySelfID)
	assert.Equal(t, "repo", store.queryRepo)
	assert.NotEmpty(t, store.upsertVector)
	assert.Len(t, matches, 1)
	assert.Equal(t, StateDone, p.State())
}

func TestRunClosedPRDeletesVector(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeContent{}, store)

	matches, err := p.Run(context.Background(), PREvent{
		Repo:   "repo",
		Number: "1",
		Closed: true,
	})
	require.NoError(t, err)

	assert.Nil(t, matches)
	assert.Equal(t, []string{"delete"}, store.calls)
	assert.Equal(t, "repo:1", store.deleteID)
	assert.Equal(t, StateDone, p.State())
}

func TestRunClosedPRDeleteFailure(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("store down")}
	p := newTestPipeline(&fakeContent{}, store)

	_, err := p.Run(context.Background(), PREvent{Repo: "repo", Number: "1", Closed: true})
	assert.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
}

func TestRunEmptyPREmbedsPlaceholder(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeContent{}, store)

	_, err := p.Run(context.Background(), PREvent{
		Repo:      "repo",
		Number:    "3",
		CommitSHA: "abc123",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"query", "upsert"}, store.calls)
	assert.NotEmpty(t, store.upsertVector)
}

func TestRunUpsertFailureKeepsMatches(t *testing.T) {
	store := &fakeStore{
		matches: []domain.SimilarityMatch{
			{PRURL: "https://github.com/repo/pull/2", Percentage: 85},
		},
		upsertErr: errors.New("write rejected"),
	}
	content := &fakeContent{byPath: map[string]string{"a.txt": "hello"}}
	p := newTestPipeline(content, store)

	matches, err := p.Run(context.Background(), PREvent{
		Repo:      "repo",
		Number:    "1",
		CommitSHA: "abc123",
		Added:     []string{"a.txt"},
	})
	assert.Error(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, StateFailed, p.State())
}

func TestRunQueryFailure(t *testing.T) {
	store := &fakeStore{queryErr: errors.New("timeout")}
	p := newTestPipeline(&fakeContent{byPath: map[string]string{"a.txt": "hi"}}, store)

	_, err := p.Run(context.Background(), PREvent{
		Repo:      "repo",
		Number:    "1",
		CommitSHA: "abc123",
		Added:     []string{"a.txt"},
	})
	assert.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
	assert.NotContains(t, store.calls, "upsert")
}

func TestRunDimensionMismatch(t *testing.T) {
	store := &fakeStore{}
	chunker := NewChunker(fieldsCounter{})
	encoder := NewEncoder(&fakeBackend{}, EncoderConfig{})
	p := NewPipeline(&fakeContent{}, chunker, encoder, store, PipelineConfig{
		MaxChunkTokens:    399,
		ExpectedDimension: 384,
	})

	_, err := p.Run(context.Background(), PREvent{
		Repo:      "repo",
		Number:    "1",
		CommitSHA: "abc123",
	})
	assert.Error(t, err)
	assert.Equal(t, StateFailed, p.State())
	assert.Empty(t, store.calls)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "init", StateInit.String())
	assert.Equal(t, "closed_path", StateClosedPath.String())
	assert.Equal(t, "open_path", StateOpenPath.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "failed", StateFailed.String())
}
