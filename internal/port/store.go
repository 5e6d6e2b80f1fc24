package port

import (
	"context"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
)

// RawMatch is one raw nearest-neighbour hit from a vector store, before
// identity and threshold filtering.
type RawMatch struct {
	ID    string
	Score float64
}

// VectorStore is the remote similarity index holding one vector per PR.
// Implementations target different providers; the provider is chosen once at
// startup.
type VectorStore interface {
	// Upsert stores vector under id, overwriting any previous vector with the
	// same id.
	Upsert(ctx context.Context, id string, vector []float32) error

	// Query returns up to topK previously stored PRs similar to vector,
	// excluding selfID and entries from repositories other than repo, and
	// dropping anything below minSimilarity percent. Results are ordered by
	// descending percentage.
	Query(ctx context.Context, vector []float32, topK, minSimilarity int, selfID, repo string) ([]domain.SimilarityMatch, error)

	// Delete removes id from the index. Deleting an unknown id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}
