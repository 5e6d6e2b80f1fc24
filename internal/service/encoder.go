package service

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
	"github.com/arturoeanton/go-pr-dedup/internal/port"
	"golang.org/x/sync/errgroup"
)

// EncoderConfig tunes the embedding encoder.
type EncoderConfig struct {
	// PadTokenID is the id used to pad sequences to the batch-longest length.
	PadTokenID int
	// Normalize applies L2 normalization to the aggregated PR vector.
	Normalize bool
}

// Encoder turns ordered chunks into one fixed-dimension PR-level vector.
//
// The padding configuration is the one piece of mutable shared state: it is
// set to batch-longest under enc.mu immediately before each tokenize, so
// concurrent Embed calls serialize on the same handle rather than racing on
// the tokenizer setup.
type Encoder struct {
	backend port.ModelBackend
	cfg     EncoderConfig

	mu      sync.Mutex
	padding port.PaddingStrategy
}

// NewEncoder creates an encoder over the given model backend.
func NewEncoder(backend port.ModelBackend, cfg EncoderConfig) *Encoder {
	return &Encoder{backend: backend, cfg: cfg}
}

// Embed tokenizes all chunks as one batch padded to the longest sequence in
// that batch, runs the per-chunk forward passes in parallel, mean-pools each
// chunk over its tokens, and returns the element-wise mean across chunks.
// Forward passes may complete in any order; each result lands in the slot
// matching its chunk index, so aggregation order never depends on timing.
func (e *Encoder) Embed(ctx context.Context, chunks []domain.Chunk) ([]float32, error) {
	if e.backend == nil {
		return nil, port.ErrModelUninitialized
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to embed")
	}

	texts := make([]string, len(chunks))
	for _, ch := range chunks {
		if ch.Index < 0 || ch.Index >= len(chunks) {
			return nil, fmt.Errorf("chunk index %d out of range", ch.Index)
		}
		texts[ch.Index] = ch.Text
	}

	e.mu.Lock()
	e.padding = port.PadBatchLongest
	ids, err := e.backend.TokenizeBatch(ctx, texts)
	var batch []port.Encoding
	if err == nil {
		batch = padBatch(ids, e.padding, e.cfg.PadTokenID)
	}
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("tokenize batch: %w", err)
	}

	// Pre-sized result buffer: each goroutine owns exactly one slot.
	pooled := make([][]float32, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, enc := range batch {
		i, enc := i, enc
		g.Go(func() error {
			hidden, err := e.backend.Forward(gctx, enc.IDs, enc.AttentionMask)
			if err != nil {
				return fmt.Errorf("forward chunk %d: %w", i, err)
			}
			if len(hidden) == 0 {
				return fmt.Errorf("%w: chunk %d produced no token vectors", port.ErrInference, i)
			}
			pooled[i] = meanPool(hidden)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vec, err := meanVectors(pooled)
	if err != nil {
		return nil, err
	}
	if e.cfg.Normalize {
		l2Normalize(vec)
	}
	return vec, nil
}

// padBatch pads every sequence to the longest in the batch and builds the
// matching attention masks.
func padBatch(ids [][]int, strategy port.PaddingStrategy, padTokenID int) []port.Encoding {
	longest := 0
	if strategy == port.PadBatchLongest {
		for _, seq := range ids {
			if len(seq) > longest {
				longest = len(seq)
			}
		}
	}

	batch := make([]port.Encoding, len(ids))
	for i, seq := range ids {
		n := len(seq)
		if n < longest {
			padded := make([]int, longest)
			copy(padded, seq)
			for j := n; j < longest; j++ {
				padded[j] = padTokenID
			}
			seq = padded
		}
		mask := make([]int, len(seq))
		for j := range mask {
			if j < n {
				mask[j] = 1
			}
		}
		batch[i] = port.Encoding{IDs: seq, AttentionMask: mask}
	}
	return batch
}

// meanPool averages per-token vectors into one vector.
func meanPool(hidden [][]float32) []float32 {
	dim := len(hidden[0])
	out := make([]float32, dim)
	for _, tok := range hidden {
		for j := 0; j < dim && j < len(tok); j++ {
			out[j] += tok[j]
		}
	}
	n := float32(len(hidden))
	for j := range out {
		out[j] /= n
	}
	return out
}

// meanVectors averages the per-chunk vectors element-wise into the PR-level
// vector. Any chunk count >= 1 is valid.
func meanVectors(vectors [][]float32) ([]float32, error) {
	dim := len(vectors[0])
	out := make([]float32, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("chunk %d vector has dimension %d, want %d", i, len(v), dim)
		}
		for j, x := range v {
			out[j] += x
		}
	}
	n := float32(len(vectors))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}

// l2Normalize scales v to unit length in place; the zero vector is left as is.
func l2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for j := range v {
		v[j] /= norm
	}
}
