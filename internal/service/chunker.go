package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
	"github.com/arturoeanton/go-pr-dedup/internal/port"
)

// Chunker splits assembled PR content into token-bounded chunks. Token counts
// come from the embedding model's own tokenizer, so every chunk fits within
// the model's input limit.
type Chunker struct {
	counter port.TokenCounter
}

// NewChunker creates a chunker backed by the given token counter.
func NewChunker(counter port.TokenCounter) *Chunker {
	return &Chunker{counter: counter}
}

// Chunk splits blob into chunks of at most maxTokens tokens each, in
// ascending index order. Boundaries prefer line and sentence breaks over
// splitting mid-word; chunk text is whitespace-trimmed, and the concatenation
// of all chunks reconstructs the blob modulo whitespace normalization.
func (c *Chunker) Chunk(ctx context.Context, blob string, maxTokens int) ([]domain.Chunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens %d", port.ErrChunking, maxTokens)
	}

	segments := splitSegments(blob)
	if len(segments) == 0 {
		// Whitespace-only blob (the no-content placeholder): keep a single
		// chunk so the PR still gets a vector.
		return []domain.Chunk{{Index: 0, Text: blob}}, nil
	}

	counts, err := c.counter.CountTokens(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}

	var chunks []domain.Chunk
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(cur, " "))
		cur, curTokens = nil, 0
		if text == "" {
			return
		}
		chunks = append(chunks, domain.Chunk{Index: len(chunks), Text: text})
	}

	for i, seg := range segments {
		n := counts[i]
		if n > maxTokens {
			flush()
			pieces, err := c.splitOversized(ctx, seg, maxTokens)
			if err != nil {
				return nil, err
			}
			for _, p := range pieces {
				chunks = append(chunks, domain.Chunk{Index: len(chunks), Text: p})
			}
			continue
		}
		if curTokens+n > maxTokens {
			flush()
		}
		cur = append(cur, seg)
		curTokens += n
	}
	flush()

	return chunks, nil
}

// splitOversized breaks one segment that exceeds maxTokens on its own into
// word-bounded pieces.
func (c *Chunker) splitOversized(ctx context.Context, seg string, maxTokens int) ([]string, error) {
	words := strings.Fields(seg)
	counts, err := c.counter.CountTokens(ctx, words)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}

	var out []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur, curTokens = nil, 0
		}
	}

	for i, w := range words {
		n := counts[i]
		if n > maxTokens {
			flush()
			pieces, err := c.splitWord(ctx, w, maxTokens)
			if err != nil {
				return nil, err
			}
			out = append(out, pieces...)
			continue
		}
		if curTokens+n > maxTokens {
			flush()
		}
		cur = append(cur, w)
		curTokens += n
	}
	flush()

	return out, nil
}

// splitWord hard-splits a single word whose token count exceeds maxTokens.
// This is the last resort when no natural boundary exists.
func (c *Chunker) splitWord(ctx context.Context, word string, maxTokens int) ([]string, error) {
	runes := []rune(word)
	if len(runes) < 2 {
		return []string{word}, nil
	}

	mid := len(runes) / 2
	halves := []string{string(runes[:mid]), string(runes[mid:])}
	counts, err := c.counter.CountTokens(ctx, halves)
	if err != nil {
		return nil, fmt.Errorf("count tokens: %w", err)
	}

	var out []string
	for i, half := range halves {
		if counts[i] > maxTokens && len([]rune(half)) >= 2 {
			sub, err := c.splitWord(ctx, half, maxTokens)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}
		out = append(out, half)
	}
	return out, nil
}

// splitSegments breaks the blob into sentence-sized segments, preferring line
// boundaries first and sentence enders within lines.
func splitSegments(blob string) []string {
	var segs []string
	for _, line := range strings.Split(blob, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		segs = append(segs, splitSentences(line)...)
	}
	return segs
}

// splitSentences splits a line after '.', '!' or '?' followed by a space.
func splitSentences(line string) []string {
	var out []string
	start := 0
	for i := 0; i < len(line)-1; i++ {
		switch line[i] {
		case '.', '!', '?':
			if line[i+1] == ' ' {
				if s := strings.TrimSpace(line[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(line[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
