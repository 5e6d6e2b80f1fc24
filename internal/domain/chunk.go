package domain

// Chunk is a token-bounded slice of the assembled PR content. Index fixes the
// chunk's position in the original blob so per-chunk results can be
// reassembled in order no matter how inference completes.
type Chunk struct {
	Index int
	Text  string
}
