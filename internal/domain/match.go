package domain

// SimilarityMatch is a previously indexed PR scored against the current one.
// Percentage is the store's similarity score scaled to [0, 100].
type SimilarityMatch struct {
	PRURL      string  `json:"pr_url"`
	Percentage float64 `json:"percentage"`
}
