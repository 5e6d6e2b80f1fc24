package port

import "context"

// PaddingStrategy controls how a batch of token sequences is padded before
// the forward pass.
type PaddingStrategy int

const (
	PadNone PaddingStrategy = iota

	// PadBatchLongest pads every sequence to the longest sequence within the
	// current batch, not to a fixed global maximum. This affects the
	// attention mask handed to the model.
	PadBatchLongest
)

// Encoding is one tokenized sequence ready for the forward pass. After
// padding, IDs and AttentionMask have the same length; mask entries are 1 for
// real tokens and 0 for padding.
type Encoding struct {
	IDs           []int
	AttentionMask []int
}

// ModelBackend is the opaque embedding capability supplied by the external
// model-serving component: encode text into token ids and run one sequence
// through the model.
type ModelBackend interface {
	// ModelName returns the identifier of the model being served.
	ModelName() string

	// TokenizeBatch encodes each text into token ids. No padding is applied;
	// callers pad according to their batching contract.
	TokenizeBatch(ctx context.Context, texts []string) ([][]int, error)

	// Forward runs one sequence through the model and returns the final
	// hidden state: one vector per input token.
	Forward(ctx context.Context, ids []int, attentionMask []int) ([][]float32, error)
}

// TokenCounter counts model tokens for candidate text segments. The chunker
// uses it so chunk boundaries respect the embedding model's own tokenizer.
type TokenCounter interface {
	CountTokens(ctx context.Context, texts []string) ([]int, error)
}
