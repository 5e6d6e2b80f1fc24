package port

import (
	"errors"
	"fmt"
)

// Sentinel errors used across ports.
var (
	ErrModelUninitialized = errors.New("embedding model not initialized")
	ErrInference          = errors.New("model inference failed")
	ErrChunking           = errors.New("invalid chunking limit")
)

// RemoteStoreError reports a non-success response from the vector store. The
// pipeline treats it as fatal; operations are never retried.
type RemoteStoreError struct {
	Status int
	Body   string
}

func (e *RemoteStoreError) Error() string {
	return fmt.Sprintf("vector store error (%d): %s", e.Status, e.Body)
}
