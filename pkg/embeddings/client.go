// Package embeddings provides clients that turn skill labels into vectors.
package embeddings

import "context"

// EmbeddingClient defines the interface for generating text embeddings
type EmbeddingClient interface {
	// Embed generates embeddings for multiple texts, one per input and in order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne generates an embedding for a single text
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain batch function to EmbeddingClient. It is the usual way to
// plug in a stub, a lookup table, or a model loaded elsewhere in the process.
type Func func(ctx context.Context, texts []string) ([][]float32, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// EmbedOne calls f with a single text.
func (f Func) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, errUnexpectedCount(1, len(vectors))
	}
	return vectors[0], nil
}
