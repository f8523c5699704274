package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dan-solli/skillgap/pkg/store"
)

// CachedClient wraps an EmbeddingClient with an embedding cache.
//
// Cache hits are served directly; all misses go to the underlying client in a
// single batched call and are written back. Cache failures degrade to misses
// and are logged; failures of the underlying client are returned unchanged.
type CachedClient struct {
	client EmbeddingClient
	cache  store.EmbeddingCache
	model  string
	logger *slog.Logger
}

// NewCachedClient creates a caching decorator. model namespaces cache entries so
// vectors from different models never mix.
func NewCachedClient(client EmbeddingClient, cache store.EmbeddingCache, model string) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cache,
		model:  model,
	}
}

// WithLogger sets the logger used for cache warnings.
func (c *CachedClient) WithLogger(logger *slog.Logger) *CachedClient {
	c.logger = logger
	return c
}

// Embed implements EmbeddingClient.
func (c *CachedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	hits, err := c.cache.Get(ctx, c.model, texts)
	if err != nil {
		c.warn("embedding cache read failed", err)
		hits = nil
	}

	var misses []string
	queued := make(map[string]bool)
	for _, text := range texts {
		if _, ok := hits[text]; ok || queued[text] {
			continue
		}
		queued[text] = true
		misses = append(misses, text)
	}

	fresh := make(map[string][]float32, len(misses))
	if len(misses) > 0 {
		vectors, err := c.client.Embed(ctx, misses)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(misses) {
			return nil, errUnexpectedCount(len(misses), len(vectors))
		}
		for i, text := range misses {
			fresh[text] = vectors[i]
		}
		if err := c.cache.Put(ctx, c.model, fresh); err != nil {
			c.warn("embedding cache write failed", err)
		}
	}

	if c.logger != nil {
		c.logger.Debug("embedding cache lookup",
			slog.Int("requested", len(texts)),
			slog.Int("hits", len(texts)-len(misses)),
			slog.Int("misses", len(misses)),
		)
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := hits[text]; ok {
			out[i] = v
			continue
		}
		v, ok := fresh[text]
		if !ok {
			return nil, fmt.Errorf("no embedding for input %d", i)
		}
		out[i] = v
	}

	return out, nil
}

// EmbedOne implements EmbeddingClient.
func (c *CachedClient) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *CachedClient) warn(msg string, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, slog.String("model", c.model), slog.String("error", err.Error()))
}
