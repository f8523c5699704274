// Package store persists embedding vectors so repeated labels are not re-embedded.
package store

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
)

// EmbeddingCache stores vectors keyed by (model, text).
// Implementations must be safe for concurrent use.
type EmbeddingCache interface {
	// Get returns the cached vectors for the given texts. Texts without an entry
	// are simply absent from the returned map.
	Get(ctx context.Context, model string, texts []string) (map[string][]float32, error)

	// Put adds or replaces vectors.
	Put(ctx context.Context, model string, vectors map[string][]float32) error

	// Close releases resources.
	Close() error
}

// MemoryCache is an in-memory implementation of EmbeddingCache.
// It uses a map to store vectors and provides thread-safe access via RWMutex.
// Note: This implementation does not persist vectors across restarts.
type MemoryCache struct {
	vectors map[string]map[string][]float32
	mu      sync.RWMutex
}

// NewMemoryCache creates a new in-memory embedding cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		vectors: make(map[string]map[string][]float32),
	}
}

// Get implements EmbeddingCache.
func (m *MemoryCache) Get(ctx context.Context, model string, texts []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]float32)
	byText := m.vectors[model]
	for _, text := range texts {
		if v, ok := byText[text]; ok {
			out[text] = copyVector(v)
		}
	}
	return out, nil
}

// Put implements EmbeddingCache.
func (m *MemoryCache) Put(ctx context.Context, model string, vectors map[string][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byText, ok := m.vectors[model]
	if !ok {
		byText = make(map[string][]float32, len(vectors))
		m.vectors[model] = byText
	}
	// Copy to avoid external mutations
	for text, v := range vectors {
		byText[text] = copyVector(v)
	}
	return nil
}

// Len returns the number of cached vectors across all models.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, byText := range m.vectors {
		n += len(byText)
	}
	return n
}

// Close implements EmbeddingCache.
func (m *MemoryCache) Close() error {
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// serializeEmbedding converts a float32 slice to a little-endian BLOB for storage.
func serializeEmbedding(embedding []float32) []byte {
	blob := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		bits := math.Float32bits(v)
		binary.LittleEndian.PutUint32(blob[i*4:(i+1)*4], bits)
	}
	return blob
}

// deserializeEmbedding converts a BLOB back to a float32 slice.
func deserializeEmbedding(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		bits := binary.LittleEndian.Uint32(data[i*4 : (i+1)*4])
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}
