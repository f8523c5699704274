package cluster

import "math"

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction,
// 0 means orthogonal, and -1 means opposite direction.
// Mismatched lengths, empty vectors and zero vectors all score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	if len(a) == 0 {
		return 0.0
	}

	var dotProduct, normA, normB float64

	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SimilarityMatrix returns the symmetric pairwise cosine similarity matrix.
// The diagonal is fixed at 1 so a node always counts as similar to itself,
// regardless of float rounding.
func SimilarityMatrix(vectors [][]float32) [][]float64 {
	n := len(vectors)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		m[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			s := CosineSimilarity(vectors[i], vectors[j])
			m[i][j] = s
			m[j][i] = s
		}
	}

	return m
}
