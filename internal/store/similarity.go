package store

import (
	"math"
	"sort"

	"command-center/internal/model"
)

// CosineSimilarity is the normalized dot product of a and b. Vectors of
// different length, empty vectors and zero vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Rank scores every chunk against query and returns the best k, highest
// first. Equal scores keep their stored order.
func Rank(query []float32, chunks []model.Chunk, k int) []model.ScoredChunk {
	if k <= 0 || len(chunks) == 0 {
		return nil
	}
	scored := make([]model.ScoredChunk, len(chunks))
	for i := range chunks {
		scored[i] = model.ScoredChunk{
			Chunk: chunks[i],
			Score: CosineSimilarity(query, chunks[i].Vector),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k]
}
