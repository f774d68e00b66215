package usecase

import (
	"testing"

	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	v := []float32{3, 4}
	require.NoError(t, NormalizeVector(v))
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	assert.Error(t, NormalizeVector(nil))
	assert.Error(t, NormalizeVector([]float32{0, 0}))
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity(a, b), 1e-9)

	// Отрицательная близость зажимается в ноль
	assert.Zero(t, CosineSimilarity(a, []float32{-1, 0, 0}))

	// Векторы разной длины несравнимы
	assert.Zero(t, CosineSimilarity(a, []float32{1, 0}))
}

func rankerQuery(embedding []float32) *domain.QueryDescriptor {
	return &domain.QueryDescriptor{
		Embedding: embedding,
		DominantColors: []domain.DominantColor{
			{R: 255, G: 0, B: 0, Weight: 1.0},
		},
		Category: domain.CategoryPrediction{Label: "dress"},
	}
}

func rankerEntry(id string, embedding []float32, category string) domain.ProductIndexEntry {
	return domain.ProductIndexEntry{
		ProductID: id,
		Embedding: embedding,
		DominantColors: []domain.DominantColor{
			{R: 255, G: 0, B: 0, Weight: 1.0},
		},
		Category: category,
	}
}

func TestRankEntriesOrdering(t *testing.T) {
	query := rankerQuery([]float32{1, 0, 0})
	entries := []domain.ProductIndexEntry{
		rankerEntry("1", []float32{0, 1, 0}, "boots"),
		rankerEntry("2", []float32{1, 0, 0}, "dress"),
	}

	scored := rankEntries(query, entries, FusionWeights{Visual: 0.3, Color: 0.4, Category: 0.3}, 5)
	require.Len(t, scored, 2)

	assert.Equal(t, "2", scored[0].ProductID)
	assert.Greater(t, scored[0].CombinedScore, scored[1].CombinedScore)
	assert.InDelta(t, 1.0, scored[0].Components.Visual, 1e-9)
	assert.InDelta(t, 1.0, scored[0].Components.Category, 1e-9)
}

func TestRankEntriesStableTieBreak(t *testing.T) {
	query := rankerQuery([]float32{1, 0, 0})
	entries := []domain.ProductIndexEntry{
		rankerEntry("10", []float32{1, 0, 0}, "dress"),
		rankerEntry("11", []float32{1, 0, 0}, "dress"),
		rankerEntry("12", []float32{1, 0, 0}, "dress"),
	}

	scored := rankEntries(query, entries, FusionWeights{Visual: 1, Color: 1, Category: 1}, 5)
	require.Len(t, scored, 3)

	// При равных оценках сохраняется порядок каталога
	assert.Equal(t, "10", scored[0].ProductID)
	assert.Equal(t, "11", scored[1].ProductID)
	assert.Equal(t, "12", scored[2].ProductID)
}

func TestRankEntriesTopK(t *testing.T) {
	query := rankerQuery([]float32{1, 0, 0})
	entries := make([]domain.ProductIndexEntry, 0, 10)
	for i := 0; i < 10; i++ {
		entries = append(entries, rankerEntry(string(rune('a'+i)), []float32{1, 0, 0}, "dress"))
	}

	scored := rankEntries(query, entries, FusionWeights{Visual: 1}, 3)
	assert.Len(t, scored, 3)
}

func TestRankEntriesNormalizesWeights(t *testing.T) {
	query := rankerQuery([]float32{1, 0, 0})
	entries := []domain.ProductIndexEntry{
		rankerEntry("1", []float32{1, 0, 0}, "dress"),
	}

	small := rankEntries(query, entries, FusionWeights{Visual: 0.3, Color: 0.4, Category: 0.3}, 5)
	big := rankEntries(query, entries, FusionWeights{Visual: 3, Color: 4, Category: 3}, 5)

	require.Len(t, small, 1)
	require.Len(t, big, 1)
	assert.InDelta(t, small[0].CombinedScore, big[0].CombinedScore, 1e-9)
}
