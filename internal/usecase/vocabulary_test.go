package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorySimilarityLevels(t *testing.T) {
	assert.InDelta(t, 1.0, CategorySimilarity("dress", "dress"), 1e-9)
	assert.InDelta(t, 1.0, CategorySimilarity("Dress", " dress "), 1e-9)

	// Вхождение подстроки
	assert.InDelta(t, 0.7, CategorySimilarity("t-shirt", "shirt"), 1e-9)

	// Общая группа словаря
	assert.InDelta(t, 0.5, CategorySimilarity("jeans", "skirt"), 1e-9)

	// Несвязанные категории
	assert.InDelta(t, 0.1, CategorySimilarity("boots", "hat"), 1e-9)

	// Пустая метка
	assert.Zero(t, CategorySimilarity("", "dress"))
	assert.Zero(t, CategorySimilarity("dress", ""))
}

func TestVocabularyPrompts(t *testing.T) {
	prompts := VocabularyPrompts("a photo of a %s")
	require.Len(t, prompts, len(categoryVocabulary))
	assert.Equal(t, "a photo of a t-shirt", prompts[0])
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float64{1, 2, 3})
	require.Len(t, probs, 3)

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[2], probs[1])
	assert.Greater(t, probs[1], probs[0])

	// Большие значения не переполняются
	probs = softmax([]float64{1000, 1001})
	assert.False(t, math.IsNaN(probs[0]))
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)

	assert.Nil(t, softmax(nil))
}
