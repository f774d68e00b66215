package usecase

import (
	"math"
	"sort"

	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/smartwear-tech/go-backend/internal/imaging"
	"github.com/smartwear-tech/go-backend/pkg/e"
)

// NormalizeVector приводит вектор к единичной L2-норме на месте.
// Нулевой или пустой вектор нормировать нельзя.
func NormalizeVector(v []float32) error {
	if len(v) == 0 {
		return e.ErrVectorEmbeddingEmpty
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return e.ErrVectorEmbeddingEmpty
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}

	return nil
}

// CosineSimilarity — скалярное произведение нормированных векторов,
// зажатое в [0,1]. Векторы разной длины несравнимы и дают 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}

	switch {
	case dot < 0:
		return 0
	case dot > 1:
		return 1
	default:
		return dot
	}
}

// rankEntries оценивает каждый продукт индекса тремя сигналами, смешивает их
// нормированными весами и возвращает topK лучших. Сортировка стабильна:
// при равных оценках сохраняется порядок добавления продуктов в каталог.
func rankEntries(query *domain.QueryDescriptor, entries []domain.ProductIndexEntry, weights FusionWeights, topK int) []domain.ScoredResult {
	total := weights.Visual + weights.Color + weights.Category
	if total <= 0 {
		return nil
	}

	scored := make([]domain.ScoredResult, 0, len(entries))
	for _, entry := range entries {
		components := domain.ComponentScores{
			Visual:   CosineSimilarity(query.Embedding, entry.Embedding),
			Color:    imaging.ColorSimilarity(query.DominantColors, entry.DominantColors),
			Category: CategorySimilarity(query.Category.Label, entry.Category),
		}

		combined := (weights.Visual*components.Visual +
			weights.Color*components.Color +
			weights.Category*components.Category) / total

		scored = append(scored, domain.ScoredResult{
			ProductID:     entry.ProductID,
			CombinedScore: combined,
			Components:    components,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].CombinedScore > scored[j].CombinedScore
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	return scored
}
