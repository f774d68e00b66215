package imaging

import (
	"testing"

	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, r, g, b uint8) *Image {
	img := NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, r, g, b)
		}
	}
	return img
}

func TestDominantColorsSolidRed(t *testing.T) {
	img := solidImage(20, 20, 220, 30, 30)

	colors, err := DominantColors(img)
	require.NoError(t, err)
	require.Len(t, colors, DominantColorCount)

	assert.Equal(t, "red", colors[0].Name)
	assert.InDelta(t, 1.0, colors[0].Weight, 1e-9)

	// Профиль дополняется повторением последнего цвета
	for _, c := range colors[1:] {
		assert.Equal(t, colors[0].Name, c.Name)
	}
}

func TestDominantColorsTwoColors(t *testing.T) {
	img := NewImage(20, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			if x < 10 {
				img.Set(x, y, 220, 30, 30) // красный
			} else {
				img.Set(x, y, 30, 30, 220) // синий
			}
		}
	}

	colors, err := DominantColors(img)
	require.NoError(t, err)
	require.Len(t, colors, DominantColorCount)

	names := map[string]bool{}
	for _, c := range colors {
		names[c.Name] = true
	}
	assert.True(t, names["red"])
	assert.True(t, names["blue"])

	// Сортировка по убыванию доли
	for i := 1; i < len(colors); i++ {
		assert.GreaterOrEqual(t, colors[i-1].Weight, colors[i].Weight)
	}
}

func TestDominantColorsDeterministic(t *testing.T) {
	img := NewImage(30, 30)
	for y := 0; y < 30; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, uint8(x*8), uint8(y*8), uint8((x+y)*4))
		}
	}

	first, err := DominantColors(img)
	require.NoError(t, err)
	second, err := DominantColors(img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDominantColorsNoPixels(t *testing.T) {
	_, err := DominantColors(nil)
	assert.Error(t, err)

	_, err = DominantColors(NewImage(0, 0))
	assert.Error(t, err)
}

func TestDominantColorsNeutralFallback(t *testing.T) {
	// Почти чёрное изображение: фильтр отбрасывает всё, кластеризуются все пиксели
	img := solidImage(10, 10, 10, 10, 10)

	colors, err := DominantColors(img)
	require.NoError(t, err)
	require.Len(t, colors, DominantColorCount)
	assert.Equal(t, "black", colors[0].Name)
}

func TestColorSimilarityIdenticalProfiles(t *testing.T) {
	profile := []domain.DominantColor{
		{R: 220, G: 30, B: 30, Weight: 0.7},
		{R: 30, G: 30, B: 220, Weight: 0.3},
	}

	sim := ColorSimilarity(profile, profile)
	assert.Greater(t, sim, 0.5)

	distant := []domain.DominantColor{
		{R: 30, G: 220, B: 30, Weight: 1.0},
	}
	assert.Greater(t, sim, ColorSimilarity(profile, distant))
}

func TestColorSimilarityIgnoresMinorQueryColors(t *testing.T) {
	query := []domain.DominantColor{
		{R: 220, G: 30, B: 30, Weight: 0.03}, // ниже порога значимости
	}
	product := []domain.DominantColor{
		{R: 220, G: 30, B: 30, Weight: 1.0},
	}

	assert.Zero(t, ColorSimilarity(query, product))
}

func TestNameColor(t *testing.T) {
	assert.Equal(t, "black", NameColor(5, 5, 5))
	assert.Equal(t, "white", NameColor(250, 250, 250))
	assert.Equal(t, "gray", NameColor(128, 128, 128))
	assert.Equal(t, "red", NameColor(220, 20, 20))
	assert.Equal(t, "green", NameColor(20, 220, 20))
	assert.Equal(t, "blue", NameColor(20, 20, 220))
}
