package imaging

import (
	"testing"

	"github.com/smartwear-tech/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentCentralObject(t *testing.T) {
	// Яркий объект в центре на тёмном фоне
	img := solidImage(30, 30, 20, 20, 20)
	for y := 9; y < 21; y++ {
		for x := 9; x < 21; x++ {
			img.Set(x, y, 230, 40, 40)
		}
	}

	out, err := Segment(img, logger.NewSlogLogger())
	require.NoError(t, err)
	require.NotNil(t, out)

	colors, err := DominantColors(out)
	require.NoError(t, err)
	assert.Equal(t, "red", colors[0].Name)
}

func TestSegmentFlatImageFallsBack(t *testing.T) {
	// Однотонное изображение: masked-стадии непригодны, срабатывает запасной вариант
	img := solidImage(30, 30, 120, 120, 120)

	out, err := Segment(img, logger.NewSlogLogger())
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NotZero(t, out.W*out.H)
}

func TestSegmentTinyImage(t *testing.T) {
	out, err := Segment(solidImage(2, 2, 100, 100, 100), logger.NewSlogLogger())
	require.NoError(t, err)
	// Стадии с обрезкой неприменимы, остаётся исходное изображение
	assert.Equal(t, 2, out.W)
	assert.Equal(t, 2, out.H)
}

func TestSegmentUnreadable(t *testing.T) {
	_, err := Segment(nil, logger.NewSlogLogger())
	assert.Error(t, err)

	_, err = Segment(NewImage(0, 0), logger.NewSlogLogger())
	assert.Error(t, err)
}

func TestOtsuThresholdSeparatesClasses(t *testing.T) {
	values := make([]uint8, 0, 200)
	for i := 0; i < 100; i++ {
		values = append(values, 30)
	}
	for i := 0; i < 100; i++ {
		values = append(values, 220)
	}

	threshold := otsuThreshold(values)
	assert.Greater(t, threshold, uint8(30))
	assert.Less(t, threshold, uint8(220))
}

func TestMorphOpenRemovesNoise(t *testing.T) {
	w, h := 9, 9
	mask := make([]bool, w*h)
	mask[4*w+4] = true // одиночный пиксель

	cleaned := morphOpen(mask, w, h)
	for _, v := range cleaned {
		assert.False(t, v)
	}
}
