package imaging

import (
	"fmt"
	"math"

	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
)

const (
	// Границы доли переднего плана, при которых маска считается пригодной.
	minForegroundCoverage = 0.10
	maxForegroundCoverage = 0.90

	centerSeedInset  = 0.20 // отступ центрального прямоугольника-затравки с каждой стороны
	refineIterations = 5
)

// segmentStage — одна стадия цепочки выделения переднего плана.
// Стадия возвращает результат и долю переднего плана; guarded-стадии
// принимаются только при доле в [minForegroundCoverage, maxForegroundCoverage].
type segmentStage struct {
	name    string
	guarded bool
	run     func(img *Image) (*Image, float64, error)
}

var segmentStages = []segmentStage{
	{name: "center-refine", guarded: true, run: centerRefine},
	{name: "saliency", guarded: true, run: saliencyMask},
	{name: "center-crop", run: centerCrop},
	{name: "identity", run: identity},
}

// Segment подавляет фон перед извлечением цветов: стадии пробуются по порядку,
// берётся первый пригодный результат. Сбой стадии (включая панику) означает
// «результата нет» и передаёт управление следующей стадии; фатален только
// случай нечитаемого изображения.
func Segment(img *Image, log logger.Logger) (*Image, error) {
	if img == nil || img.W == 0 || img.H == 0 {
		return nil, e.ErrImageUnreadable
	}

	for _, stage := range segmentStages {
		out, coverage, err := runStage(stage, img)
		if err != nil {
			log.Debugf("segmentation stage %s produced no result: %v", stage.name, err)
			continue
		}
		if stage.guarded && (coverage < minForegroundCoverage || coverage > maxForegroundCoverage) {
			log.Debugf("segmentation stage %s rejected: coverage %.2f", stage.name, coverage)
			continue
		}

		log.Debugf("segmentation stage %s accepted: coverage %.2f", stage.name, coverage)
		return out, nil
	}

	return nil, e.ErrImageUnreadable
}

// runStage выполняет стадию, превращая панику в обычный сбой стадии.
func runStage(stage segmentStage, img *Image) (out *Image, coverage float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, coverage, err = nil, 0, fmt.Errorf("stage %s panic: %v", stage.name, r)
		}
	}()

	return stage.run(img)
}

// centerRefine — итеративное разделение фон/передний план с затравкой
// в виде центрального прямоугольника: пиксели перераспределяются к
// ближайшему из двух средних цветов несколько раундов подряд.
func centerRefine(img *Image) (*Image, float64, error) {
	total := img.W * img.H
	fg := make([]bool, total)

	x0 := int(float64(img.W) * centerSeedInset)
	y0 := int(float64(img.H) * centerSeedInset)
	x1 := img.W - x0
	y1 := img.H - y0
	if x1 <= x0 || y1 <= y0 {
		return nil, 0, fmt.Errorf("image %dx%d too small for center seed", img.W, img.H)
	}

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			fg[y*img.W+x] = true
		}
	}

	for iter := 0; iter < refineIterations; iter++ {
		fgMean, fgCount := maskMean(img, fg, true)
		bgMean, bgCount := maskMean(img, fg, false)
		if fgCount == 0 || bgCount == 0 {
			return nil, 0, fmt.Errorf("refinement collapsed at iteration %d", iter)
		}

		for i := 0; i < total; i++ {
			px := [3]float64{float64(img.Pix[i*3]), float64(img.Pix[i*3+1]), float64(img.Pix[i*3+2])}
			fg[i] = colorDistSq(px, fgMean) < colorDistSq(px, bgMean)
		}
	}

	return applyMask(img, fg)
}

// saliencyMask — карта заметности как расстояние пикселя до среднего цвета
// изображения, бинаризация порогом Оцу и морфологическая чистка open+close.
func saliencyMask(img *Image) (*Image, float64, error) {
	total := img.W * img.H
	mean, _ := maskMean(img, nil, false)

	sal := make([]float64, total)
	maxSal := 0.0
	for i := 0; i < total; i++ {
		px := [3]float64{float64(img.Pix[i*3]), float64(img.Pix[i*3+1]), float64(img.Pix[i*3+2])}
		sal[i] = math.Sqrt(colorDistSq(px, mean))
		if sal[i] > maxSal {
			maxSal = sal[i]
		}
	}
	if maxSal == 0 {
		return nil, 0, fmt.Errorf("flat image, saliency undefined")
	}

	bytes := make([]uint8, total)
	for i, s := range sal {
		bytes[i] = uint8(s / maxSal * 255)
	}

	threshold := otsuThreshold(bytes)
	mask := make([]bool, total)
	for i, b := range bytes {
		mask[i] = b > threshold
	}

	mask = morphOpen(mask, img.W, img.H)
	mask = morphClose(mask, img.W, img.H)

	return applyMask(img, mask)
}

// centerCrop — дешёвый гарантированный запасной вариант: центральная треть кадра.
func centerCrop(img *Image) (*Image, float64, error) {
	if img.W < 3 || img.H < 3 {
		return nil, 0, fmt.Errorf("image %dx%d too small to crop", img.W, img.H)
	}

	out := img.Crop(img.W/3, img.H/3, 2*img.W/3, 2*img.H/3)
	return out, float64(out.W*out.H) / float64(img.W*img.H), nil
}

func identity(img *Image) (*Image, float64, error) {
	return img, 1.0, nil
}

// applyMask зануляет фоновые пиксели: чёрный фон отбрасывается
// фильтром низкой яркости при извлечении цветов.
func applyMask(img *Image, mask []bool) (*Image, float64, error) {
	out := img.Clone()
	kept := 0
	for i, keep := range mask {
		if keep {
			kept++
			continue
		}
		out.Pix[i*3], out.Pix[i*3+1], out.Pix[i*3+2] = 0, 0, 0
	}

	return out, float64(kept) / float64(len(mask)), nil
}

// maskMean возвращает средний RGB по пикселям, где mask[i] == want.
// При nil mask усредняются все пиксели.
func maskMean(img *Image, mask []bool, want bool) ([3]float64, int) {
	var sum [3]float64
	count := 0
	total := img.W * img.H

	for i := 0; i < total; i++ {
		if mask != nil && mask[i] != want {
			continue
		}
		sum[0] += float64(img.Pix[i*3])
		sum[1] += float64(img.Pix[i*3+1])
		sum[2] += float64(img.Pix[i*3+2])
		count++
	}

	if count > 0 {
		sum[0] /= float64(count)
		sum[1] /= float64(count)
		sum[2] /= float64(count)
	}

	return sum, count
}

func colorDistSq(a, b [3]float64) float64 {
	d0 := a[0] - b[0]
	d1 := a[1] - b[1]
	d2 := a[2] - b[2]
	return d0*d0 + d1*d1 + d2*d2
}

// otsuThreshold подбирает глобальный порог бинаризации по максимуму межклассовой дисперсии.
func otsuThreshold(values []uint8) uint8 {
	var hist [256]int
	for _, v := range values {
		hist[v]++
	}

	total := len(values)
	sumAll := 0.0
	for i, c := range hist {
		sumAll += float64(i) * float64(c)
	}

	var (
		sumBg     float64
		weightBg  int
		bestVar   float64
		threshold uint8
	)
	for t := 0; t < 256; t++ {
		weightBg += hist[t]
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}

		sumBg += float64(t) * float64(hist[t])
		meanBg := sumBg / float64(weightBg)
		meanFg := (sumAll - sumBg) / float64(weightFg)

		betweenVar := float64(weightBg) * float64(weightFg) * (meanBg - meanFg) * (meanBg - meanFg)
		if betweenVar > bestVar {
			bestVar = betweenVar
			threshold = uint8(t)
		}
	}

	return threshold
}

// morphOpen — эрозия, затем дилатация ядром 3x3: убирает одиночные шумовые пиксели.
func morphOpen(mask []bool, w, h int) []bool {
	return dilate(erode(mask, w, h), w, h)
}

// morphClose — дилатация, затем эрозия ядром 3x3: заращивает мелкие дыры.
func morphClose(mask []bool, w, h int) []bool {
	return erode(dilate(mask, w, h), w, h)
}

func erode(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = allNeighbors(mask, w, h, x, y, true)
		}
	}
	return out
}

func dilate(mask []bool, w, h int) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = !allNeighbors(mask, w, h, x, y, false)
		}
	}
	return out
}

// allNeighbors проверяет, что все пиксели окна 3x3 (с обрезкой по краям) равны want.
func allNeighbors(mask []bool, w, h, x, y int, want bool) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			if mask[ny*w+nx] != want {
				return false
			}
		}
	}
	return true
}
