package imaging

import (
	"math"
	"math/rand"
	"sort"

	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"gonum.org/v1/gonum/floats"
)

const (
	// DominantColorCount — фиксированная длина цветового профиля.
	DominantColorCount = 4

	// Пороги отсечения фоновых/нейтральных пикселей в шкале OpenCV HSV.
	minSaturation = 30.0
	minValue      = 40.0

	// Минимум пикселей после фильтрации; иначе кластеризуются все пиксели.
	minFilteredPixels = 64

	// Детерминированная кластеризация: фиксированное зерно и ограничение выборки.
	kmeansSeed       = 42
	kmeansMaxIters   = 20
	kmeansTolerance  = 1e-4
	maxSampledPixels = 20000

	// Минимальный вес цвета запроса, участвующего в сравнении.
	minQueryColorWeight = 0.05
)

// maxColorDistance — максимально возможное евклидово расстояние в RGB-кубе.
var maxColorDistance = math.Sqrt(3) * 255

// DominantColors извлекает профиль из DominantColorCount взвешенных цветов:
// пиксели переводятся в HSV, нейтральные отбрасываются, остаток кластеризуется
// k-means с фиксированным зерном, центры конвертируются обратно в RGB и
// сортируются по убыванию доли. При нехватке кластеров профиль дополняется
// повторением последнего цвета.
func DominantColors(img *Image) ([]domain.DominantColor, error) {
	if img == nil || img.W == 0 || img.H == 0 {
		return nil, e.ErrNoPixels
	}

	pixels := samplePixelsHSV(img)

	filtered := make([][]float64, 0, len(pixels))
	for _, p := range pixels {
		if p[1] >= minSaturation && p[2] >= minValue {
			filtered = append(filtered, p)
		}
	}
	// Слишком мало значимых пикселей — кластеризуем всё, но не падаем.
	if len(filtered) < minFilteredPixels {
		filtered = pixels
	}
	if len(filtered) == 0 {
		return nil, e.ErrNoPixels
	}

	k := DominantColorCount
	if distinct := countDistinct(filtered); distinct < k {
		k = distinct
	}

	centers, weights := kmeans(filtered, k)

	colors := make([]domain.DominantColor, 0, DominantColorCount)
	for i, c := range centers {
		r, g, b := hsvToRGB(c[0], c[1], c[2])
		colors = append(colors, domain.DominantColor{
			R: r, G: g, B: b,
			Weight: weights[i],
			Name:   nameHSV(c[0], c[1], c[2]),
		})
	}

	sort.SliceStable(colors, func(i, j int) bool {
		return colors[i].Weight > colors[j].Weight
	})

	for len(colors) < DominantColorCount {
		colors = append(colors, colors[len(colors)-1])
	}

	return colors, nil
}

// ColorSimilarity сравнивает цветовой профиль запроса с профилем продукта.
// Для каждого значимого цвета запроса берётся ближайший цвет продукта
// (нормированное расстояние в RGB, инвертированное в схожесть), совпадение
// взвешивается произведением долей обоих цветов, сумма нормируется на
// учтённый вес запроса. Формула намеренно несимметрична: цвета запроса
// управляют сопоставлением. Без значимых цветов запроса схожесть равна 0.
func ColorSimilarity(query, product []domain.DominantColor) float64 {
	var acc, queryWeight float64

	for _, qc := range query {
		if qc.Weight < minQueryColorWeight {
			continue
		}

		best := -1.0
		bestWeight := 0.0
		for _, pc := range product {
			d := colorDist(qc, pc) / maxColorDistance
			sim := 1 - d
			if sim > best {
				best = sim
				bestWeight = pc.Weight
			}
		}
		if best < 0 {
			continue
		}

		acc += best * qc.Weight * bestWeight
		queryWeight += qc.Weight
	}

	if queryWeight == 0 {
		return 0
	}

	return acc / queryWeight
}

// NameColor возвращает человекочитаемое имя цвета: black/white/gray
// либо одна из восьми полос оттенков. Только для диагностики, не для скоринга.
func NameColor(r, g, b uint8) string {
	h, s, v := rgbToHSV(r, g, b)
	return nameHSV(h, s, v)
}

func nameHSV(h, s, v float64) string {
	switch {
	case v < minValue:
		return "black"
	case s < minSaturation && v > 200:
		return "white"
	case s < minSaturation:
		return "gray"
	}

	switch {
	case h < 10 || h >= 170:
		return "red"
	case h < 22:
		return "orange"
	case h < 33:
		return "yellow"
	case h < 78:
		return "green"
	case h < 99:
		return "cyan"
	case h < 131:
		return "blue"
	case h < 148:
		return "purple"
	default:
		return "pink"
	}
}

// samplePixelsHSV разворачивает изображение в плоский список HSV-троек,
// детерминированно прореживая большие изображения.
func samplePixelsHSV(img *Image) [][]float64 {
	total := img.W * img.H
	stride := 1
	if total > maxSampledPixels {
		stride = total/maxSampledPixels + 1
	}

	pixels := make([][]float64, 0, total/stride+1)
	for i := 0; i < total; i += stride {
		h, s, v := rgbToHSV(img.Pix[i*3], img.Pix[i*3+1], img.Pix[i*3+2])
		pixels = append(pixels, []float64{h, s, v})
	}

	return pixels
}

func countDistinct(points [][]float64) int {
	seen := make(map[[3]float64]struct{}, len(points))
	for _, p := range points {
		seen[[3]float64{p[0], p[1], p[2]}] = struct{}{}
	}
	return len(seen)
}

// kmeans кластеризует точки на k групп с инициализацией k-means++
// и ранней остановкой по сдвигу центров. Возвращает центры и доли точек.
func kmeans(points [][]float64, k int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(kmeansSeed))
	dim := len(points[0])

	centers := seedCenters(points, k, rng)
	assign := make([]int, len(points))

	for iter := 0; iter < kmeansMaxIters; iter++ {
		for i, p := range points {
			best := 0
			bestDist := math.MaxFloat64
			for c := range centers {
				if d := distSq(p, centers[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			assign[i] = best
		}

		next := make([][]float64, k)
		counts := make([]int, k)
		for c := range next {
			next[c] = make([]float64, dim)
		}
		for i, p := range points {
			floats.Add(next[assign[i]], p)
			counts[assign[i]]++
		}

		shift := 0.0
		for c := range next {
			if counts[c] == 0 {
				// Пустой кластер сохраняет прежний центр.
				copy(next[c], centers[c])
				continue
			}
			floats.Scale(1/float64(counts[c]), next[c])
			shift += floats.Distance(centers[c], next[c], 2)
		}
		centers = next

		if shift < kmeansTolerance {
			break
		}
	}

	weights := make([]float64, k)
	for _, a := range assign {
		weights[a]++
	}
	for c := range weights {
		weights[c] /= float64(len(points))
	}

	return centers, weights
}

// seedCenters — инициализация k-means++: последующие центры выбираются
// с вероятностью, пропорциональной квадрату расстояния до ближайшего центра.
func seedCenters(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)

	first := make([]float64, len(points[0]))
	copy(first, points[rng.Intn(len(points))])
	centers = append(centers, first)

	for len(centers) < k {
		dists := make([]float64, len(points))
		sum := 0.0
		for i, p := range points {
			best := math.MaxFloat64
			for _, c := range centers {
				if d := distSq(p, c); d < best {
					best = d
				}
			}
			dists[i] = best
			sum += best
		}

		idx := 0
		if sum > 0 {
			target := rng.Float64() * sum
			for i, d := range dists {
				target -= d
				if target <= 0 {
					idx = i
					break
				}
			}
		} else {
			idx = rng.Intn(len(points))
		}

		next := make([]float64, len(points[idx]))
		copy(next, points[idx])
		centers = append(centers, next)
	}

	return centers
}

func distSq(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func colorDist(a, b domain.DominantColor) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}
