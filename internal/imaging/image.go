// Package imaging содержит обработку изображений для визуального поиска:
// получение и декодирование, выделение переднего плана и извлечение доминирующих цветов.
package imaging

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/jimlawless/whereami"
)

// Image — каноничное трёхканальное RGB-изображение в памяти.
// Pix хранит пиксели построчно, по 3 байта на пиксель.
type Image struct {
	W, H int
	Pix  []uint8
}

func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]uint8, w*h*3)}
}

// Decode декодирует jpeg/png/gif и нормализует результат к RGB.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageUndecodable)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageUndecodable)
	}

	return fromStdImage(src), nil
}

func fromStdImage(src image.Image) *Image {
	b := src.Bounds()
	img := NewImage(b.Dx(), b.Dy())

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			img.Pix[i] = uint8(r >> 8)
			img.Pix[i+1] = uint8(g >> 8)
			img.Pix[i+2] = uint8(bl >> 8)
			i += 3
		}
	}

	return img
}

// At возвращает RGB-компоненты пикселя.
func (m *Image) At(x, y int) (r, g, b uint8) {
	i := (y*m.W + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set записывает RGB-компоненты пикселя.
func (m *Image) Set(x, y int, r, g, b uint8) {
	i := (y*m.W + x) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

// Crop возвращает копию прямоугольной области [x0,x1)x[y0,y1).
func (m *Image) Crop(x0, y0, x1, y1 int) *Image {
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > m.W {
		x1 = m.W
	}
	if y1 > m.H {
		y1 = m.H
	}

	out := NewImage(x1-x0, y1-y0)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			r, g, b := m.At(x, y)
			out.Set(x-x0, y-y0, r, g, b)
		}
	}

	return out
}

// Clone возвращает глубокую копию изображения.
func (m *Image) Clone() *Image {
	out := NewImage(m.W, m.H)
	copy(out.Pix, m.Pix)
	return out
}

// rgbToHSV переводит RGB в HSV в шкале OpenCV: h в [0,180), s и v в [0,255].
func rgbToHSV(r, g, b uint8) (h, s, v float64) {
	rf := float64(r) / 255.0
	gf := float64(g) / 255.0
	bf := float64(b) / 255.0

	maxC := math.Max(rf, math.Max(gf, bf))
	minC := math.Min(rf, math.Min(gf, bf))
	delta := maxC - minC

	v = maxC * 255.0
	if maxC > 0 {
		s = delta / maxC * 255.0
	}

	if delta == 0 {
		return 0, s, v
	}

	var deg float64
	switch maxC {
	case rf:
		deg = 60 * math.Mod((gf-bf)/delta, 6)
	case gf:
		deg = 60 * ((bf-rf)/delta + 2)
	default:
		deg = 60 * ((rf-gf)/delta + 4)
	}
	if deg < 0 {
		deg += 360
	}

	return deg / 2, s, v
}

// hsvToRGB — обратное преобразование из шкалы OpenCV.
func hsvToRGB(h, s, v float64) (uint8, uint8, uint8) {
	deg := h * 2
	sf := s / 255.0
	vf := v / 255.0

	c := vf * sf
	x := c * (1 - math.Abs(math.Mod(deg/60, 2)-1))
	m := vf - c

	var rf, gf, bf float64
	switch {
	case deg < 60:
		rf, gf, bf = c, x, 0
	case deg < 120:
		rf, gf, bf = x, c, 0
	case deg < 180:
		rf, gf, bf = 0, c, x
	case deg < 240:
		rf, gf, bf = 0, x, c
	case deg < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}

	return clampByte((rf + m) * 255), clampByte((gf + m) * 255), clampByte((bf + m) * 255)
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}
