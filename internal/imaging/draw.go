package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const ellipsis = "…"

type fontSet struct {
	bold    *opentype.Font
	regular *opentype.Font
}

var loadFonts = sync.OnceValues(func() (fontSet, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return fontSet{}, err
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fontSet{}, err
	}
	return fontSet{bold: bold, regular: regular}, nil
})

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
}

// fitFace shrinks the font one point at a time until text fits maxWidth.
// At minSize the text is trimmed with an ellipsis instead.
func fitFace(f *opentype.Font, text string, maxWidth int, maxSize, minSize float64) (font.Face, string, float64, error) {
	for size := maxSize; ; size-- {
		face, err := newFace(f, size)
		if err != nil {
			return nil, "", 0, err
		}
		if font.MeasureString(face, text).Ceil() <= maxWidth {
			return face, text, size, nil
		}
		if size-1 < minSize {
			return face, trimToFit(face, text, maxWidth), size, nil
		}
		_ = face.Close()
	}
}

func trimToFit(face font.Face, text string, maxWidth int) string {
	runes := []rune(text)
	for i := len(runes) - 1; i > 0; i-- {
		candidate := string(runes[:i]) + ellipsis
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			return candidate
		}
	}
	return ellipsis
}

func drawText(dst draw.Image, face font.Face, text string, x, baseline int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(baseline)},
	}
	d.DrawString(text)
}

func drawCentered(dst draw.Image, face font.Face, text string, centerX, baseline int, c color.Color) {
	width := font.MeasureString(face, text).Ceil()
	drawText(dst, face, text, centerX-width/2, baseline, c)
}

// drawCover scales src to fill rect, cropping the overflow around the centre.
func drawCover(dst draw.Image, rect image.Rectangle, src image.Image) {
	draw.ApproxBiLinear.Scale(dst, rect, src, coverCrop(src.Bounds(), rect.Dx(), rect.Dy()), draw.Src, nil)
}

func coverCrop(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if w <= 0 || h <= 0 || sw <= 0 || sh <= 0 {
		return src
	}
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := src.Min.X + (sw-cw)/2
		return image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	}
	ch := sw * h / w
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
}

func fill(dst draw.Image, rect image.Rectangle, c color.Color) {
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

func fillRounded(dst draw.Image, rect image.Rectangle, radius int, c color.Color) {
	draw.DrawMask(dst, rect, image.NewUniform(c), image.Point{}, roundedMask{rect: rect, radius: radius}, rect.Min, draw.Over)
}

// drawAvatar paints avatar as a circle of the given size at topLeft inside a ring.
func drawAvatar(dst draw.Image, avatar image.Image, topLeft image.Point, size, ring int, ringColor color.Color) {
	outer := image.Rect(topLeft.X-ring, topLeft.Y-ring, topLeft.X+size+ring, topLeft.Y+size+ring)
	draw.DrawMask(dst, outer, image.NewUniform(ringColor), image.Point{}, circleMask{rect: outer}, outer.Min, draw.Over)

	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), avatar, coverCrop(avatar.Bounds(), size, size), draw.Src, nil)
	inner := image.Rect(topLeft.X, topLeft.Y, topLeft.X+size, topLeft.Y+size)
	draw.DrawMask(dst, inner, scaled, image.Point{}, circleMask{rect: inner}, inner.Min, draw.Over)
}

type circleMask struct {
	rect image.Rectangle
}

func (m circleMask) ColorModel() color.Model { return color.AlphaModel }

func (m circleMask) Bounds() image.Rectangle { return m.rect }

func (m circleMask) At(x, y int) color.Color {
	radius := float64(m.rect.Dx()) / 2
	cx := float64(m.rect.Min.X) + radius
	cy := float64(m.rect.Min.Y) + float64(m.rect.Dy())/2
	d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
	switch {
	case d <= radius-1:
		return color.Alpha{A: 0xff}
	case d >= radius:
		return color.Alpha{}
	default:
		return color.Alpha{A: uint8((radius - d) * 0xff)}
	}
}

type roundedMask struct {
	rect   image.Rectangle
	radius int
}

func (m roundedMask) ColorModel() color.Model { return color.AlphaModel }

func (m roundedMask) Bounds() image.Rectangle { return m.rect }

func (m roundedMask) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}).In(m.rect) {
		return color.Alpha{}
	}
	r := m.radius
	cx, cy := x, y
	switch {
	case x < m.rect.Min.X+r:
		cx = m.rect.Min.X + r
	case x >= m.rect.Max.X-r:
		cx = m.rect.Max.X - r - 1
	}
	switch {
	case y < m.rect.Min.Y+r:
		cy = m.rect.Min.Y + r
	case y >= m.rect.Max.Y-r:
		cy = m.rect.Max.Y - r - 1
	}
	dx, dy := float64(x-cx), float64(y-cy)
	if dx*dx+dy*dy > float64(r*r) {
		return color.Alpha{}
	}
	return color.Alpha{A: 0xff}
}

func rgbColor(value int) color.RGBA {
	return color.RGBA{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value), A: 0xff}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func measure(face font.Face, text string) int {
	return font.MeasureString(face, text).Ceil()
}
