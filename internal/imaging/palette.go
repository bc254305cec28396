package imaging

import (
	"context"
	"image"
	"math/rand/v2"
	"sort"
)

// DefaultColor is used whenever an accent colour cannot be derived.
const DefaultColor = 0xE74C3C

// EmbedColors is the rotation used for embeds and the colour-cycle role.
var EmbedColors = []int{
	0xDC143C,
	0xC3E4E8,
	0xFF5733,
	0xE6E6FA,
	0x7289DA,
	0x5865F2,
	0xD2042D,
	0x8DB600,
	0x87CEEB,
}

const paletteSize = 9

func RandomEmbedColor() int {
	return EmbedColors[rand.IntN(len(EmbedColors))]
}

type bucket struct {
	count   int
	r, g, b int
}

// Palette returns up to n dominant colours of img as 0xRRGGBB, most common first.
// Transparent and near-white pixels are skipped.
func Palette(img image.Image, n int) []int {
	bounds := img.Bounds()
	if bounds.Empty() || n <= 0 {
		return nil
	}
	step := max(1, max(bounds.Dx(), bounds.Dy())/64)

	buckets := make(map[int]*bucket)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			r8, g8, b8 := int(r>>8), int(g>>8), int(b>>8)
			if r8 > 250 && g8 > 250 && b8 > 250 {
				continue
			}
			key := (r8>>4)<<8 | (g8>>4)<<4 | b8>>4
			entry := buckets[key]
			if entry == nil {
				entry = &bucket{}
				buckets[key] = entry
			}
			entry.count++
			entry.r += r8
			entry.g += g8
			entry.b += b8
		}
	}

	ranked := make([]*bucket, 0, len(buckets))
	for _, entry := range buckets {
		ranked = append(ranked, entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return rgb(ranked[i]) < rgb(ranked[j])
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	colors := make([]int, 0, len(ranked))
	for _, entry := range ranked {
		colors = append(colors, rgb(entry))
	}
	return colors
}

func rgb(b *bucket) int {
	return (b.r/b.count)<<16 | (b.g/b.count)<<8 | b.b/b.count
}

// AccentColor picks a random dominant colour of the image at rawURL.
func (f *Fetcher) AccentColor(ctx context.Context, rawURL string) int {
	img, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return DefaultColor
	}
	colors := Palette(img, paletteSize)
	if len(colors) == 0 {
		return DefaultColor
	}
	return colors[rand.IntN(len(colors))]
}
