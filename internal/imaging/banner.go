package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"go.uber.org/zap"
)

const (
	BannerWidth  = 1100
	BannerHeight = 450
)

var (
	backdropColor = color.RGBA{R: 0x2b, G: 0x2d, B: 0x31, A: 0xff}
	shadeColor    = color.NRGBA{A: 90}
	panelColor    = color.NRGBA{A: 120}
	textColor     = color.White
)

// Renderer composes banners and cards from remote images.
type Renderer struct {
	fetcher           *Fetcher
	defaultBackground string
	logger            *zap.Logger
}

func NewRenderer(fetcher *Fetcher, defaultBackground string, logger *zap.Logger) *Renderer {
	return &Renderer{fetcher: fetcher, defaultBackground: defaultBackground, logger: logger}
}

type Banner struct {
	Background string
	AvatarURL  string
	Headline   string
	Subtext    string
}

// bannerLayout places the centred panel, avatar and text block.
type bannerLayout struct {
	panel       image.Rectangle
	radius      int
	avatar      image.Point
	avatarSize  int
	ring        int
	text        image.Rectangle
	headlineMax float64
	headlineMin float64
	subtextMin  float64
}

func newBannerLayout(width, height int) bannerLayout {
	scale := math.Min(float64(width)/BannerWidth, float64(height)/BannerHeight)
	panelW := float64(width) * 0.70
	panelH := float64(height) * 0.55
	panelX := (float64(width) - panelW) / 2
	panelY := (float64(height) - panelH) / 2

	avatarSize := int(math.Round(panelH * 0.40))
	avatarX := panelX + (panelW-float64(avatarSize))/2
	avatarY := panelY + panelH*0.12
	textY := avatarY + float64(avatarSize) + panelH*0.08
	padding := panelW * 0.08

	return bannerLayout{
		panel:       image.Rect(int(panelX), int(panelY), int(panelX+panelW), int(panelY+panelH)),
		radius:      int(22 * scale),
		avatar:      image.Pt(int(avatarX), int(avatarY)),
		avatarSize:  avatarSize,
		ring:        int(math.Max(3, 6*scale)),
		text:        image.Rect(int(panelX+padding), int(textY), int(panelX+panelW-padding), int(panelY+panelH-panelH*0.08)),
		headlineMax: 36 * scale,
		headlineMin: 18 * scale,
		subtextMin:  12 * scale,
	}
}

// WelcomeBanner renders a PNG greeting for a new member.
func (r *Renderer) WelcomeBanner(ctx context.Context, b Banner) ([]byte, error) {
	background := r.background(ctx, b.Background)
	avatar, err := r.fetcher.Fetch(ctx, b.AvatarURL)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar: %w", err)
	}
	ring := rgbColor(r.fetcher.AccentColor(ctx, b.AvatarURL))

	canvas, err := renderBanner(background, avatar, b.Headline, b.Subtext, ring)
	if err != nil {
		return nil, err
	}
	return encodePNG(canvas)
}

// background falls back to the default banner and then to a flat fill.
func (r *Renderer) background(ctx context.Context, rawURL string) image.Image {
	for _, candidate := range []string{rawURL, r.defaultBackground} {
		if candidate == "" {
			continue
		}
		img, err := r.fetcher.Fetch(ctx, candidate)
		if err == nil {
			return img
		}
		r.logger.Warn("background unavailable", zap.Error(err))
	}
	return nil
}

func renderBanner(background, avatar image.Image, headline, subtext string, ring color.Color) (*image.RGBA, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, BannerWidth, BannerHeight))
	layout := newBannerLayout(BannerWidth, BannerHeight)

	if background != nil {
		drawCover(canvas, canvas.Bounds(), background)
	} else {
		fill(canvas, canvas.Bounds(), backdropColor)
	}
	fill(canvas, canvas.Bounds(), shadeColor)
	fillRounded(canvas, layout.panel, layout.radius, panelColor)
	drawAvatar(canvas, avatar, layout.avatar, layout.avatarSize, layout.ring, ring)

	headFace, headline, headSize, err := fitFace(fonts.bold, headline, layout.text.Dx(), layout.headlineMax, layout.headlineMin)
	if err != nil {
		return nil, err
	}
	defer headFace.Close()
	subFace, err := newFace(fonts.regular, math.Max(layout.subtextMin, headSize*0.60))
	if err != nil {
		return nil, err
	}
	defer subFace.Close()
	subtext = trimToFit(subFace, subtext, layout.text.Dx())

	headHeight := headFace.Metrics().Height.Ceil()
	subHeight := subFace.Metrics().Height.Ceil()
	const gap = 6
	top := layout.text.Min.Y + (layout.text.Dy()-(headHeight+gap+subHeight))/2
	centerX := layout.text.Min.X + layout.text.Dx()/2

	drawCentered(canvas, headFace, headline, centerX, top+headFace.Metrics().Ascent.Ceil(), textColor)
	drawCentered(canvas, subFace, subtext, centerX, top+headHeight+gap+subFace.Metrics().Ascent.Ceil(), textColor)
	return canvas, nil
}
