package imaging

import (
	"context"
	"fmt"
	"image"
	"image/color"
)

const (
	CardWidth  = 1000
	CardHeight = 400
)

var (
	trackColor = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 60}
	mutedColor = color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
)

// Card is the data shown on a profile card.
type Card struct {
	Background string
	AvatarURL  string
	Username   string
	Level      int
	XP         int
	Need       int
	Progress   float64
	AboutMe    string
}

// ProfileCard renders a member's profile as a PNG.
func (r *Renderer) ProfileCard(ctx context.Context, c Card) ([]byte, error) {
	background := r.background(ctx, c.Background)
	avatar, err := r.fetcher.Fetch(ctx, c.AvatarURL)
	if err != nil {
		return nil, fmt.Errorf("fetch avatar: %w", err)
	}
	accent := rgbColor(r.fetcher.AccentColor(ctx, c.AvatarURL))

	canvas, err := renderCard(background, avatar, c, accent)
	if err != nil {
		return nil, err
	}
	return encodePNG(canvas)
}

func renderCard(background, avatar image.Image, c Card, accent color.RGBA) (*image.RGBA, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	canvas := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	if background != nil {
		drawCover(canvas, canvas.Bounds(), background)
	} else {
		fill(canvas, canvas.Bounds(), backdropColor)
	}
	fill(canvas, canvas.Bounds(), shadeColor)

	panel := image.Rect(30, 30, CardWidth-30, CardHeight-30)
	fillRounded(canvas, panel, 20, panelColor)

	const avatarSize, ring = 180, 6
	avatarAt := image.Pt(panel.Min.X+40, panel.Min.Y+(panel.Dy()-avatarSize)/2)
	drawAvatar(canvas, avatar, avatarAt, avatarSize, ring, accent)

	textLeft := avatarAt.X + avatarSize + ring + 40
	textWidth := panel.Max.X - 40 - textLeft

	nameFace, name, _, err := fitFace(fonts.bold, c.Username, textWidth, 44, 24)
	if err != nil {
		return nil, err
	}
	defer nameFace.Close()
	infoFace, err := newFace(fonts.regular, 24)
	if err != nil {
		return nil, err
	}
	defer infoFace.Close()
	aboutFace, err := newFace(fonts.regular, 20)
	if err != nil {
		return nil, err
	}
	defer aboutFace.Close()

	y := panel.Min.Y + 70
	drawText(canvas, nameFace, name, textLeft, y, textColor)
	y += 44
	drawText(canvas, infoFace, fmt.Sprintf("Level %d", c.Level), textLeft, y, textColor)
	xpLabel := fmt.Sprintf("%d / %d XP", c.XP, c.Need)
	drawText(canvas, infoFace, xpLabel, panel.Max.X-40-measure(infoFace, xpLabel), y, mutedColor)

	y += 20
	bar := image.Rect(textLeft, y, textLeft+textWidth, y+26)
	fillRounded(canvas, bar, bar.Dy()/2, trackColor)
	if filled := int(float64(bar.Dx()) * clamp01(c.Progress)); filled > 0 {
		fillRounded(canvas, image.Rect(bar.Min.X, bar.Min.Y, bar.Min.X+max(filled, bar.Dy()), bar.Max.Y), bar.Dy()/2, accent)
	}

	y = bar.Max.Y + 50
	drawText(canvas, aboutFace, trimToFit(aboutFace, c.AboutMe, textWidth), textLeft, y, mutedColor)
	return canvas, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
