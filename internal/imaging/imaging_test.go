package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hearth-bot/internal/httpapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill(img, img.Bounds(), c)
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeFormats(t *testing.T) {
	img, format, err := Decode(pngBytes(t, solid(4, 3, color.White)))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())

	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, solid(2, 2, color.Black), nil))
	_, format, err = Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "gif", format)

	_, _, err = Decode([]byte("not an image"))
	require.Error(t, err)
}

func TestDecodeRejectsOversized(t *testing.T) {
	_, _, err := Decode(pngBytes(t, image.NewGray(image.Rect(0, 0, maxDimension+1, 1))))
	require.ErrorIs(t, err, ErrTooLarge)
}

func newImageServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	red := pngBytes(t, solid(32, 32, color.RGBA{R: 200, A: 255}))
	mux := http.NewServeMux()
	mux.HandleFunc("/red.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(red)
	})
	mux.HandleFunc("/broken.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("oops"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &hits
}

func newFetcher() *Fetcher {
	return NewFetcher(httpapi.New(2*time.Second, zap.NewNop()), 8, time.Minute, zap.NewNop())
}

func TestFetcherCaches(t *testing.T) {
	server, hits := newImageServer(t)
	fetcher := newFetcher()

	for i := 0; i < 3; i++ {
		img, err := fetcher.Fetch(context.Background(), server.URL+"/red.png")
		require.NoError(t, err)
		assert.Equal(t, 32, img.Bounds().Dx())
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err := fetcher.Fetch(context.Background(), " ")
	require.ErrorIs(t, err, ErrNoURL)
	_, err = fetcher.Fetch(context.Background(), server.URL+"/broken.png")
	require.Error(t, err)
}

func TestPalette(t *testing.T) {
	img := solid(40, 40, color.RGBA{R: 10, G: 120, B: 200, A: 255})
	fill(img, image.Rect(0, 0, 40, 10), color.RGBA{R: 250, G: 20, B: 20, A: 255})

	colors := Palette(img, 9)
	require.Len(t, colors, 2)
	assert.Equal(t, 0x0A78C8, colors[0])
	assert.Equal(t, 0xFA1414, colors[1])

	assert.Empty(t, Palette(solid(8, 8, color.White), 9))
	assert.Empty(t, Palette(image.NewRGBA(image.Rect(0, 0, 8, 8)), 9))
}

func TestAccentColor(t *testing.T) {
	server, _ := newImageServer(t)
	fetcher := newFetcher()

	assert.Equal(t, 0xC80000, fetcher.AccentColor(context.Background(), server.URL+"/red.png"))
	assert.Equal(t, DefaultColor, fetcher.AccentColor(context.Background(), server.URL+"/broken.png"))
	assert.Equal(t, DefaultColor, fetcher.AccentColor(context.Background(), ""))
}

func TestRandomEmbedColor(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Contains(t, EmbedColors, RandomEmbedColor())
	}
}

func TestCoverCrop(t *testing.T) {
	assert.Equal(t, image.Rect(50, 0, 150, 100), coverCrop(image.Rect(0, 0, 200, 100), 100, 100))
	assert.Equal(t, image.Rect(0, 25, 100, 75), coverCrop(image.Rect(0, 0, 100, 100), 200, 100))
}

func TestFitFaceTrims(t *testing.T) {
	fonts, err := loadFonts()
	require.NoError(t, err)

	face, text, size, err := fitFace(fonts.bold, "short", 400, 36, 18)
	require.NoError(t, err)
	assert.Equal(t, "short", text)
	assert.Equal(t, 36.0, size)
	_ = face.Close()

	long := "an extremely long member name that will never fit in the panel"
	face, text, size, err = fitFace(fonts.bold, long, 200, 36, 18)
	require.NoError(t, err)
	defer face.Close()
	assert.Equal(t, 18.0, size)
	assert.NotEqual(t, long, text)
	assert.LessOrEqual(t, measure(face, text), 200)
	assert.Contains(t, text, ellipsis)
}

func TestRenderBannerLayout(t *testing.T) {
	avatarColor := color.RGBA{G: 200, A: 255}
	ring := color.RGBA{R: 255, B: 255, A: 255}
	canvas, err := renderBanner(nil, solid(64, 64, avatarColor), "Welcome, alice!", "Welcome to the server.", ring)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, BannerWidth, BannerHeight), canvas.Bounds())

	layout := newBannerLayout(BannerWidth, BannerHeight)
	center := layout.avatar.Add(image.Pt(layout.avatarSize/2, layout.avatarSize/2))
	assert.Equal(t, avatarColor, canvas.RGBAAt(center.X, center.Y))

	ringPoint := image.Pt(center.X, layout.avatar.Y-layout.ring/2-1)
	assert.Equal(t, ring, canvas.RGBAAt(ringPoint.X, ringPoint.Y))
}

func TestWelcomeBannerAndCard(t *testing.T) {
	server, _ := newImageServer(t)
	renderer := NewRenderer(newFetcher(), server.URL+"/red.png", zap.NewNop())

	data, err := renderer.WelcomeBanner(context.Background(), Banner{
		Background: server.URL + "/broken.png",
		AvatarURL:  server.URL + "/red.png",
		Headline:   "Welcome, alice!",
		Subtext:    "Welcome to the server.",
	})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, BannerWidth, img.Bounds().Dx())

	data, err = renderer.ProfileCard(context.Background(), Card{
		AvatarURL: server.URL + "/red.png",
		Username:  "alice",
		Level:     3,
		XP:        120,
		Need:      400,
		Progress:  0.3,
		AboutMe:   "hello",
	})
	require.NoError(t, err)
	img, err = png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, CardHeight, img.Bounds().Dy())

	_, err = renderer.WelcomeBanner(context.Background(), Banner{AvatarURL: server.URL + "/broken.png"})
	require.Error(t, err)
}
