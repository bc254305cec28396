// Package imaging fetches remote images and renders welcome banners and profile cards.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"hearth-bot/internal/httpapi"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

var (
	ErrNoURL    = errors.New("imaging: no image url")
	ErrTooLarge = errors.New("imaging: image too large")
)

const maxDimension = 4096

// Fetcher downloads and decodes images, keeping recent ones in memory.
type Fetcher struct {
	http   *httpapi.Client
	cache  *expirable.LRU[string, image.Image]
	logger *zap.Logger
}

func NewFetcher(client *httpapi.Client, size int, ttl time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		http:   client,
		cache:  expirable.NewLRU[string, image.Image](size, nil, ttl),
		logger: logger,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, ErrNoURL
	}
	if img, ok := f.cache.Get(rawURL); ok {
		return img, nil
	}

	resp, err := f.http.GetBytes(ctx, "images", rawURL)
	if err != nil {
		return nil, err
	}
	img, format, err := Decode(resp.Body)
	if err != nil {
		f.logger.Warn("image decode failed", zap.String("url", httpapi.SanitizeURL(rawURL)), zap.Error(err))
		return nil, err
	}
	f.logger.Debug("image fetched", zap.String("format", format), zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))
	f.cache.Add(rawURL, img)
	return img, nil
}

// Decode reads png, jpeg, gif or webp data, refusing oversized images before
// allocating pixels.
func Decode(data []byte) (image.Image, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: %w", err)
	}
	if cfg.Width > maxDimension || cfg.Height > maxDimension {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging: %w", err)
	}
	return img, format, nil
}
