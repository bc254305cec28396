// Package httpapi wraps outbound HTTP calls to third-party APIs with logging
// that never leaks credentials.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrEmptyBody        = errors.New("empty response body")
)

const (
	maxBodyExcerpt = 400
	maxLoggedQuery = 12
	maxBodyBytes   = 16 << 20
	userAgent      = "hearth-bot/1.0"
)

var sensitiveParams = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"token":         {},
	"key":           {},
	"authorization": {},
	"password":      {},
	"login":         {},
	"search[url]":   {},
}

// Observer receives one call per finished request.
type Observer func(source string, status int, elapsed time.Duration)

type Client struct {
	http     *http.Client
	logger   *zap.Logger
	observer Observer
}

func New(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (c *Client) WithObserver(observer Observer) {
	c.observer = observer
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(client *http.Client) {
	c.http = client
}

// Response is a fetched body plus its declared content type.
type Response struct {
	Body        []byte
	ContentType string
}

// GetJSON fetches rawURL and decodes the body into T.
func GetJSON[T any](ctx context.Context, c *Client, source, rawURL string) (T, error) {
	var out T
	resp, err := c.do(ctx, source, http.MethodGet, rawURL, nil)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		c.logger.Warn("api decode failed", zap.String("source", source), zap.String("url", SanitizeURL(rawURL)), zap.Error(err))
		return out, fmt.Errorf("%s: decode: %w", source, err)
	}
	return out, nil
}

func (c *Client) GetBytes(ctx context.Context, source, rawURL string) (Response, error) {
	return c.do(ctx, source, http.MethodGet, rawURL, nil)
}

func (c *Client) PostJSON(ctx context.Context, source, rawURL string, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("%s: encode: %w", source, err)
	}
	return c.do(ctx, source, http.MethodPost, rawURL, body)
}

func (c *Client) do(ctx context.Context, source, method, rawURL string, body []byte) (Response, error) {
	safeURL := SanitizeURL(rawURL)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return Response{}, fmt.Errorf("%s: build request: %w", source, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(source, 0, time.Since(start))
		if ctx.Err() != nil {
			c.logger.Warn("api request cancelled", zap.String("source", source), zap.String("url", safeURL))
		} else {
			c.logger.Warn("api request failed", zap.String("source", source), zap.String("url", safeURL), zap.Error(err))
		}
		return Response{}, fmt.Errorf("%s: %w", source, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(source, resp.StatusCode, time.Since(start))
	if err != nil {
		c.logger.Warn("api read failed", zap.String("source", source), zap.String("url", safeURL), zap.Error(err))
		return Response{}, fmt.Errorf("%s: read body: %w", source, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("api returned non-success status",
			zap.String("source", source),
			zap.Int("status", resp.StatusCode),
			zap.String("url", safeURL),
			zap.String("body", excerpt(data)))
		return Response{}, fmt.Errorf("%s: %w %d", source, ErrUnexpectedStatus, resp.StatusCode)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		c.logger.Warn("api returned empty body", zap.String("source", source), zap.String("url", safeURL))
		return Response{}, fmt.Errorf("%s: %w", source, ErrEmptyBody)
	}

	return Response{Body: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (c *Client) observe(source string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(source, status, elapsed)
	}
}

// SanitizeURL redacts credential-like query values and caps the number of
// parameters kept, for logging only.
func SanitizeURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	parsed.User = nil
	parsed.Fragment = ""

	query := parsed.Query()
	if len(query) == 0 {
		return parsed.String()
	}

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, maxLoggedQuery+1)
	for i, key := range keys {
		if i == maxLoggedQuery {
			parts = append(parts, "...")
			break
		}
		value := query.Get(key)
		if _, ok := sensitiveParams[strings.ToLower(key)]; ok {
			value = "REDACTED"
		}
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
	}
	parsed.RawQuery = ""
	return parsed.String() + "?" + strings.Join(parts, "&")
}

func excerpt(data []byte) string {
	text := strings.TrimSpace(string(data))
	runes := []rune(text)
	if len(runes) <= maxBodyExcerpt {
		return text
	}
	return string(runes[:maxBodyExcerpt]) + "..."
}
