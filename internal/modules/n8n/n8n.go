// Package n8n forwards anime tracking requests to an n8n workflow webhook.
package n8n

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"hearth-bot/internal/httpapi"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("n8n webhook is not configured")

type trackRequest struct {
	RequestID     string `json:"requestId"`
	ID            string `json:"id"`
	LatestEpisode int    `json:"latestEpisode"`
	DeleteRow     bool   `json:"deleteRow"`
	ChannelID     string `json:"channelID"`
}

type actionRequest struct {
	RequestID string `json:"requestId"`
	Action    string `json:"action"`
	ChannelID string `json:"channelID"`
}

type Client struct {
	http       *httpapi.Client
	webhookURL func() string
	logger     *zap.Logger
}

// New builds a client. webhookURL is read per call so a settings reload applies.
func New(client *httpapi.Client, webhookURL func() string, logger *zap.Logger) *Client {
	return &Client{http: client, webhookURL: webhookURL, logger: logger}
}

// TrackAnime starts tracking id in channelID, or stops it when untrack is set.
func (c *Client) TrackAnime(ctx context.Context, id, channelID string, untrack bool) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("anime id is required")
	}
	return c.send(ctx, trackRequest{
		RequestID:     uuid.NewString(),
		ID:            id,
		LatestEpisode: 0,
		DeleteRow:     untrack,
		ChannelID:     channelID,
	})
}

// SendAction triggers a named workflow action such as "list".
func (c *Client) SendAction(ctx context.Context, action, channelID string) (string, error) {
	return c.send(ctx, actionRequest{
		RequestID: uuid.NewString(),
		Action:    action,
		ChannelID: channelID,
	})
}

func (c *Client) send(ctx context.Context, payload any) (string, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		c.logger.Error("n8n webhook unavailable", zap.Error(err))
		return "", err
	}
	resp, err := c.http.PostJSON(ctx, "n8n", endpoint, payload)
	if err != nil {
		if errors.Is(err, httpapi.ErrEmptyBody) {
			return "", nil
		}
		return "", fmt.Errorf("n8n webhook: %w", err)
	}
	return strings.TrimSpace(string(resp.Body)), nil
}

func (c *Client) endpoint() (string, error) {
	raw := strings.TrimSpace(c.webhookURL())
	if raw == "" {
		return "", ErrNotConfigured
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", fmt.Errorf("%w: invalid url", ErrNotConfigured)
	}
	return parsed.String(), nil
}
