// Package anime fetches random anime quotes and tagged waifu images.
package anime

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"

	"hearth-bot/internal/httpapi"

	"go.uber.org/zap"
)

var (
	ErrNoQuote    = errors.New("no anime quote available right now")
	ErrNoImage    = errors.New("no waifu image found for that tag")
	ErrMissingTag = errors.New("a tag is required")
)

const waifuLimit = 20

type Endpoints struct {
	Animechan string
	Waifu     string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Animechan: "https://api.animechan.io",
		Waifu:     "https://api.waifu.im",
	}
}

type Service struct {
	http      *httpapi.Client
	endpoints Endpoints
	logger    *zap.Logger
	pick      func(n int) int
}

func New(client *httpapi.Client, endpoints Endpoints, logger *zap.Logger) *Service {
	return &Service{http: client, endpoints: endpoints, logger: logger, pick: rand.IntN}
}

type quoteResponse struct {
	Status string `json:"status"`
	Data   struct {
		Content string `json:"content"`
		Anime   struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			AltName string `json:"altName"`
		} `json:"anime"`
		Character struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"character"`
	} `json:"data"`
}

// Quote is one line from a show.
type Quote struct {
	Content   string
	Character string
	Anime     string
}

func (q Quote) String() string {
	return fmt.Sprintf("\"%s\" - %s", q.Content, q.Character)
}

// RandomQuote returns ErrNoQuote when the API is down or sends an incomplete quote.
func (s *Service) RandomQuote(ctx context.Context) (Quote, error) {
	endpoint := strings.TrimRight(s.endpoints.Animechan, "/") + "/v1/quotes/random"
	resp, err := httpapi.GetJSON[quoteResponse](ctx, s.http, "animechan", endpoint)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrNoQuote, err)
	}
	quote := Quote{
		Content:   strings.TrimSpace(resp.Data.Content),
		Character: strings.TrimSpace(resp.Data.Character.Name),
		Anime:     strings.TrimSpace(resp.Data.Anime.Name),
	}
	if quote.Content == "" || quote.Character == "" {
		s.logger.Warn("anime quote incomplete", zap.String("status", resp.Status))
		return Quote{}, ErrNoQuote
	}
	return quote, nil
}

type waifuResponse struct {
	Images []struct {
		URL    string `json:"url"`
		Source string `json:"source"`
	} `json:"images"`
}

// RandomWaifu picks one image among the first results for tag.
func (s *Service) RandomWaifu(ctx context.Context, tag string) (string, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return "", ErrMissingTag
	}
	query := url.Values{}
	query.Set("included_tags", tag)
	query.Set("limit", fmt.Sprint(waifuLimit))
	endpoint := strings.TrimRight(s.endpoints.Waifu, "/") + "/search?" + query.Encode()

	resp, err := httpapi.GetJSON[waifuResponse](ctx, s.http, "waifu", endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoImage, err)
	}
	var urls []string
	for _, image := range resp.Images {
		if image.URL != "" {
			urls = append(urls, image.URL)
		}
	}
	if len(urls) == 0 {
		return "", ErrNoImage
	}
	return urls[s.pick(len(urls))], nil
}
