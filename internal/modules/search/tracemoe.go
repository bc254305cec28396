package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"hearth-bot/internal/httpapi"

	"github.com/bwmarrin/discordgo"
)

type traceResponse struct {
	Error  string        `json:"error"`
	Result []traceResult `json:"result"`
}

type traceResult struct {
	AniList    int             `json:"anilist"`
	Filename   string          `json:"filename"`
	Episode    json.RawMessage `json:"episode"`
	From       float64         `json:"from"`
	To         float64         `json:"to"`
	Similarity float64         `json:"similarity"`
	Video      string          `json:"video"`
	Image      string          `json:"image"`
}

func (s *Service) TraceMoe(ctx context.Context, imageURL string) (Result, error) {
	endpoint := strings.TrimRight(s.endpoints.TraceMoe, "/") + "/search?url=" + url.QueryEscape(imageURL)
	resp, err := httpapi.GetJSON[traceResponse](ctx, s.http, "tracemoe", endpoint)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("%w: %s", ErrUnavailable, resp.Error)
	}
	if len(resp.Result) == 0 {
		return Result{}, ErrNoResults
	}

	top := resp.Result[0]
	var b strings.Builder
	fmt.Fprintf(&b, "**Anime ID:** %d\n", top.AniList)
	fmt.Fprintf(&b, "**Filename:** %s\n", top.Filename)
	fmt.Fprintf(&b, "**Episode:** %s\n", episode(top.Episode))
	fmt.Fprintf(&b, "**From:** %s **To:** %s\n", clock(top.From), clock(top.To))
	fmt.Fprintf(&b, "**Similarity:** %.2f%%", top.Similarity*100)

	embed := &discordgo.MessageEmbed{
		Title:       "Anime Search Result",
		URL:         fmt.Sprintf("https://anilist.co/anime/%d", top.AniList),
		Description: b.String(),
		Color:       colorTrace,
		Timestamp:   timestamp(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "trace.moe"},
	}
	if top.Image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: top.Image}
	}
	return Result{Embed: embed}, nil
}

// episode renders the episode field, which may be null, a number, a string or a list.
func episode(raw json.RawMessage) string {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return "N/A"
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return fmt.Sprintf("%g", number)
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single
	}
	var many []any
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		parts := make([]string, 0, len(many))
		for _, item := range many {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	}
	return "N/A"
}

// clock formats seconds as hh:mm:ss.
func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
