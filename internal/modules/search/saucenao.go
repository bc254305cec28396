package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"hearth-bot/internal/httpapi"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	sauceThumbName = "saucenao-thumb.jpg"
	sauceFavicon   = "https://saucenao.com/images/static/banner.gif"
	sauceMaxLinks  = 3
)

var sauceIndexes = []string{"5", "9", "12", "14", "16", "25", "26", "27", "37", "39", "41"}

type sauceResponse struct {
	Header struct {
		ShortLimit     string `json:"short_limit"`
		ShortRemaining int    `json:"short_remaining"`
		LongRemaining  int    `json:"long_remaining"`
		Status         int    `json:"status"`
		Message        string `json:"message"`
	} `json:"header"`
	Results []sauceResult `json:"results"`
}

type sauceResult struct {
	Header struct {
		Similarity string `json:"similarity"`
		Thumbnail  string `json:"thumbnail"`
		IndexName  string `json:"index_name"`
	} `json:"header"`
	Data struct {
		ExtURLs  []string        `json:"ext_urls"`
		Source   string          `json:"source"`
		Creator  json.RawMessage `json:"creator"`
		Artist   string          `json:"artist"`
		Author   string          `json:"author_name"`
		Member   string          `json:"member_name"`
		Title    string          `json:"title"`
		Danbooru int             `json:"danbooru_id"`
		Gelbooru int             `json:"gelbooru_id"`
	} `json:"data"`
}

// SauceNAO searches SauceNAO. Without an API key it answers from Danbooru IQDB instead.
func (s *Service) SauceNAO(ctx context.Context, imageURL string) (Result, error) {
	creds := s.creds()
	if creds.SauceNAOKey == "" {
		s.logger.Error("saucenao api key is not configured, using danbooru iqdb")
		return s.IQDB(ctx, imageURL, "SauceNAO is not configured, showing Danbooru IQDB matches instead.")
	}

	query := url.Values{}
	query.Set("api_key", creds.SauceNAOKey)
	query.Set("output_type", "2")
	query.Set("numres", "16")
	query.Set("url", imageURL)
	query["dbs[]"] = sauceIndexes
	endpoint := strings.TrimRight(s.endpoints.SauceNAO, "/") + "/search.php?" + query.Encode()

	resp, err := httpapi.GetJSON[sauceResponse](ctx, s.http, "saucenao", endpoint)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.Header.Status < 0 {
		s.logger.Warn("saucenao rejected the request", zap.Int("status", resp.Header.Status), zap.String("message", resp.Header.Message))
		return Result{}, ErrUnavailable
	}
	if len(resp.Results) == 0 {
		if resp.Header.ShortRemaining < 1 {
			return Result{}, ErrRateLimited
		}
		return Result{}, ErrNoResults
	}

	sort.SliceStable(resp.Results, func(i, j int) bool {
		return similarity(resp.Results[i].Header.Similarity) > similarity(resp.Results[j].Header.Similarity)
	})
	top := resp.Results[0]
	links := distinctLinks(resp.Results, sauceMaxLinks)

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Highest Result - %s | %s%%", sauceCreator(top), top.Header.Similarity),
		Description: strings.Join(links, "\n"),
		Color:       colorDarkRed,
		Timestamp:   timestamp(),
		Footer: &discordgo.MessageEmbedFooter{
			Text:    "SauceNao Search - Click title for most relevant result",
			IconURL: sauceFavicon,
		},
	}
	if len(links) > 0 {
		embed.URL = links[0]
	}
	if top.Data.Source != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Source", Value: truncate(top.Data.Source, 200)})
	}
	if len(links) == 0 {
		embed.Description = "No external links for this match."
	}

	result := Result{Embed: embed}
	if top.Header.Thumbnail != "" {
		thumb, err := s.http.GetBytes(ctx, "saucenao-thumb", top.Header.Thumbnail)
		if err == nil {
			embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + sauceThumbName}
			result.Files = []*discordgo.File{{Name: sauceThumbName, ContentType: "image/jpeg", Reader: bytes.NewReader(thumb.Body)}}
		} else {
			embed.Image = &discordgo.MessageEmbedImage{URL: top.Header.Thumbnail}
		}
	}
	return result, nil
}

func distinctLinks(results []sauceResult, limit int) []string {
	seen := make(map[string]struct{})
	var links []string
	for _, result := range results {
		for _, link := range result.Data.ExtURLs {
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
			if len(links) == limit {
				return links
			}
		}
	}
	return links
}

// sauceCreator picks the first populated creator-like field. Some indexes send
// creator as a list of names.
func sauceCreator(result sauceResult) string {
	if len(result.Data.Creator) > 0 {
		var single string
		if err := json.Unmarshal(result.Data.Creator, &single); err == nil && single != "" {
			return single
		}
		var many []string
		if err := json.Unmarshal(result.Data.Creator, &many); err == nil && len(many) > 0 {
			return strings.Join(many, ", ")
		}
	}
	for _, candidate := range []string{result.Data.Artist, result.Data.Author, result.Data.Member, result.Data.Title} {
		if candidate != "" {
			return candidate
		}
	}
	return "Unknown"
}

func similarity(raw string) float64 {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return value
}
