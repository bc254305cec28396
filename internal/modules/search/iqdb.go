package search

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"hearth-bot/internal/httpapi"

	"github.com/bwmarrin/discordgo"
)

const iqdbMaxMatches = 5

type iqdbMatch struct {
	PostID int     `json:"post_id"`
	Score  float64 `json:"score"`
	Post   struct {
		ID              int    `json:"id"`
		TagStringArtist string `json:"tag_string_artist"`
		Source          string `json:"source"`
		LargeFileURL    string `json:"large_file_url"`
		FileURL         string `json:"file_url"`
		PreviewFileURL  string `json:"preview_file_url"`
	} `json:"post"`
}

// IQDB searches Danbooru's IQDB index. note, when set, leads the description.
func (s *Service) IQDB(ctx context.Context, imageURL, note string) (Result, error) {
	base := strings.TrimRight(s.endpoints.Danbooru, "/")
	query := url.Values{}
	query.Set("search[url]", imageURL)
	creds := s.creds()
	if creds.DanbooruLogin != "" && creds.DanbooruAPIKey != "" {
		query.Set("login", creds.DanbooruLogin)
		query.Set("api_key", creds.DanbooruAPIKey)
	}

	matches, err := httpapi.GetJSON[[]iqdbMatch](ctx, s.http, "danbooru-iqdb", base+"/iqdb_queries.json?"+query.Encode())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(matches) == 0 {
		return Result{}, ErrNoResults
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > iqdbMaxMatches {
		matches = matches[:iqdbMaxMatches]
	}
	top := matches[0]

	var b strings.Builder
	if note != "" {
		b.WriteString(note + "\n\n")
	}
	if top.Post.TagStringArtist != "" {
		fmt.Fprintf(&b, "**Artist tags:** %s\n", truncate(top.Post.TagStringArtist, 120))
	}
	if top.Post.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s\n", truncate(top.Post.Source, 200))
	}
	b.WriteString("**Top matches:**\n")
	for _, match := range matches {
		fmt.Fprintf(&b, "- %.1f%% %s\n", match.Score, postURL(base, match))
	}

	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Danbooru IQDB - %.1f%%", top.Score),
		URL:         postURL(base, top),
		Description: strings.TrimSpace(b.String()),
		Color:       colorDarkOrange,
		Timestamp:   timestamp(),
		Footer:      &discordgo.MessageEmbedFooter{Text: "Danbooru IQDB"},
	}
	if image := firstNonEmpty(top.Post.LargeFileURL, top.Post.FileURL, top.Post.PreviewFileURL); image != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: absolute(base, image)}
	}
	return Result{Embed: embed}, nil
}

func postURL(base string, match iqdbMatch) string {
	id := match.Post.ID
	if id == 0 {
		id = match.PostID
	}
	return fmt.Sprintf("%s/posts/%d", base, id)
}

func absolute(base, link string) string {
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if strings.HasPrefix(link, "//") {
		return "https:" + link
	}
	return base + "/" + strings.TrimLeft(link, "/")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
