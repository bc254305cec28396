// Package search runs reverse image lookups and renders them as embeds.
package search

import (
	"errors"
	"path"
	"strings"
	"time"

	"hearth-bot/internal/httpapi"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrNoResults    = errors.New("no results found")
	ErrRateLimited  = errors.New("search quota exhausted, try again later")
	ErrUnavailable  = errors.New("search service unavailable")
	ErrNotAnImage   = errors.New("attachment is not an image")
	ErrMissingImage = errors.New("provide an image attachment or url")
)

const (
	colorDarkRed    = 0x992D22
	colorDarkOrange = 0xA84300
	colorTrace      = 0x5865F2
)

type Endpoints struct {
	SauceNAO string
	TraceMoe string
	Danbooru string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		SauceNAO: "https://saucenao.com",
		TraceMoe: "https://api.trace.moe",
		Danbooru: "https://danbooru.donmai.us",
	}
}

type Credentials struct {
	SauceNAOKey    string
	DanbooruLogin  string
	DanbooruAPIKey string
}

// Result is a ready-to-send reply.
type Result struct {
	Embed *discordgo.MessageEmbed
	Files []*discordgo.File
}

type Service struct {
	http      *httpapi.Client
	endpoints Endpoints
	creds     func() Credentials
	logger    *zap.Logger
}

// New builds the service. creds is read on every call so reloaded keys apply.
func New(client *httpapi.Client, endpoints Endpoints, creds func() Credentials, logger *zap.Logger) *Service {
	return &Service{http: client, endpoints: endpoints, creds: creds, logger: logger}
}

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
}

// IsImage accepts an image/* content type or a known image extension.
func IsImage(contentType, name string) bool {
	if strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return true
	}
	clean := name
	if idx := strings.IndexAny(clean, "?#"); idx >= 0 {
		clean = clean[:idx]
	}
	_, ok := imageExtensions[strings.ToLower(path.Ext(clean))]
	return ok
}

func truncate(text string, max int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-3]) + "..."
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
