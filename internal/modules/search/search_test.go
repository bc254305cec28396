package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hearth-bot/internal/httpapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAPIs struct {
	server     *httptest.Server
	sauce      string
	trace      string
	iqdb       string
	iqdbQuery  chan map[string][]string
	sauceQuery chan map[string][]string
}

func newFakeAPIs(t *testing.T) *fakeAPIs {
	t.Helper()
	f := &fakeAPIs{
		iqdbQuery:  make(chan map[string][]string, 4),
		sauceQuery: make(chan map[string][]string, 4),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/search.php", func(w http.ResponseWriter, r *http.Request) {
		f.sauceQuery <- r.URL.Query()
		_, _ = w.Write([]byte(f.sauce))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(f.trace))
	})
	mux.HandleFunc("/iqdb_queries.json", func(w http.ResponseWriter, r *http.Request) {
		f.iqdbQuery <- r.URL.Query()
		_, _ = w.Write([]byte(f.iqdb))
	})
	mux.HandleFunc("/thumb.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPIs) service(creds Credentials) *Service {
	endpoints := Endpoints{SauceNAO: f.server.URL, TraceMoe: f.server.URL, Danbooru: f.server.URL}
	return New(httpapi.New(time.Second, zap.NewNop()), endpoints, func() Credentials { return creds }, zap.NewNop())
}

func iqdbBody(t *testing.T) string {
	t.Helper()
	type post struct {
		ID              int    `json:"id"`
		TagStringArtist string `json:"tag_string_artist"`
		Source          string `json:"source"`
		PreviewFileURL  string `json:"preview_file_url"`
	}
	type match struct {
		PostID int     `json:"post_id"`
		Score  float64 `json:"score"`
		Post   post    `json:"post"`
	}
	var matches []match
	for i := 1; i <= 7; i++ {
		matches = append(matches, match{PostID: i, Score: float64(50 + i), Post: post{ID: i, TagStringArtist: "artist_" + fmt.Sprint(i), Source: "https://pixiv.net/" + fmt.Sprint(i), PreviewFileURL: "/data/preview.jpg"}})
	}
	data, err := json.Marshal(matches)
	require.NoError(t, err)
	return string(data)
}

func TestSauceNAOFallsBackToIQDBWithoutKey(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.iqdb = iqdbBody(t)

	res, err := apis.service(Credentials{}).SauceNAO(context.Background(), "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Danbooru IQDB - 57.0%", res.Embed.Title)
	assert.True(t, strings.HasPrefix(res.Embed.Description, "SauceNAO is not configured"))
	assert.Empty(t, apis.sauceQuery)
}

func TestSauceNAOResult(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.sauce = `{
		"header": {"short_remaining": 3, "long_remaining": 90, "status": 0},
		"results": [
			{"header": {"similarity": "61.10", "thumbnail": "` + apis.server.URL + `/thumb.jpg"}, "data": {"ext_urls": ["https://b.example/2"], "creator": ["x", "y"]}},
			{"header": {"similarity": "93.40", "thumbnail": "` + apis.server.URL + `/thumb.jpg"}, "data": {"ext_urls": ["https://a.example/1", "https://b.example/2"], "creator": "ArtistA", "source": "https://twitter.com/a"}},
			{"header": {"similarity": "40.00"}, "data": {"ext_urls": ["https://c.example/3", "https://d.example/4"]}}
		]
	}`

	res, err := apis.service(Credentials{SauceNAOKey: "secret"}).SauceNAO(context.Background(), "https://cdn.example.com/a.png")
	require.NoError(t, err)

	query := <-apis.sauceQuery
	assert.Equal(t, []string{"secret"}, query["api_key"])
	assert.Equal(t, sauceIndexes, query["dbs[]"])

	assert.Equal(t, "Highest Result - ArtistA | 93.40%", res.Embed.Title)
	assert.Equal(t, "https://a.example/1", res.Embed.URL)
	assert.Equal(t, "https://a.example/1\nhttps://b.example/2\nhttps://c.example/3", res.Embed.Description)
	require.Len(t, res.Files, 1)
	assert.Equal(t, sauceThumbName, res.Files[0].Name)
	assert.Equal(t, "attachment://"+sauceThumbName, res.Embed.Image.URL)
	assert.Equal(t, colorDarkRed, res.Embed.Color)
}

func TestSauceNAORateLimited(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.sauce = `{"header": {"short_remaining": 0, "status": 0}, "results": []}`

	_, err := apis.service(Credentials{SauceNAOKey: "k"}).SauceNAO(context.Background(), "https://cdn.example.com/a.png")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, apis.iqdbQuery, "a rate-limited search must not fall back to IQDB")
}

func TestSauceNAOBadResponse(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.sauce = `not json`

	_, err := apis.service(Credentials{SauceNAOKey: "k"}).SauceNAO(context.Background(), "https://cdn.example.com/a.png")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestTraceMoe(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.trace = `{"error": "", "result": [{"anilist": 21, "filename": "op.mkv", "episode": null, "from": 65.5, "to": 3725.2, "similarity": 0.9312, "image": "https://media.trace.moe/i.jpg"}]}`

	res, err := apis.service(Credentials{}).TraceMoe(context.Background(), "https://cdn.example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "Anime Search Result", res.Embed.Title)
	assert.Contains(t, res.Embed.Description, "**Anime ID:** 21")
	assert.Contains(t, res.Embed.Description, "**Episode:** N/A")
	assert.Contains(t, res.Embed.Description, "**From:** 00:01:05 **To:** 01:02:05")
	assert.Contains(t, res.Embed.Description, "**Similarity:** 93.12%")
	assert.Equal(t, "https://media.trace.moe/i.jpg", res.Embed.Image.URL)
}

func TestTraceMoeError(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.trace = `{"error": "Search queue is full", "result": []}`

	_, err := apis.service(Credentials{}).TraceMoe(context.Background(), "https://cdn.example.com/a.png")
	require.ErrorIs(t, err, ErrUnavailable)

	apis.trace = `{"error": "", "result": []}`
	_, err = apis.service(Credentials{}).TraceMoe(context.Background(), "https://cdn.example.com/a.png")
	require.ErrorIs(t, err, ErrNoResults)
}

func TestIQDB(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.iqdb = iqdbBody(t)

	res, err := apis.service(Credentials{DanbooruLogin: "bob", DanbooruAPIKey: "key"}).IQDB(context.Background(), "https://cdn.example.com/a.png", "")
	require.NoError(t, err)

	query := <-apis.iqdbQuery
	assert.Equal(t, []string{"bob"}, query["login"])
	assert.Equal(t, []string{"https://cdn.example.com/a.png"}, query["search[url]"])

	assert.Equal(t, apis.server.URL+"/posts/7", res.Embed.URL)
	assert.Equal(t, apis.server.URL+"/data/preview.jpg", res.Embed.Image.URL)
	assert.Contains(t, res.Embed.Description, "**Artist tags:** artist_7")
	assert.Equal(t, iqdbMaxMatches, strings.Count(res.Embed.Description, "\n- "))
	assert.NotContains(t, res.Embed.Description, "/posts/2")
}

func TestIQDBEmpty(t *testing.T) {
	apis := newFakeAPIs(t)
	apis.iqdb = `[]`

	_, err := apis.service(Credentials{}).IQDB(context.Background(), "https://cdn.example.com/a.png", "")
	require.ErrorIs(t, err, ErrNoResults)
	query := <-apis.iqdbQuery
	assert.NotContains(t, query, "login")
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/png", "file.bin"))
	assert.True(t, IsImage("", "photo.JPEG"))
	assert.True(t, IsImage("", "https://cdn.example.com/a.webp?width=200"))
	assert.False(t, IsImage("text/plain", "notes.txt"))
	assert.False(t, IsImage("", "https://example.com/page"))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "00:00:00", clock(-4))
	assert.Equal(t, "12", episode(json.RawMessage(`12`)))
	assert.Equal(t, "OVA", episode(json.RawMessage(`"OVA"`)))
	assert.Equal(t, "1, 2", episode(json.RawMessage(`[1, 2]`)))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "https://x.test/a.jpg", absolute("https://d.test", "//x.test/a.jpg"))
}

func TestLimiter(t *testing.T) {
	limiter := NewLimiter(2, time.Minute)
	now := time.Now()

	assert.True(t, limiter.Allow("g1", "u1", now))
	assert.True(t, limiter.Allow("g1", "u1", now))
	assert.False(t, limiter.Allow("g1", "u1", now))
	assert.True(t, limiter.Allow("g1", "u2", now))
	assert.True(t, limiter.Allow("g1", "u1", now.Add(61*time.Second)))
}
