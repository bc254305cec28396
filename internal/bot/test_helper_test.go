package bot

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hearth-bot/internal/config"
	"hearth-bot/internal/httpapi"
	"hearth-bot/internal/storage/memory"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockRoundTripper intercepts Discord REST calls.
type MockRoundTripper struct {
	mu       sync.Mutex
	requests []recordedRequest
	// bodies maps "METHOD path" to a canned response body; "{}" otherwise.
	bodies map[string]string
}

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	m.mu.Lock()
	m.requests = append(m.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	reply, ok := m.bodies[req.Method+" "+req.URL.Path]
	m.mu.Unlock()
	if !ok {
		reply = "{}"
	}

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(reply)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// respondWith sets the body returned for method and exact path.
func (m *MockRoundTripper) respondWith(method, path, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bodies == nil {
		m.bodies = make(map[string]string)
	}
	m.bodies[method+" "+path] = body
}

// find returns the requests whose path contains fragment.
func (m *MockRoundTripper) find(method, fragment string) []recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []recordedRequest
	for _, r := range m.requests {
		if r.Method == method && strings.Contains(r.Path, fragment) {
			out = append(out, r)
		}
	}
	return out
}

// lastResponse decodes the most recent interaction callback.
func (m *MockRoundTripper) lastResponse(t *testing.T) discordgo.InteractionResponse {
	t.Helper()
	calls := m.find(http.MethodPost, "/callback")
	require.NotEmpty(t, calls, "no interaction response sent")
	var resp discordgo.InteractionResponse
	require.NoError(t, json.Unmarshal(calls[len(calls)-1].Body, &resp))
	return resp
}

// lastEdit decodes the most recent deferred-response edit.
func (m *MockRoundTripper) lastEdit(t *testing.T) discordgo.WebhookEdit {
	t.Helper()
	calls := m.find(http.MethodPatch, "/messages/@original")
	require.NotEmpty(t, calls, "no interaction edit sent")
	var edit discordgo.WebhookEdit
	require.NoError(t, json.Unmarshal(calls[len(calls)-1].Body, &edit))
	return edit
}

type testBot struct {
	*Bot
	store *memory.Store
	mock  *MockRoundTripper
}

func newTestBot(t *testing.T, mutate ...func(*config.Config)) *testBot {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Discord.Token = "test-token"
	cfg.Discord.GuildID = "100"
	cfg.IDs.OwnerID = "900"
	cfg.Database.Driver = "memory"
	for _, m := range mutate {
		m(&cfg)
	}

	store := memory.New()
	cfgStore := config.NewStore(filepath.Join(t.TempDir(), "config.yaml"), cfg)
	b, err := New(cfgStore, store, httpapi.New(5*time.Second, zap.NewNop()), zap.NewNop())
	require.NoError(t, err)

	mock := &MockRoundTripper{}
	b.session.Client = &http.Client{Transport: mock}
	b.session.State.User = &discordgo.User{ID: "1", Username: "hearth", Bot: true}
	t.Cleanup(func() { b.cancel() })

	return &testBot{Bot: b, store: store, mock: mock}
}

// seedGuild puts a guild with one text channel and member into the state cache.
func (tb *testBot) seedGuild(t *testing.T, userID string, perms int64) {
	t.Helper()
	require.NoError(t, tb.session.State.GuildAdd(&discordgo.Guild{
		ID:      "100",
		OwnerID: "900",
		Roles:   []*discordgo.Role{{ID: "100", Name: "@everyone", Permissions: perms}},
		Channels: []*discordgo.Channel{
			{ID: "200", GuildID: "100", Type: discordgo.ChannelTypeGuildText},
		},
		Members: []*discordgo.Member{
			{GuildID: "100", User: &discordgo.User{ID: userID, Username: "alice"}},
		},
	}))
}

func commandInteraction(name string, userID string, perms int64, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			ID:        "300",
			AppID:     "1",
			Token:     "interaction-token",
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "100",
			ChannelID: "200",
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: opts,
			},
			Member: &discordgo.Member{
				User:        &discordgo.User{ID: userID, Username: "alice"},
				Permissions: perms,
			},
		},
	}
}

func subOption(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: opts,
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func intOption(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}
