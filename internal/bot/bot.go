package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"hearth-bot/internal/config"
	"hearth-bot/internal/httpapi"
	"hearth-bot/internal/imaging"
	"hearth-bot/internal/metrics"
	"hearth-bot/internal/modules/anime"
	"hearth-bot/internal/modules/audit"
	"hearth-bot/internal/modules/leveling"
	"hearth-bot/internal/modules/moderation"
	"hearth-bot/internal/modules/n8n"
	"hearth-bot/internal/modules/profiles"
	"hearth-bot/internal/modules/reactionroles"
	"hearth-bot/internal/modules/search"
	"hearth-bot/internal/status"
	"hearth-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	commandTimeout = 60 * time.Second
	eventTimeout   = 15 * time.Second
	imageCacheSize = 64
	imageCacheTTL  = 30 * time.Minute
)

type Bot struct {
	cfg      *config.Store
	logger   *zap.Logger
	store    storage.Store
	session  *discordgo.Session
	registry *CommandRegistry

	leveling   *leveling.Tracker
	reactions  *reactionroles.Synchronizer
	colors     *reactionroles.ColorCycler
	audit      *audit.Logger
	moderation *moderation.Module
	profiles   *profiles.Service
	search     *search.Service
	limiter    *search.Limiter
	anime      *anime.Service
	images     *imaging.Fetcher
	renderer   *imaging.Renderer
	n8n        *n8n.Client
	status     *status.Rotator

	ctx       context.Context
	cancel    context.CancelFunc
	// group and groupCtx are fixed in New. closed stops Ready from adding
	// tasks once Close has begun waiting.
	group     *errgroup.Group
	groupCtx  context.Context
	groupMu   sync.Mutex
	closed    bool
	startOnce sync.Once
	connected atomic.Bool
	stop      chan struct{}
	stopOnce  sync.Once
}

func New(cfgStore *config.Store, store storage.Store, client *httpapi.Client, logger *zap.Logger) (*Bot, error) {
	cfg := cfgStore.Current()
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		cfg:     cfgStore,
		logger:  logger,
		store:   store,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
		stop:    make(chan struct{}),
	}
	b.group, b.groupCtx = errgroup.WithContext(ctx)

	b.leveling = leveling.New(leveling.Config{
		Cooldown:     time.Duration(cfg.Leveling.CooldownSeconds) * time.Second,
		Cleanup:      time.Duration(cfg.Leveling.CleanupSeconds) * time.Second,
		XPPerMessage: cfg.Leveling.XPPerMessage,
	}, store, b, logger.Named("leveling"))
	b.leveling.WithBanners(b.pickBanner)
	b.leveling.WithObserver(func(leveling.LevelUp) {
		metrics.LevelUps.Inc()
	})

	guild := &guildRoles{session: session}
	b.reactions = reactionroles.New(store, guild, func() string {
		return b.cfg.Current().IDs.ReactionRoleMessageID
	}, logger.Named("reaction_roles"))
	b.colors = reactionroles.NewColorCycler(guild, cfg.Discord.GuildID, cfg.IDs.ColorCycleRoleID,
		time.Duration(cfg.ReactionRoles.ColorCycleMinutes)*time.Minute, imaging.RandomEmbedColor, logger.Named("color_cycle"))

	b.audit = audit.NewLogger(logger.Named("audit"))
	b.audit.SetNotifier(b.notifyAudit)
	b.moderation = moderation.New(b.leveling, store, b.audit, logger.Named("moderation"))
	b.profiles = profiles.New(b.leveling, store, logger.Named("profiles"))

	b.search = search.New(client, search.DefaultEndpoints(), b.searchCredentials, logger.Named("search"))
	b.limiter = search.NewLimiter(cfg.Search.MaxPerWindow, time.Duration(cfg.Search.WindowSeconds)*time.Second)
	b.anime = anime.New(client, anime.DefaultEndpoints(), logger.Named("anime"))

	b.images = imaging.NewFetcher(client, imageCacheSize, imageCacheTTL, logger.Named("imaging"))
	b.renderer = imaging.NewRenderer(b.images, config.DefaultBanner, logger.Named("imaging"))

	b.n8n = n8n.New(client, func() string {
		return b.cfg.Current().N8n.WebhookURL
	}, logger.Named("n8n"))

	b.status = status.New(session, func() []string {
		return b.cfg.Current().Presence.Statuses
	}, time.Duration(cfg.Presence.IntervalSeconds)*time.Second, logger.Named("status"))

	b.registry = b.buildRegistry()
	return b, nil
}

// Start loads reaction roles, then connects. A malformed stored mapping fails here.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.reactions.Initialize(ctx); err != nil {
		return err
	}

	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onDisconnect)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageReactionAdd)
	b.session.AddHandler(b.onMessageReactionRemove)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onGuildMemberRemove)
	b.session.AddHandler(b.onInteractionCreate)

	return b.session.Open()
}

// Close stops background work, waits for it, then disconnects.
func (b *Bot) Close(ctx context.Context) {
	b.groupMu.Lock()
	b.closed = true
	b.groupMu.Unlock()
	b.cancel()

	done := make(chan error, 1)
	go func() { done <- b.group.Wait() }()
	select {
	case err := <-done:
		if err != nil {
			b.logger.Warn("background task failed", zap.Error(err))
		}
	case <-ctx.Done():
		b.logger.Warn("background tasks did not stop in time")
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

// Stopped is closed once an owner asks the bot to shut down.
func (b *Bot) Stopped() <-chan struct{} {
	return b.stop
}

func (b *Bot) requestStop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// Connected reports whether the gateway session is up.
func (b *Bot) Connected(ctx context.Context) error {
	if !b.connected.Load() {
		return errors.New("gateway disconnected")
	}
	return nil
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	defer b.recoverHandler("ready")
	b.connected.Store(true)
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))

	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()
	if err := b.reactions.Initialize(ctx); err != nil {
		b.logger.Error("reaction roles reload failed, keeping the previous index", zap.Error(err))
	}
	if err := b.registerCommands(event.User.ID); err != nil {
		b.logger.Error("command registration failed", zap.Error(err))
	}
	b.startOnce.Do(b.startBackground)
}

func (b *Bot) onDisconnect(session *discordgo.Session, event *discordgo.Disconnect) {
	b.connected.Store(false)
	b.logger.Warn("discord disconnected")
}

// startBackground runs the status rotation and role colour cycle until Close.
func (b *Bot) startBackground() {
	b.groupMu.Lock()
	defer b.groupMu.Unlock()
	if b.closed {
		return
	}
	b.group.Go(func() error { return b.status.Run(b.groupCtx) })
	b.group.Go(func() error { return b.colors.Run(b.groupCtx) })
}

func (b *Bot) pickBanner() string {
	banners := b.cfg.Current().ProfileBanners
	if len(banners) == 0 {
		return config.DefaultBanner
	}
	return banners[rand.IntN(len(banners))]
}

func (b *Bot) searchCredentials() search.Credentials {
	apis := b.cfg.Current().APIs
	return search.Credentials{
		SauceNAOKey:    apis.SauceNao,
		DanbooruLogin:  apis.DanbooruLogin,
		DanbooruAPIKey: apis.DanbooruAPIKey,
	}
}

// NotifyLevelUp posts the level-up embed in the channel the XP was earned in.
func (b *Bot) NotifyLevelUp(ctx context.Context, event leveling.LevelUp) error {
	if event.ChannelID == "" {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s has reached level %d!", event.Member.Username, event.Level),
		Description: fmt.Sprintf("%d XP needed for the next level.", event.NextThreshold),
		Color:       b.images.AccentColor(ctx, event.Member.AvatarURL),
	}
	if event.Member.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: event.Member.AvatarURL}
	}
	_, err := b.session.ChannelMessageSendEmbed(event.ChannelID, embed)
	return err
}

func (b *Bot) notifyAudit(ctx context.Context, entry audit.Entry) {
	channelID := b.cfg.Current().IDs.ReportChannelID
	if channelID == "" {
		return
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Event", Value: entry.Event, Inline: true},
		{Name: "Level", Value: entry.Level, Inline: true},
	}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true})
	}
	if entry.ActorID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Moderator", Value: "<@" + entry.ActorID + ">", Inline: true})
	}
	color := colorInfo
	if entry.Level != audit.LevelInfo {
		color = colorWarn
	}
	embed := b.commandEmbed("Moderation log", entry.Details, color, fields)
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Warn("audit notification failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (b *Bot) memberForUser(guildID, userID string) *discordgo.Member {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		return member
	}
	member, _ = b.session.GuildMember(guildID, userID)
	return member
}

func levelingMember(user *discordgo.User) leveling.Member {
	if user == nil {
		return leveling.Member{}
	}
	return leveling.Member{
		UserID:    user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL("256"),
	}
}
