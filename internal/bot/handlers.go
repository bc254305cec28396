package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"hearth-bot/internal/imaging"
	"hearth-bot/internal/metrics"
	"hearth-bot/internal/modules/anime"
	"hearth-bot/internal/modules/leveling"
	"hearth-bot/internal/modules/moderation"
	"hearth-bot/internal/modules/n8n"
	"hearth-bot/internal/modules/profiles"
	"hearth-bot/internal/modules/reactionroles"
	"hearth-bot/internal/modules/search"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	colorInfo    = 0x3498DB
	colorSuccess = 0x2ECC71
	colorWarn    = 0xE67E22
	colorError   = 0xE74C3C
)

// recoverHandler keeps a panicking handler from taking down the gateway loop.
func (b *Bot) recoverHandler(event string) {
	if r := recover(); r != nil {
		b.logger.Error("handler panic", zap.String("event", event), zap.Any("panic", r), zap.Stack("stack"))
		if channelID := b.cfg.Current().IDs.ErrorChannelID; channelID != "" {
			_, _ = b.session.ChannelMessageSend(channelID, fmt.Sprintf("`%s` handler panicked: %v", event, r))
		}
	}
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	defer b.recoverHandler("message_create")
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()
	author := levelingMember(msg.Author)

	perms, err := session.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err != nil {
		b.logger.Debug("permission lookup failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}
	verdict, flagged := b.moderation.CheckInvite(ctx, moderation.Message{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		Author:    author,
		Content:   msg.Content,
		CanManage: err == nil && perms&(discordgo.PermissionManageMessages|discordgo.PermissionAdministrator) != 0,
	})
	if flagged {
		if err := session.ChannelMessageDelete(msg.ChannelID, msg.ID); err != nil {
			b.logger.Warn("invite delete failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
		if _, err := session.ChannelMessageSend(msg.ChannelID, verdict.Reply(msg.Author.Mention())); err != nil {
			b.logger.Warn("invite notice failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
		}
		return
	}

	awarded, err := b.leveling.RecordMessage(ctx, author, msg.ChannelID, msg.Timestamp)
	if err != nil {
		b.logger.Error("message xp failed", zap.String("user_id", author.UserID), zap.Error(err))
	}
	if awarded {
		metrics.XPAwards.WithLabelValues("message").Inc()
	}
	metrics.CooldownEntries.Set(float64(b.leveling.Tracked()))
}

func (b *Bot) onMessageReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	defer b.recoverHandler("reaction_add")
	if event.MessageReaction == nil {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()

	bot := isSelf(session, event.UserID)
	if event.Member != nil && event.Member.User != nil {
		bot = bot || event.Member.User.Bot
	}
	outcome := b.reactions.OnReactionAdded(ctx, b.reaction(event.MessageReaction, bot))
	recordReaction(outcome)
}

func (b *Bot) onMessageReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	defer b.recoverHandler("reaction_remove")
	if event.MessageReaction == nil {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()

	// Removal events carry no member, so look the reactor up.
	bot := isSelf(session, event.UserID)
	if !bot && event.GuildID != "" {
		if member := b.memberForUser(event.GuildID, event.UserID); member != nil && member.User != nil {
			bot = member.User.Bot
		}
	}
	outcome := b.reactions.OnReactionRemoved(ctx, b.reaction(event.MessageReaction, bot))
	recordReaction(outcome)
}

func isSelf(session *discordgo.Session, userID string) bool {
	return session.State != nil && session.State.User != nil && session.State.User.ID == userID
}

func (b *Bot) reaction(r *discordgo.MessageReaction, bot bool) reactionroles.Reaction {
	return reactionroles.Reaction{
		GuildID:   r.GuildID,
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Bot:       bot,
		Emoji:     reactionroles.FromDiscord(r.Emoji),
	}
}

func recordReaction(outcome reactionroles.Outcome) {
	switch outcome {
	case reactionroles.Granted:
		metrics.ReactionRoleOutcomes.WithLabelValues("granted").Inc()
	case reactionroles.Revoked:
		metrics.ReactionRoleOutcomes.WithLabelValues("revoked").Inc()
	case reactionroles.Failed:
		metrics.ReactionRoleOutcomes.WithLabelValues("failed").Inc()
	}
}

func (b *Bot) onGuildMemberAdd(session *discordgo.Session, event *discordgo.GuildMemberAdd) {
	defer b.recoverHandler("member_add")
	if event.Member == nil || event.User == nil || event.User.Bot {
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	cfg := b.cfg.Current()
	member := levelingMember(event.User)
	profile, _, err := b.leveling.EnsureProfile(ctx, member)
	if err != nil {
		b.logger.Error("join profile failed", zap.String("user_id", member.UserID), zap.Error(err))
	}

	if roleID := cfg.IDs.JoinRoleID; roleID != "" {
		if err := session.GuildMemberRoleAdd(event.GuildID, member.UserID, roleID); err != nil {
			b.logger.Error("join role failed", zap.String("user_id", member.UserID), zap.String("role_id", roleID), zap.Error(err))
		} else {
			b.logger.Info("join role assigned", zap.String("user_id", member.UserID), zap.String("role_id", roleID))
		}
	}

	channelID := cfg.IDs.WelcomeChannelID
	if channelID == "" || len(cfg.WelcomeMessages) == 0 {
		return
	}
	headline := cfg.WelcomeMessages[rand.IntN(len(cfg.WelcomeMessages))]
	background := profile.Background
	if len(cfg.ImageLinks) > 0 && background == "" {
		background = cfg.ImageLinks[rand.IntN(len(cfg.ImageLinks))]
	}
	img, err := b.renderer.WelcomeBanner(ctx, imaging.Banner{
		Background: background,
		AvatarURL:  member.AvatarURL,
		Headline:   headline,
		Subtext:    "Welcome to the server.",
	})
	if err != nil {
		b.logger.Warn("welcome banner failed, sending text", zap.String("user_id", member.UserID), zap.Error(err))
		if _, err := session.ChannelMessageSend(channelID, fmt.Sprintf("Welcome %s!", event.User.Mention())); err != nil {
			b.logger.Error("welcome message failed", zap.String("channel_id", channelID), zap.Error(err))
		}
		return
	}
	_, err = session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        fmt.Sprintf("welcome-%s.png", member.Username),
			ContentType: "image/png",
			Reader:      bytes.NewReader(img),
		}},
	})
	if err != nil {
		b.logger.Error("welcome banner send failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (b *Bot) onGuildMemberRemove(session *discordgo.Session, event *discordgo.GuildMemberRemove) {
	defer b.recoverHandler("member_remove")
	if event.Member == nil || event.User == nil || event.User.Bot {
		return
	}
	cfg := b.cfg.Current()
	channelID := cfg.IDs.LeaveChannelID
	if channelID == "" || len(cfg.GoodbyeMessages) == 0 {
		return
	}
	line := cfg.GoodbyeMessages[rand.IntN(len(cfg.GoodbyeMessages))]
	if _, err := session.ChannelMessageSend(channelID, goodbye(line, event.User.Username)); err != nil {
		b.logger.Warn("goodbye message failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// goodbye fills {user} in line, or prefixes the name when the line has no placeholder.
func goodbye(line, username string) string {
	if strings.Contains(line, "{user}") {
		return strings.ReplaceAll(line, "{user}", "**"+username+"**")
	}
	return fmt.Sprintf("**%s** %s", username, line)
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	defer b.recoverHandler("interaction_create")
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := interaction.ApplicationCommandData().Name
	handler, ok := b.registry.Handlers[name]
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	err := handler(ctx, session, interaction)
	metrics.ObserveCommand(name, err)
	if err != nil {
		b.logger.Debug("command failed", zap.String("command", name), zap.Error(err))
		return
	}
	b.rewardCommand(ctx, interaction)
}

// rewardCommand grants command XP and applies a pending level-up.
func (b *Bot) rewardCommand(ctx context.Context, interaction *discordgo.InteractionCreate) {
	amount := b.cfg.Current().Leveling.XPPerCommand
	user := interactionUser(interaction)
	if interaction.GuildID == "" || user == nil || user.Bot || amount <= 0 {
		return
	}
	member := levelingMember(user)
	if _, err := b.leveling.AwardXP(ctx, member, amount); err != nil {
		b.logger.Error("command xp failed", zap.String("user_id", member.UserID), zap.Error(err))
		return
	}
	metrics.XPAwards.WithLabelValues("command").Inc()
	if _, err := b.leveling.TryLevelUp(ctx, member, interaction.ChannelID); err != nil {
		b.logger.Error("level up failed", zap.String("user_id", member.UserID), zap.Error(err))
	}
}

func interactionUser(interaction *discordgo.InteractionCreate) *discordgo.User {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User
	}
	return interaction.User
}

func actorFor(interaction *discordgo.InteractionCreate) profiles.Actor {
	actor := profiles.Actor{}
	if user := interactionUser(interaction); user != nil {
		actor.UserID = user.ID
	}
	if interaction.Member != nil {
		actor.Permissions = interaction.Member.Permissions
	}
	return actor
}

func hasPermission(interaction *discordgo.InteractionCreate, perm int64) bool {
	if interaction.Member == nil {
		return false
	}
	perms := interaction.Member.Permissions
	return perms&discordgo.PermissionAdministrator != 0 || perms&perm != 0
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	}); err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed == nil {
		b.respond(session, interaction, "No response available.", ephemeral)
		return
	}
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	}); err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

// deferReply acknowledges a command that needs more than three seconds.
func (b *Bot) deferReply(session *discordgo.Session, interaction *discordgo.InteractionCreate, ephemeral bool) error {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
}

// editReply replaces a deferred response.
func (b *Bot) editReply(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, files []*discordgo.File) {
	edit := &discordgo.WebhookEdit{Embeds: &[]*discordgo.MessageEmbed{embed}}
	if len(files) > 0 {
		edit.Files = files
	}
	if _, err := session.InteractionResponseEdit(interaction.Interaction, edit); err != nil {
		b.logger.Warn("interaction edit failed", zap.Error(err))
	}
}

// fail replies with an ephemeral error embed and returns err for the dispatcher.
func (b *Bot) fail(session *discordgo.Session, interaction *discordgo.InteractionCreate, title string, err error) error {
	b.respondEmbed(session, interaction, b.commandEmbed(title, userMessage(err), colorError, nil), true)
	return err
}

// failDeferred is fail for commands that already deferred.
func (b *Bot) failDeferred(session *discordgo.Session, interaction *discordgo.InteractionCreate, title string, err error) error {
	b.editReply(session, interaction, b.commandEmbed(title, userMessage(err), colorError, nil), nil)
	return err
}

var errGuildOnly = errors.New("this command only works inside a server")

// userError is an error whose text is safe to show as-is.
type userError struct{ msg string }

func (e userError) Error() string { return e.msg }

func userErr(format string, args ...any) error {
	return userError{msg: fmt.Sprintf(format, args...)}
}

// userMessage hides internal error details from members.
func userMessage(err error) string {
	var ue userError
	if errors.As(err, &ue) {
		return ue.msg
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "That took too long, please try again."
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			msg := known.Error()
			return strings.ToUpper(msg[:1]) + msg[1:] + "."
		}
	}
	return "Something went wrong, please try again later."
}

// knownErrors carry text that is safe to show to members.
var knownErrors = []error{
	errGuildOnly,
	profiles.ErrForbidden,
	profiles.ErrPrivate,
	profiles.ErrInvalidBackground,
	profiles.ErrAboutMeTooLong,
	moderation.ErrInvalidAmount,
	moderation.ErrNothingToDelete,
	moderation.ErrReasonRequired,
	reactionroles.ErrInvalidEmoji,
	reactionroles.ErrInvalidMapping,
	search.ErrNoResults,
	search.ErrRateLimited,
	search.ErrUnavailable,
	search.ErrNotAnImage,
	search.ErrMissingImage,
	n8n.ErrNotConfigured,
	anime.ErrMissingTag,
}

var _ leveling.Notifier = (*Bot)(nil)
