package bot

import (
	"context"
	"fmt"
	"strings"

	"hearth-bot/internal/config"
	"hearth-bot/internal/modules/reactionroles"
	"hearth-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const colorRoles = 0x992D22

func (b *Bot) reactionRolesCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	messageOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "message_id",
		Description: "Message the mapping applies to (defaults to the roles message)",
	}
	cmd := &discordgo.ApplicationCommand{
		Name:                     "reaction_roles",
		Description:              "Manage reaction roles",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionManageRoles),
		DMPermission:             boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "setup",
				Description: "Post the reaction roles message in this channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Map an emoji to a role",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "Emoji to react with", Required: true},
					{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to grant", Required: true},
					messageOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove an emoji mapping",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "Mapped emoji", Required: true},
					messageOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List reaction role mappings",
			},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if i.GuildID == "" {
			return b.fail(s, i, "Reaction roles", errGuildOnly)
		}
		if !hasPermission(i, discordgo.PermissionManageRoles) {
			return b.fail(s, i, "Reaction roles", userErr("You need Manage Roles to change reaction roles."))
		}
		sub, opts := subcommand(i.ApplicationCommandData())
		switch sub {
		case "setup":
			return b.setupReactionRoles(ctx, s, i)
		case "add":
			return b.addReactionRole(ctx, s, i, opts)
		case "remove":
			return b.removeReactionRole(ctx, s, i, opts)
		case "list":
			return b.listReactionRoles(s, i)
		}
		return b.fail(s, i, "Reaction roles", userErr("Unknown option %q.", sub))
	}
	return cmd, handler
}

// setupReactionRoles posts the roles message for the global mappings and
// makes it the default reaction-role message.
func (b *Bot) setupReactionRoles(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if err := b.deferReply(s, i, true); err != nil {
		return err
	}
	global := b.globalMappings()
	msg, err := s.ChannelMessageSendEmbed(i.ChannelID, b.rolesEmbed(s, i.GuildID, global))
	if err != nil {
		b.logger.Error("reaction roles message failed", zap.String("channel_id", i.ChannelID), zap.Error(err))
		return b.failDeferred(s, i, "Reaction roles", userErr("I could not post in this channel."))
	}

	err = b.cfg.Update(func(c *config.Config) {
		c.IDs.ReactionRoleChannelID = i.ChannelID
		c.IDs.ReactionRoleMessageID = msg.ID
	})
	if err != nil {
		b.logger.Error("reaction roles settings save failed", zap.Error(err))
		return b.failDeferred(s, i, "Reaction roles", userErr("The message was posted but the settings could not be saved."))
	}

	for _, mapping := range global {
		b.react(s, i.ChannelID, msg.ID, mapping.Emoji)
	}
	b.editReply(s, i, b.commandEmbed("Reaction roles", "Reaction roles have been set up.", colorSuccess, nil), nil)
	return nil
}

func (b *Bot) addReactionRole(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts options) error {
	emoji, err := reactionroles.ParseEmoji(opts.String("emoji"))
	if err != nil {
		return b.fail(s, i, "Reaction roles", err)
	}
	role := opts.Role(s, i.GuildID, "role")
	if role == nil {
		return b.fail(s, i, "Reaction roles", userErr("Role not found."))
	}
	messageID := strings.TrimSpace(opts.String("message_id"))

	if err := b.reactions.AddMapping(ctx, emoji, role.ID, messageID); err != nil {
		b.logger.Error("reaction role add failed", zap.String("emoji", emoji.Key()), zap.String("role_id", role.ID), zap.Error(err))
		return b.fail(s, i, "Reaction roles", err)
	}

	channelID, targetID := b.reactionTarget(i, messageID)
	if targetID != "" {
		b.react(s, channelID, targetID, emoji.Key())
		if messageID == "" {
			b.refreshRolesMessage(s, i.GuildID, channelID, targetID)
		}
	}
	b.respondEmbed(s, i, b.commandEmbed("Reaction roles", fmt.Sprintf("%s now grants %s.", emoji, role.Mention()), colorSuccess, nil), true)
	return nil
}

func (b *Bot) removeReactionRole(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts options) error {
	emoji, err := reactionroles.ParseEmoji(opts.String("emoji"))
	if err != nil {
		return b.fail(s, i, "Reaction roles", err)
	}
	messageID := strings.TrimSpace(opts.String("message_id"))

	if err := b.reactions.RemoveMapping(ctx, emoji, messageID); err != nil {
		b.logger.Error("reaction role remove failed", zap.String("emoji", emoji.Key()), zap.Error(err))
		return b.fail(s, i, "Reaction roles", err)
	}

	channelID, targetID := b.reactionTarget(i, messageID)
	if targetID != "" {
		if err := s.MessageReactionRemove(channelID, targetID, emoji.APIName(), "@me"); err != nil {
			b.logger.Debug("reaction remove failed", zap.String("message_id", targetID), zap.Error(err))
		}
		if messageID == "" {
			b.refreshRolesMessage(s, i.GuildID, channelID, targetID)
		}
	}
	b.respondEmbed(s, i, b.commandEmbed("Reaction roles", fmt.Sprintf("%s no longer grants a role.", emoji), colorSuccess, nil), true)
	return nil
}

func (b *Bot) listReactionRoles(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	mappings := b.reactions.Mappings()
	if len(mappings) == 0 {
		b.respondEmbed(s, i, b.commandEmbed("Reaction roles", "No reaction roles configured.", colorInfo, nil), true)
		return nil
	}
	lines := make([]string, 0, len(mappings))
	for _, mapping := range mappings {
		scope := "roles message"
		if mapping.MessageID != "" {
			scope = "message " + mapping.MessageID
		}
		lines = append(lines, fmt.Sprintf("%s <@&%s> (%s)", mapping.Emoji, mapping.RoleID, scope))
	}
	b.respondEmbed(s, i, b.commandEmbed("Reaction roles", strings.Join(lines, "\n"), colorInfo, nil), true)
	return nil
}

// reactionTarget resolves where a mapping's reaction lives. Global mappings
// target the configured roles message.
func (b *Bot) reactionTarget(i *discordgo.InteractionCreate, messageID string) (channelID, targetID string) {
	if messageID != "" {
		return i.ChannelID, messageID
	}
	ids := b.cfg.Current().IDs
	channelID = ids.ReactionRoleChannelID
	if channelID == "" {
		channelID = i.ChannelID
	}
	return channelID, ids.ReactionRoleMessageID
}

func (b *Bot) globalMappings() []storage.ReactionRole {
	var out []storage.ReactionRole
	for _, mapping := range b.reactions.Mappings() {
		if mapping.MessageID == "" {
			out = append(out, mapping)
		}
	}
	return out
}

func (b *Bot) rolesEmbed(s *discordgo.Session, guildID string, mappings []storage.ReactionRole) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(mappings))
	for _, mapping := range mappings {
		name := "(unknown role)"
		if role, err := s.State.Role(guildID, mapping.RoleID); err == nil && role != nil {
			name = role.Name
		}
		lines = append(lines, fmt.Sprintf("%s - %s", mapping.Emoji, name))
	}
	description := strings.Join(lines, "\n")
	if description == "" {
		description = "React below to pick your roles."
	}
	return &discordgo.MessageEmbed{
		Title:       "ROLES",
		Description: description,
		Color:       colorRoles,
	}
}

func (b *Bot) refreshRolesMessage(s *discordgo.Session, guildID, channelID, messageID string) {
	embed := b.rolesEmbed(s, guildID, b.reactions.ForMessage(messageID))
	if _, err := s.ChannelMessageEditEmbed(channelID, messageID, embed); err != nil {
		b.logger.Warn("reaction roles message edit failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

func (b *Bot) react(s *discordgo.Session, channelID, messageID, key string) {
	emoji, err := reactionroles.ParseEmoji(key)
	if err != nil {
		return
	}
	if err := s.MessageReactionAdd(channelID, messageID, emoji.APIName()); err != nil {
		b.logger.Warn("bot reaction failed", zap.String("message_id", messageID), zap.String("emoji", key), zap.Error(err))
	}
}
