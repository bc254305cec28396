package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hearth-bot/internal/modules/moderation"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	defaultReason = "No reason given."
	maxPruneDays  = 7
)

func (b *Bot) purgeCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:                     "purge",
		Description:              "Delete recent messages from this channel (last 14 days)",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionManageMessages),
		DMPermission:             boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "amount",
				Description: "How many messages to delete",
				Required:    true,
				MinValue:    floatPtr(1),
				MaxValue:    moderation.MaxPurge,
			},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if !hasPermission(i, discordgo.PermissionManageMessages) {
			return b.fail(s, i, "Purge", userErr("You need Manage Messages to purge."))
		}
		amount := optionMap(i.ApplicationCommandData().Options).Int("amount", 0)
		if err := b.deferReply(s, i, true); err != nil {
			return err
		}

		deleted, err := moderation.Purge(s, i.ChannelID, amount, time.Now())
		if err != nil {
			b.logger.Warn("purge failed", zap.String("channel_id", i.ChannelID), zap.Int("deleted", deleted), zap.Error(err))
			return b.failDeferred(s, i, "Purge", err)
		}
		actor := actorFor(i)
		b.moderation.RecordAction(ctx, i.GuildID, actor.UserID, "", "purge", fmt.Sprintf("%d messages in <#%s>", deleted, i.ChannelID))
		b.editReply(s, i, b.commandEmbed("Purge", fmt.Sprintf("Deleted %d messages.", deleted), colorSuccess, nil), nil)
		return nil
	}
	return cmd, handler
}

func (b *Bot) kickCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:                     "kick",
		Description:              "Kick a member from the server",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionKickMembers),
		DMPermission:             boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to kick", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the kick"},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if !hasPermission(i, discordgo.PermissionKickMembers) {
			return b.fail(s, i, "Kick", userErr("You need Kick Members to kick."))
		}
		opts := optionMap(i.ApplicationCommandData().Options)
		target := opts.User(s, "user")
		if target == nil {
			return b.fail(s, i, "Kick", userErr("Member not found."))
		}
		reason := reasonOrDefault(opts.String("reason"))

		if err := s.GuildMemberDeleteWithReason(i.GuildID, target.ID, reason); err != nil {
			b.logger.Error("kick failed", zap.String("user_id", target.ID), zap.Error(err))
			return b.fail(s, i, "Kick", userErr("An error occurred trying to kick %s.", target.Username))
		}
		actor := interactionUser(i)
		b.moderation.RecordAction(ctx, i.GuildID, actor.ID, target.ID, "kick", reason)
		b.respond(s, i, fmt.Sprintf("User %s has been kicked for: %s (by %s).", target.Username, reason, actor.Username), false)
		return nil
	}
	return cmd, handler
}

func (b *Bot) banCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:                     "ban",
		Description:              "Ban a member from the server",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionBanMembers),
		DMPermission:             boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to ban", Required: true},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "prune_days",
				Description: "Days of messages to delete",
				MinValue:    floatPtr(0),
				MaxValue:    maxPruneDays,
			},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the ban"},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if !hasPermission(i, discordgo.PermissionBanMembers) {
			return b.fail(s, i, "Ban", userErr("You need Ban Members to ban."))
		}
		opts := optionMap(i.ApplicationCommandData().Options)
		target := opts.User(s, "user")
		if target == nil {
			return b.fail(s, i, "Ban", userErr("Member not found."))
		}
		reason := reasonOrDefault(opts.String("reason"))
		days := opts.Int("prune_days", 0)

		if err := s.GuildBanCreateWithReason(i.GuildID, target.ID, reason, days); err != nil {
			b.logger.Error("ban failed", zap.String("user_id", target.ID), zap.Error(err))
			return b.fail(s, i, "Ban", userErr("An error occurred trying to ban %s.", target.Username))
		}
		actor := interactionUser(i)
		b.moderation.RecordAction(ctx, i.GuildID, actor.ID, target.ID, "ban", reason)
		b.respond(s, i, fmt.Sprintf("User %s has been banned for: %s (by %s).", target.Username, reason, actor.Username), false)
		return nil
	}
	return cmd, handler
}

func (b *Bot) warnCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:                     "warn",
		Description:              "Warn a member and record an infraction",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionModerateMembers),
		DMPermission:             boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to warn", Required: true},
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "What the warning is for", Required: true},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if !hasPermission(i, discordgo.PermissionModerateMembers) {
			return b.fail(s, i, "Warn", userErr("You need Timeout Members to warn."))
		}
		opts := optionMap(i.ApplicationCommandData().Options)
		target := opts.User(s, "user")
		if target == nil {
			return b.fail(s, i, "Warn", userErr("Member not found."))
		}
		reason := opts.String("reason")
		actor := interactionUser(i)

		count, err := b.moderation.Warn(ctx, i.GuildID, actor.ID, levelingMember(target), reason)
		if err != nil {
			return b.fail(s, i, "Warn", err)
		}
		embed := b.commandEmbed("Warning", fmt.Sprintf("%s has been warned: %s", target.Mention(), strings.TrimSpace(reason)), colorWarn, []*discordgo.MessageEmbedField{
			{Name: "Infractions", Value: fmt.Sprintf("%d", count), Inline: true},
			{Name: "Moderator", Value: actor.Mention(), Inline: true},
		})
		b.respondEmbed(s, i, embed, false)
		return nil
	}
	return cmd, handler
}

func (b *Bot) infractionsCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:                     "infractions",
		Description:              "Show a member's infraction history",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionModerateMembers),
		DMPermission:             boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to look up", Required: true},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		target := optionMap(i.ApplicationCommandData().Options).User(s, "user")
		if target == nil {
			return b.fail(s, i, "Infractions", userErr("Member not found."))
		}
		count, notes, err := b.moderation.History(ctx, target.ID)
		if err != nil {
			return b.fail(s, i, "Infractions", err)
		}
		description := "No infractions recorded."
		if len(notes) > 0 {
			lines := make([]string, 0, len(notes))
			for n, note := range notes {
				lines = append(lines, fmt.Sprintf("%d. %s", n+1, note))
			}
			description = strings.Join(lines, "\n")
		}
		embed := b.commandEmbed(fmt.Sprintf("Infractions for %s (%d)", target.Username, count), description, colorWarn, nil)
		b.respondEmbed(s, i, embed, true)
		return nil
	}
	return cmd, handler
}

func (b *Bot) removeRoleCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:         "remove_role",
		Description:  "Remove a role from yourself or another member",
		DMPermission: boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to remove", Required: true},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to remove it from (needs Manage Roles)"},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		opts := optionMap(i.ApplicationCommandData().Options)
		author := interactionUser(i)
		target := opts.User(s, "user")
		if target == nil {
			target = author
		}
		if target.ID != author.ID && !hasPermission(i, discordgo.PermissionManageRoles) {
			return b.fail(s, i, "Remove role", userErr("You do not have permission to remove a role from another member."))
		}
		role := opts.Role(s, i.GuildID, "role")
		if role == nil {
			return b.fail(s, i, "Remove role", userErr("Role not found."))
		}
		if role.ID == i.GuildID {
			return b.fail(s, i, "Remove role", userErr("The everyone role cannot be removed."))
		}
		if member := b.memberForUser(i.GuildID, target.ID); member != nil && !containsRole(member.Roles, role.ID) {
			return b.fail(s, i, "Remove role", userErr("%s does not have %s.", target.Username, role.Name))
		}

		if err := s.GuildMemberRoleRemove(i.GuildID, target.ID, role.ID); err != nil {
			b.logger.Error("role removal failed", zap.String("user_id", target.ID), zap.String("role_id", role.ID), zap.Error(err))
			return b.fail(s, i, "Remove role", userErr("I could not remove %s. Check my role permissions.", role.Name))
		}
		if target.ID != author.ID {
			b.moderation.RecordAction(ctx, i.GuildID, author.ID, target.ID, "remove_role", role.Name)
		}
		b.respond(s, i, fmt.Sprintf("Role '%s' has been removed from %s.", role.Name, target.Username), true)
		return nil
	}
	return cmd, handler
}

func reasonOrDefault(reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return reason
	}
	return defaultReason
}

func containsRole(roles []string, roleID string) bool {
	for _, id := range roles {
		if id == roleID {
			return true
		}
	}
	return false
}
