package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) settingsCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:                     "settings",
		Description:              "Bot settings (owner only)",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionAdministrator),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "reload",
				Description: "Reload the settings file",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "show",
				Description: "Show the live settings",
			},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		user := interactionUser(i)
		owner := b.cfg.Current().IDs.OwnerID
		if user == nil || owner == "" || user.ID != owner {
			return b.fail(s, i, "Settings", userErr("Only the bot owner can manage settings."))
		}

		sub, _ := subcommand(i.ApplicationCommandData())
		switch sub {
		case "reload":
			if _, err := b.cfg.Reload(); err != nil {
				b.logger.Error("settings reload failed", zap.String("path", b.cfg.Path()), zap.Error(err))
				return b.fail(s, i, "Settings", userErr("Reload failed, the previous settings stay live: %v", err))
			}
			b.logger.Info("settings reloaded", zap.String("path", b.cfg.Path()), zap.String("user_id", user.ID))
			b.respondEmbed(s, i, b.commandEmbed("Settings", "Settings reloaded.", colorSuccess, nil), true)
			return nil
		case "show":
			b.respondEmbed(s, i, b.settingsEmbed(), true)
			return nil
		}
		return b.fail(s, i, "Settings", userErr("Unknown option %q.", sub))
	}
	return cmd, handler
}

// settingsEmbed summarises the live settings without secrets.
func (b *Bot) settingsEmbed() *discordgo.MessageEmbed {
	cfg := b.cfg.Current()
	channel := func(id string) string {
		if id == "" {
			return "not set"
		}
		return "<#" + id + ">"
	}
	configured := func(v string) string {
		if v == "" {
			return "no"
		}
		return "yes"
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Welcome channel", Value: channel(cfg.IDs.WelcomeChannelID), Inline: true},
		{Name: "Leave channel", Value: channel(cfg.IDs.LeaveChannelID), Inline: true},
		{Name: "Report channel", Value: channel(cfg.IDs.ReportChannelID), Inline: true},
		{Name: "Roles message", Value: channel(cfg.IDs.ReactionRoleChannelID), Inline: true},
		{Name: "Database", Value: cfg.Database.Driver, Inline: true},
		{Name: "Statuses", Value: fmt.Sprintf("%d", len(cfg.Presence.Statuses)), Inline: true},
		{Name: "SauceNAO key", Value: configured(cfg.APIs.SauceNao), Inline: true},
		{Name: "n8n webhook", Value: configured(cfg.N8n.WebhookURL), Inline: true},
		{Name: "XP cooldown", Value: fmt.Sprintf("%ds", cfg.Leveling.CooldownSeconds), Inline: true},
	}
	return b.commandEmbed("Settings", "Loaded from `"+b.cfg.Path()+"`.", colorInfo, fields)
}

func (b *Bot) killCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:                     "kill",
		Description:              "Shut the bot down (owner only)",
		DefaultMemberPermissions: int64Ptr(discordgo.PermissionAdministrator),
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		user := interactionUser(i)
		owner := b.cfg.Current().IDs.OwnerID
		if user == nil || owner == "" || user.ID != owner {
			return b.fail(s, i, "Kill", userErr("Only the bot owner can shut the bot down."))
		}
		b.logger.Warn("shutdown requested by owner", zap.String("user_id", user.ID))
		b.respond(s, i, "Goodbye", true)
		b.requestStop()
		return nil
	}
	return cmd, handler
}
