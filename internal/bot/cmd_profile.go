package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"hearth-bot/internal/imaging"
	"hearth-bot/internal/modules/leveling"
	"hearth-bot/internal/modules/profiles"
	"hearth-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) profileCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "profile",
		Description: "View a member's profile card",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "The member to view",
			},
		},
		DMPermission: boolPtr(false),
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if i.GuildID == "" {
			return b.fail(s, i, "Profile", errGuildOnly)
		}
		opts := optionMap(i.ApplicationCommandData().Options)
		user := opts.User(s, "user")
		if user == nil {
			user = interactionUser(i)
		}
		target := levelingMember(user)

		profile, err := b.profiles.View(ctx, actorFor(i), target)
		if err != nil {
			return b.fail(s, i, "Profile", err)
		}
		if err := b.deferReply(s, i, false); err != nil {
			return err
		}

		xp, need, ratio := profiles.Progress(profile)
		img, err := b.renderer.ProfileCard(ctx, imaging.Card{
			Background: profile.Background,
			AvatarURL:  target.AvatarURL,
			Username:   target.Username,
			Level:      profile.Level,
			XP:         xp,
			Need:       need,
			Progress:   ratio,
			AboutMe:    profile.AboutMe,
		})
		embed := profileEmbed(target, profile, xp, need)
		embed.Color = b.images.AccentColor(ctx, target.AvatarURL)
		if err != nil {
			b.logger.Warn("profile card failed", zap.String("user_id", target.UserID), zap.Error(err))
			b.editReply(s, i, embed, nil)
			return nil
		}

		name := fmt.Sprintf("profile-%s.png", target.UserID)
		embed.Fields = nil
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + name}
		b.editReply(s, i, embed, []*discordgo.File{{
			Name:        name,
			ContentType: "image/png",
			Reader:      bytes.NewReader(img),
		}})
		return nil
	}
	return cmd, handler
}

func profileEmbed(member leveling.Member, profile storage.Profile, xp, need int) *discordgo.MessageEmbed {
	visibility := "Public"
	if !profile.PublicProfile {
		visibility = "Private"
	}
	notify := "On"
	if !profile.LevelNotify {
		notify = "Off"
	}
	embed := &discordgo.MessageEmbed{
		Title:       member.Username + "'s profile",
		Description: profile.AboutMe,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: fmt.Sprintf("%d", profile.Level), Inline: true},
			{Name: "XP", Value: fmt.Sprintf("%d / %d", xp, need), Inline: true},
			{Name: "Visibility", Value: visibility, Inline: true},
			{Name: "Level-up notifications", Value: notify, Inline: true},
		},
	}
	if member.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: member.AvatarURL}
	}
	return embed
}

func (b *Bot) profileSetCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	userOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: "Member to edit (moderators only)",
	}
	cmd := &discordgo.ApplicationCommand{
		Name:         "profile_set",
		Description:  "Edit a profile",
		DMPermission: boolPtr(false),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "background",
				Description: "Set the profile background image",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Image URL", Required: true},
					userOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "aboutme",
				Description: "Set the about me text",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "Leave empty to reset", MaxLength: profiles.MaxAboutMe},
					userOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "public",
				Description: "Make the profile public or private",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "value", Description: "True for public", Required: true},
					userOption,
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "levelnotify",
				Description: "Toggle level-up notifications",
				Options:     []*discordgo.ApplicationCommandOption{userOption},
			},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if i.GuildID == "" {
			return b.fail(s, i, "Profile", errGuildOnly)
		}
		sub, opts := subcommand(i.ApplicationCommandData())
		user := opts.User(s, "user")
		if user == nil {
			user = interactionUser(i)
		}
		actor, target := actorFor(i), levelingMember(user)

		var (
			profile storage.Profile
			err     error
			summary string
		)
		switch sub {
		case "background":
			profile, err = b.profiles.SetBackground(ctx, actor, target, opts.String("url"))
			summary = "Background updated."
		case "aboutme":
			profile, err = b.profiles.SetAboutMe(ctx, actor, target, opts.String("text"))
			summary = "About me updated."
		case "public":
			value, _ := opts.Bool("value")
			profile, err = b.profiles.SetPublic(ctx, actor, target, value)
			summary = "Profile is now private."
			if value {
				summary = "Profile is now public."
			}
		case "levelnotify":
			profile, err = b.profiles.ToggleLevelNotify(ctx, actor, target)
			summary = "Level-up notifications turned off."
			if profile.LevelNotify {
				summary = "Level-up notifications turned on."
			}
		default:
			err = userErr("Unknown option %q.", sub)
		}
		if err != nil {
			return b.fail(s, i, "Profile", err)
		}

		xp, need, _ := profiles.Progress(profile)
		embed := profileEmbed(target, profile, xp, need)
		embed.Title = summary
		embed.Color = colorSuccess
		if sub == "background" {
			embed.Image = &discordgo.MessageEmbedImage{URL: profile.Background}
		}
		b.respondEmbed(s, i, embed, true)
		return nil
	}
	return cmd, handler
}

func (b *Bot) leaderboardCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "leaderboard",
		Description: "Show the top members by level",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "size",
				Description: "How many members to show",
				MinValue:    floatPtr(1),
				MaxValue:    profiles.MaxLeaderboardSize,
			},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		opts := optionMap(i.ApplicationCommandData().Options)
		top, err := b.profiles.Leaderboard(ctx, opts.Int("size", profiles.DefaultLeaderboard))
		if err != nil {
			return b.fail(s, i, "Leaderboard", err)
		}
		if len(top) == 0 {
			b.respondEmbed(s, i, b.commandEmbed("Leaderboard", "Nobody has earned XP yet.", colorInfo, nil), false)
			return nil
		}
		lines := make([]string, 0, len(top))
		for rank, profile := range top {
			lines = append(lines, fmt.Sprintf("**%d.** %s · level %d (%d XP)", rank+1, profile.Username, profile.Level, profile.XP))
		}
		b.respondEmbed(s, i, b.commandEmbed("Leaderboard", strings.Join(lines, "\n"), colorInfo, nil), false)
		return nil
	}
	return cmd, handler
}
