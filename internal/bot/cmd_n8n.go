package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) n8nCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	idOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "id",
		Description: "The LiveChart anime ID (e.g. 13202)",
		Required:    true,
	}
	cmd := &discordgo.ApplicationCommand{
		Name:        "n8n",
		Description: "Integration commands with the n8n automation system",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "track",
				Description: "Track a LiveChart anime ID",
				Options:     []*discordgo.ApplicationCommandOption{idOption},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "untrack",
				Description: "Untrack a LiveChart anime ID",
				Options:     []*discordgo.ApplicationCommandOption{idOption},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List the tracked anime IDs",
			},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		sub, opts := subcommand(i.ApplicationCommandData())
		if err := b.deferReply(s, i, true); err != nil {
			return err
		}

		var (
			reply string
			err   error
			done  string
		)
		switch sub {
		case "track", "untrack":
			id := strings.TrimSpace(opts.String("id"))
			reply, err = b.n8n.TrackAnime(ctx, id, i.ChannelID, sub == "untrack")
			done = fmt.Sprintf("Sent anime ID `%s` to n8n.", id)
			if sub == "untrack" {
				done = fmt.Sprintf("Untracked anime ID `%s` in n8n.", id)
			}
		case "list":
			reply, err = b.n8n.SendAction(ctx, "list", i.ChannelID)
			done = "Sent action `list` to n8n."
		default:
			err = userErr("Unknown option %q.", sub)
		}
		if err != nil {
			return b.failDeferred(s, i, "n8n", err)
		}
		if reply != "" {
			done += "\n" + truncateText(reply, 1500)
		}
		b.editReply(s, i, b.commandEmbed("n8n", done, colorSuccess, nil), nil)
		return nil
	}
	return cmd, handler
}

func truncateText(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}
