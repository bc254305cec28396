package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) pingCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "ping",
		Description: "Check if the bot is alive",
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		latency := s.HeartbeatLatency().Milliseconds()
		b.respond(s, i, fmt.Sprintf("Pong! %dms", latency), false)
		return nil
	}
	return cmd, handler
}

func (b *Bot) helpCommand(registry *CommandRegistry) (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "help",
		Description: "List the available commands",
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		var lines []string
		for _, c := range registry.List() {
			lines = append(lines, fmt.Sprintf("`/%s` %s", c.Name, c.Description))
		}
		embed := b.commandEmbed(b.cfg.Current().Discord.Name+" commands", strings.Join(lines, "\n"), colorInfo, nil)
		b.respondEmbed(s, i, embed, true)
		return nil
	}
	return cmd, handler
}
