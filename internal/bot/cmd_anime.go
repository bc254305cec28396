package bot

import (
	"context"
	"strings"

	"hearth-bot/internal/modules/anime"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) quoteCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "aquote",
		Description: "Get a random anime quote",
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		if err := b.deferReply(s, i, false); err != nil {
			return err
		}
		quote, err := b.anime.RandomQuote(ctx)
		if err != nil {
			b.logger.Info("anime quote unavailable", zap.Error(err))
			return b.failDeferred(s, i, "Anime Quote", userErr("I couldn't find an anime quote right now."))
		}
		var footer *discordgo.MessageEmbedFooter
		if quote.Anime != "" {
			footer = &discordgo.MessageEmbedFooter{Text: quote.Anime}
		}
		embed := b.commandEmbed("Anime Quote", quote.String(), colorInfo, nil)
		embed.Footer = footer
		b.editReply(s, i, embed, nil)
		return nil
	}
	return cmd, handler
}

func (b *Bot) waifuCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "waifu",
		Description: "Get a random waifu image",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "tag",
				Description: "The tag of the waifu image: https://www.waifu.im/tags/",
				Required:    true,
			},
		},
	}

	handler := func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		tag := strings.TrimSpace(optionMap(i.ApplicationCommandData().Options).String("tag"))
		if tag == "" {
			return b.fail(s, i, "Waifu", anime.ErrMissingTag)
		}
		if err := b.deferReply(s, i, false); err != nil {
			return err
		}
		imageURL, err := b.anime.RandomWaifu(ctx, tag)
		if err != nil {
			b.logger.Info("waifu image unavailable", zap.String("tag", tag), zap.Error(err))
			return b.failDeferred(s, i, "Waifu", userErr("I couldn't find a waifu image for that tag or no image was found."))
		}
		embed := b.commandEmbed("Waifu", tag, colorInfo, nil)
		embed.Image = &discordgo.MessageEmbedImage{URL: imageURL}
		b.editReply(s, i, embed, nil)
		return nil
	}
	return cmd, handler
}
