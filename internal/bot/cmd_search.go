package bot

import (
	"context"
	"strings"
	"time"

	"hearth-bot/internal/modules/search"
	"hearth-bot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type searchFunc func(ctx context.Context, imageURL string) (search.Result, error)

func imageOptions() []*discordgo.ApplicationCommandOption {
	return []*discordgo.ApplicationCommandOption{
		{Type: discordgo.ApplicationCommandOptionAttachment, Name: "image", Description: "Upload an image"},
		{Type: discordgo.ApplicationCommandOptionString, Name: "url", Description: "Direct image URL"},
	}
}

func (b *Bot) sauceCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "sauce",
		Description: "Find the source of an image (URL or upload)",
		Options:     imageOptions(),
	}
	return cmd, b.searchHandler("SauceNAO", b.search.SauceNAO)
}

func (b *Bot) traceCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "trace",
		Description: "Find the anime from an image (URL or upload)",
		Options:     imageOptions(),
	}
	return cmd, b.searchHandler("trace.moe", b.search.TraceMoe)
}

func (b *Bot) iqdbCommand() (*discordgo.ApplicationCommand, CommandHandler) {
	cmd := &discordgo.ApplicationCommand{
		Name:        "iqdb",
		Description: "Search Danbooru for similar images (URL or upload)",
		Options:     imageOptions(),
	}
	return cmd, b.searchHandler("Danbooru IQDB", func(ctx context.Context, imageURL string) (search.Result, error) {
		return b.search.IQDB(ctx, imageURL, "")
	})
}

// searchHandler validates the image input and the per-member quota before
// deferring, so input errors stay ephemeral.
func (b *Bot) searchHandler(title string, run searchFunc) CommandHandler {
	return func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
		data := i.ApplicationCommandData()
		opts := optionMap(data.Options)
		imageURL, err := imageInput(opts.Attachment(data, "image"), opts.String("url"))
		if err != nil {
			return b.fail(s, i, title, err)
		}
		user := interactionUser(i)
		if user != nil && !b.limiter.Allow(i.GuildID, user.ID, time.Now()) {
			return b.fail(s, i, title, userErr("You are searching too quickly, try again in a minute."))
		}
		if err := b.deferReply(s, i, false); err != nil {
			return err
		}

		result, err := run(ctx, imageURL)
		if err != nil {
			b.logger.Info("search returned no result", zap.String("service", title), zap.Error(err))
			return b.failDeferred(s, i, title, err)
		}
		b.editReply(s, i, result.Embed, result.Files)
		return nil
	}
}

// imageInput picks the attachment over the url. Attachments must look like images.
// The first http(s) link in the url option is used.
func imageInput(attachment *discordgo.MessageAttachment, rawURL string) (string, error) {
	if attachment != nil {
		if !search.IsImage(attachment.ContentType, attachment.Filename) {
			return "", search.ErrNotAnImage
		}
		return attachment.URL, nil
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", search.ErrMissingImage
	}
	// Pasted links often arrive as <url> or with surrounding text.
	urls := utils.ExtractURLs(rawURL)
	if len(urls) == 0 {
		return "", userErr("The url must start with http:// or https://.")
	}
	return urls[0], nil
}
