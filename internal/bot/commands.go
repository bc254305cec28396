package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// CommandHandler handles one slash command. A non-nil error marks the
// invocation as failed; the handler has already replied to the user.
type CommandHandler func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error

type CommandRegistry struct {
	Commands map[string]*discordgo.ApplicationCommand
	Handlers map[string]CommandHandler
	order    []string
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		Commands: make(map[string]*discordgo.ApplicationCommand),
		Handlers: make(map[string]CommandHandler),
	}
}

func (r *CommandRegistry) Register(cmd *discordgo.ApplicationCommand, handler CommandHandler) {
	if _, ok := r.Commands[cmd.Name]; !ok {
		r.order = append(r.order, cmd.Name)
	}
	r.Commands[cmd.Name] = cmd
	r.Handlers[cmd.Name] = handler
}

// List returns the commands in registration order.
func (r *CommandRegistry) List() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.Commands[name])
	}
	return out
}

func (b *Bot) buildRegistry() *CommandRegistry {
	registry := NewCommandRegistry()
	for _, build := range []func() (*discordgo.ApplicationCommand, CommandHandler){
		b.pingCommand,
		b.profileCommand,
		b.profileSetCommand,
		b.leaderboardCommand,
		b.purgeCommand,
		b.kickCommand,
		b.banCommand,
		b.warnCommand,
		b.infractionsCommand,
		b.removeRoleCommand,
		b.reactionRolesCommand,
		b.sauceCommand,
		b.traceCommand,
		b.iqdbCommand,
		b.quoteCommand,
		b.waifuCommand,
		b.n8nCommand,
		b.settingsCommand,
		b.killCommand,
	} {
		registry.Register(build())
	}
	registry.Register(b.helpCommand(registry))
	return registry
}

// registerCommands syncs the registry to the configured guild, or globally
// when no guild is set: existing commands are edited, missing ones created
// and stale ones removed.
func (b *Bot) registerCommands(appID string) error {
	guildID := b.cfg.Current().Discord.GuildID
	commands := b.registry.List()

	existing, err := b.session.ApplicationCommands(appID, guildID)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
				return fmt.Errorf("create command %s: %w", cmd.Name, err)
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	for _, cmd := range commands {
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, guildID, current.ID, cmd); err != nil {
				return fmt.Errorf("edit command %s: %w", cmd.Name, err)
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return fmt.Errorf("create command %s: %w", cmd.Name, err)
		}
	}

	for _, cmd := range existing {
		if _, ok := b.registry.Commands[cmd.Name]; ok {
			continue
		}
		if err := b.session.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
			b.logger.Warn("stale command delete failed", zap.String("command", cmd.Name), zap.Error(err))
		}
	}
	b.logger.Info("commands registered", zap.Int("count", len(commands)), zap.String("guild_id", guildID))
	return nil
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	out := make(options, len(opts))
	for _, opt := range opts {
		out[opt.Name] = opt
	}
	return out
}

func (o options) String(name string) string {
	if opt, ok := o[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func (o options) Int(name string, fallback int) int {
	if opt, ok := o[name]; ok {
		return int(opt.IntValue())
	}
	return fallback
}

func (o options) Bool(name string) (bool, bool) {
	if opt, ok := o[name]; ok {
		return opt.BoolValue(), true
	}
	return false, false
}

func (o options) User(s *discordgo.Session, name string) *discordgo.User {
	if opt, ok := o[name]; ok {
		return opt.UserValue(s)
	}
	return nil
}

func (o options) Role(s *discordgo.Session, guildID, name string) *discordgo.Role {
	if opt, ok := o[name]; ok {
		return opt.RoleValue(s, guildID)
	}
	return nil
}

// Attachment resolves an attachment option through the interaction's resolved data.
func (o options) Attachment(data discordgo.ApplicationCommandInteractionData, name string) *discordgo.MessageAttachment {
	opt, ok := o[name]
	if !ok || data.Resolved == nil {
		return nil
	}
	id, _ := opt.Value.(string)
	return data.Resolved.Attachments[id]
}

// subcommand returns the invoked subcommand and its options.
func subcommand(data discordgo.ApplicationCommandInteractionData) (string, options) {
	if len(data.Options) == 0 {
		return "", options{}
	}
	sub := data.Options[0]
	if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", optionMap(data.Options)
	}
	return sub.Name, optionMap(sub.Options)
}

func int64Ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }
