package moderation

import (
	"context"
	"fmt"

	"hearth-bot/internal/modules/audit"
	"hearth-bot/internal/modules/leveling"
	"hearth-bot/internal/utils"

	"go.uber.org/zap"
)

// Message is the part of a chat message the invite guard inspects.
type Message struct {
	GuildID   string
	ChannelID string
	MessageID string
	Author    leveling.Member
	Content   string
	// CanManage is set when the author holds Manage Messages.
	CanManage bool
}

type Verdict struct {
	Link        string
	Infractions int
}

// Reply is the channel notice posted after an invite is removed.
func (v Verdict) Reply(mention string) string {
	return fmt.Sprintf("%s cannot send discord invites.", mention)
}

// CheckInvite reports whether msg carries a guild invite that must be removed.
// The author receives an infraction; deleting the message is left to the caller.
func (m *Module) CheckInvite(ctx context.Context, msg Message) (Verdict, bool) {
	if msg.CanManage {
		return Verdict{}, false
	}
	link, ok := utils.FindInvite(msg.Content)
	if !ok {
		return Verdict{}, false
	}

	verdict := Verdict{Link: link}
	count, err := m.infractions.AddInfraction(ctx, msg.Author, "invite link: "+link)
	if err != nil {
		m.logger.Warn("record invite infraction failed", zap.String("user_id", msg.Author.UserID), zap.Error(err))
	} else {
		verdict.Infractions = count
	}
	detail := fmt.Sprintf("type=INVITE channel=%s url=%s", msg.ChannelID, link)
	m.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.Author.UserID, "", "invite_guard", detail)
	return verdict, true
}
