// Package moderation holds the invite guard, warnings and purge planning.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hearth-bot/internal/modules/audit"
	"hearth-bot/internal/modules/leveling"
	"hearth-bot/internal/storage"

	"go.uber.org/zap"
)

var ErrReasonRequired = errors.New("a reason is required")

// Infractions records infractions against members.
type Infractions interface {
	AddInfraction(ctx context.Context, member leveling.Member, note string) (int, error)
}

type Module struct {
	infractions Infractions
	profiles    storage.ProfileStore
	audit       *audit.Logger
	logger      *zap.Logger
}

func New(infractions Infractions, profiles storage.ProfileStore, auditLogger *audit.Logger, logger *zap.Logger) *Module {
	return &Module{infractions: infractions, profiles: profiles, audit: auditLogger, logger: logger}
}

// Warn records a warning against target and returns their infraction count.
func (m *Module) Warn(ctx context.Context, guildID, actorID string, target leveling.Member, reason string) (int, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return 0, ErrReasonRequired
	}
	count, err := m.infractions.AddInfraction(ctx, target, "warn: "+reason)
	if err != nil {
		return 0, err
	}
	m.audit.Log(ctx, audit.LevelWarn, guildID, target.UserID, actorID, "warn", fmt.Sprintf("count=%d reason=%s", count, reason))
	return count, nil
}

// History returns target's infraction count and most recent notes.
func (m *Module) History(ctx context.Context, userID string) (int, []string, error) {
	profile, err := m.profiles.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return profile.InfractionCount, profile.Infractions, nil
}

// RecordAction logs a kick, ban or role removal issued through a command.
func (m *Module) RecordAction(ctx context.Context, guildID, actorID, userID, action, reason string) {
	m.audit.Log(ctx, audit.LevelInfo, guildID, userID, actorID, action, "reason="+reason)
}
