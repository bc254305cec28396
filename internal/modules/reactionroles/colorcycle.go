package reactionroles

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type RoleEditor interface {
	SetRoleColor(guildID, roleID string, color int) error
}

// ColorCycler recolors one decorative role on a fixed interval.
type ColorCycler struct {
	editor   RoleEditor
	guildID  string
	roleID   string
	interval time.Duration
	pick     func() int
	logger   *zap.Logger
}

func NewColorCycler(editor RoleEditor, guildID, roleID string, interval time.Duration, pick func() int, logger *zap.Logger) *ColorCycler {
	return &ColorCycler{
		editor:   editor,
		guildID:  guildID,
		roleID:   roleID,
		interval: interval,
		pick:     pick,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled.
func (c *ColorCycler) Run(ctx context.Context) error {
	if c.guildID == "" || c.roleID == "" || c.interval <= 0 {
		c.logger.Info("role color cycle disabled")
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.cycle()
		}
	}
}

func (c *ColorCycler) cycle() {
	color := c.pick()
	if err := c.editor.SetRoleColor(c.guildID, c.roleID, color); err != nil {
		c.logger.Warn("role color update failed", zap.String("role_id", c.roleID), zap.Error(err))
		return
	}
	c.logger.Debug("role color updated", zap.String("role_id", c.roleID), zap.Int("color", color))
}
