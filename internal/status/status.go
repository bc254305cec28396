// Package status rotates the bot's "Listening" presence.
package status

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
)

var DefaultStatuses = []string{
	"Online",
	"Idle",
	"Do Not Disturb",
	"Invisible",
	"Away",
	"Offline",
}

// Setter publishes a listening activity. *discordgo.Session satisfies it.
type Setter interface {
	UpdateListeningStatus(name string) error
}

type Rotator struct {
	setter   Setter
	statuses func() []string
	interval time.Duration
	start    func(n int) int
	logger   *zap.Logger
}

// New builds a rotator. statuses is read on every tick so reloaded settings apply.
func New(setter Setter, statuses func() []string, interval time.Duration, logger *zap.Logger) *Rotator {
	return &Rotator{
		setter:   setter,
		statuses: statuses,
		interval: interval,
		start:    rand.IntN,
		logger:   logger,
	}
}

// Run sets a random status immediately, then advances one entry per interval
// until ctx is cancelled.
func (r *Rotator) Run(ctx context.Context) error {
	list := r.list()
	i := r.start(len(list))
	r.set(list[i])
	if r.interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			list = r.list()
			i = (i + 1) % len(list)
			r.set(list[i])
		}
	}
}

func (r *Rotator) list() []string {
	var list []string
	for _, entry := range r.statuses() {
		if entry = strings.TrimSpace(entry); entry != "" {
			list = append(list, entry)
		}
	}
	if len(list) == 0 {
		return DefaultStatuses
	}
	return list
}

func (r *Rotator) set(text string) {
	if err := r.setter.UpdateListeningStatus(text); err != nil {
		r.logger.Warn("status update failed", zap.String("status", text), zap.Error(err))
		return
	}
	r.logger.Debug("status updated", zap.String("status", text))
}
