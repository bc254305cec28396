// Package profiles implements profile viewing and editing rules.
package profiles

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"hearth-bot/internal/modules/leveling"
	"hearth-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrForbidden         = errors.New("you can only update your own profile")
	ErrPrivate           = errors.New("this user's profile is private")
	ErrInvalidBackground = errors.New("background must be an http(s) image url")
	ErrAboutMeTooLong    = errors.New("about me is too long")
)

const (
	MaxAboutMe          = 200
	DefaultLeaderboard  = 10
	MaxLeaderboardSize  = 25
	adminPermissionMask = discordgo.PermissionBanMembers | discordgo.PermissionAdministrator
)

// Actor is the member invoking a profile command.
type Actor struct {
	UserID      string
	Permissions int64
}

func (a Actor) IsAdmin() bool {
	return a.Permissions&adminPermissionMask != 0
}

// Editor loads and mutates profiles with the same serialization as XP awards.
type Editor interface {
	EnsureProfile(ctx context.Context, member leveling.Member) (storage.Profile, bool, error)
	Update(ctx context.Context, member leveling.Member, mutate func(*storage.Profile) error) (storage.Profile, error)
}

type Service struct {
	editor   Editor
	store    storage.ProfileStore
	validate *validator.Validate
	logger   *zap.Logger
}

func New(editor Editor, store storage.ProfileStore, logger *zap.Logger) *Service {
	return &Service{editor: editor, store: store, validate: validator.New(), logger: logger}
}

// View returns target's profile. Private profiles are visible to their owner and admins only.
func (s *Service) View(ctx context.Context, actor Actor, target leveling.Member) (storage.Profile, error) {
	profile, _, err := s.editor.EnsureProfile(ctx, target)
	if err != nil {
		return storage.Profile{}, err
	}
	if !profile.PublicProfile && actor.UserID != target.UserID && !actor.IsAdmin() {
		return storage.Profile{}, ErrPrivate
	}
	return profile, nil
}

func (s *Service) SetBackground(ctx context.Context, actor Actor, target leveling.Member, raw string) (storage.Profile, error) {
	raw = strings.TrimSpace(raw)
	if err := s.validate.Var(raw, "required,http_url"); err != nil {
		return storage.Profile{}, ErrInvalidBackground
	}
	return s.edit(ctx, actor, target, "background", func(p *storage.Profile) error {
		p.Background = raw
		return nil
	})
}

// SetAboutMe replaces the about-me text. Blank text restores the default.
func (s *Service) SetAboutMe(ctx context.Context, actor Actor, target leveling.Member, text string) (storage.Profile, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > MaxAboutMe {
		return storage.Profile{}, ErrAboutMeTooLong
	}
	if text == "" {
		text = storage.DefaultAboutMe
	}
	return s.edit(ctx, actor, target, "about_me", func(p *storage.Profile) error {
		p.AboutMe = text
		return nil
	})
}

func (s *Service) SetPublic(ctx context.Context, actor Actor, target leveling.Member, public bool) (storage.Profile, error) {
	return s.edit(ctx, actor, target, "public_profile", func(p *storage.Profile) error {
		p.PublicProfile = public
		return nil
	})
}

func (s *Service) ToggleLevelNotify(ctx context.Context, actor Actor, target leveling.Member) (storage.Profile, error) {
	return s.edit(ctx, actor, target, "level_notify", func(p *storage.Profile) error {
		p.LevelNotify = !p.LevelNotify
		return nil
	})
}

// Leaderboard returns the top profiles by level then XP.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]storage.Profile, error) {
	if limit <= 0 {
		limit = DefaultLeaderboard
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}
	return s.store.TopProfiles(ctx, limit)
}

func (s *Service) edit(ctx context.Context, actor Actor, target leveling.Member, field string, mutate func(*storage.Profile) error) (storage.Profile, error) {
	if actor.UserID != target.UserID && !actor.IsAdmin() {
		return storage.Profile{}, ErrForbidden
	}
	profile, err := s.editor.Update(ctx, target, mutate)
	if err != nil {
		s.logger.Error("profile update failed", zap.String("user_id", target.UserID), zap.String("field", field), zap.Error(err))
		return storage.Profile{}, err
	}
	s.logger.Info("profile updated", zap.String("user_id", target.UserID), zap.String("actor_id", actor.UserID), zap.String("field", field))
	return profile, nil
}

// Progress reports XP progress toward the next level as a 0..1 ratio.
func Progress(profile storage.Profile) (xp, need int, ratio float64) {
	need = leveling.Threshold(profile.Level)
	xp = profile.XP
	if xp < 0 {
		xp = 0
	}
	if need <= 0 {
		return xp, need, 1
	}
	ratio = float64(xp) / float64(need)
	if ratio > 1 {
		ratio = 1
	}
	return xp, need, ratio
}
