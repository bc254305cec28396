package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("storage: not found")
	ErrAlreadyExists = errors.New("storage: already exists")
)

const DefaultAboutMe = "No About me set."

// Profile is a member's leveling and profile-card state.
type Profile struct {
	UserID          string    `bson:"_id"`
	Username        string    `bson:"username"`
	Level           int       `bson:"level"`
	XP              int       `bson:"xp"`
	Background      string    `bson:"background"`
	AboutMe         string    `bson:"about_me"`
	PublicProfile   bool      `bson:"public_profile"`
	LevelNotify     bool      `bson:"level_notify"`
	InfractionCount int       `bson:"infraction_count"`
	Infractions     []string  `bson:"infractions"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func NewProfile(userID, username, background string, now time.Time) Profile {
	return Profile{
		UserID:        userID,
		Username:      username,
		Level:         1,
		XP:            1,
		Background:    background,
		AboutMe:       DefaultAboutMe,
		PublicProfile: true,
		LevelNotify:   true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ReactionRole maps an emoji on a message to a guild role. An empty MessageID
// applies to the configured default reaction-role message.
type ReactionRole struct {
	MessageID string `bson:"message_id"`
	Emoji     string `bson:"emoji"`
	RoleID    string `bson:"role_id"`
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (Profile, error)
	CreateProfile(ctx context.Context, profile Profile) error
	SaveProfile(ctx context.Context, profile Profile) error
	AddInfraction(ctx context.Context, userID, note string) (int, error)
	TopProfiles(ctx context.Context, limit int) ([]Profile, error)
}

type ReactionRoleStore interface {
	ListReactionRoles(ctx context.Context) ([]ReactionRole, error)
	AddReactionRole(ctx context.Context, mapping ReactionRole) error
	RemoveReactionRole(ctx context.Context, messageID, emoji string) error
}

type Store interface {
	ProfileStore
	ReactionRoleStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// MaxInfractionNotes bounds the per-profile note log.
const MaxInfractionNotes = 25

// AppendInfraction records one infraction on p and returns the new count.
func AppendInfraction(p *Profile, note string, now time.Time) int {
	p.InfractionCount++
	p.Infractions = append(p.Infractions, note)
	if len(p.Infractions) > MaxInfractionNotes {
		p.Infractions = p.Infractions[len(p.Infractions)-MaxInfractionNotes:]
	}
	p.UpdatedAt = now
	return p.InfractionCount
}
