// Package reactionroles grants and revokes guild roles from message reactions.
package reactionroles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"hearth-bot/internal/storage"

	"go.uber.org/zap"
)

var ErrInvalidMapping = errors.New("invalid reaction role mapping")

// Guild is the role mutation surface the synchronizer needs.
type Guild interface {
	HasRole(guildID, roleID string) bool
	HasMember(guildID, userID string) bool
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
}

type Reaction struct {
	GuildID   string
	ChannelID string
	MessageID string
	UserID    string
	Bot       bool
	Emoji     Emoji
}

type Outcome int

const (
	Ignored Outcome = iota
	Granted
	Revoked
	Failed
)

type indexKey struct {
	messageID string
	emoji     string
}

// grantKey identifies one member's reaction. grants records the role each
// reaction was given so a removal revokes that role even after the mapping moved.
type grantKey struct {
	guildID   string
	userID    string
	messageID string
	emoji     string
}

type Synchronizer struct {
	store          storage.ReactionRoleStore
	guild          Guild
	logger         *zap.Logger
	defaultMessage func() string

	mu    sync.RWMutex
	index map[indexKey]string

	grantsMu sync.Mutex
	grants   map[grantKey]string
}

// New builds a synchronizer. defaultMessage returns the message id that
// mappings without a message id apply to; it may return "".
func New(store storage.ReactionRoleStore, guild Guild, defaultMessage func() string, logger *zap.Logger) *Synchronizer {
	if defaultMessage == nil {
		defaultMessage = func() string { return "" }
	}
	return &Synchronizer{
		store:          store,
		guild:          guild,
		logger:         logger,
		defaultMessage: defaultMessage,
		index:          make(map[indexKey]string),
		grants:         make(map[grantKey]string),
	}
}

// Initialize rebuilds the index from the store. The live index is only
// replaced once every row loaded and validated.
func (s *Synchronizer) Initialize(ctx context.Context) error {
	rows, err := s.store.ListReactionRoles(ctx)
	if err != nil {
		return fmt.Errorf("load reaction roles: %w", err)
	}

	next := make(map[indexKey]string, len(rows))
	for _, row := range rows {
		emoji, err := ParseEmoji(row.Emoji)
		if err != nil || !validRoleID(row.RoleID) {
			return fmt.Errorf("%w: message=%q emoji=%q role=%q", ErrInvalidMapping, row.MessageID, row.Emoji, row.RoleID)
		}
		next[indexKey{messageID: row.MessageID, emoji: emoji.Key()}] = row.RoleID
	}

	s.mu.Lock()
	s.index = next
	s.mu.Unlock()

	s.logger.Info("reaction roles loaded", zap.Int("count", len(next)))
	return nil
}

// AddMapping persists the mapping, then publishes it to the index.
func (s *Synchronizer) AddMapping(ctx context.Context, emoji Emoji, roleID, messageID string) error {
	if emoji.IsZero() {
		return fmt.Errorf("%w: empty emoji", ErrInvalidMapping)
	}
	if !validRoleID(roleID) {
		return fmt.Errorf("%w: role id %q", ErrInvalidMapping, roleID)
	}

	mapping := storage.ReactionRole{MessageID: messageID, Emoji: emoji.Key(), RoleID: roleID}
	if err := s.store.AddReactionRole(ctx, mapping); err != nil {
		return fmt.Errorf("save reaction role: %w", err)
	}

	s.mu.Lock()
	s.index[indexKey{messageID: messageID, emoji: mapping.Emoji}] = roleID
	s.mu.Unlock()
	return nil
}

// RemoveMapping deletes the mapping from the store, then from the index.
func (s *Synchronizer) RemoveMapping(ctx context.Context, emoji Emoji, messageID string) error {
	if err := s.store.RemoveReactionRole(ctx, messageID, emoji.Key()); err != nil {
		return fmt.Errorf("remove reaction role: %w", err)
	}

	s.mu.Lock()
	delete(s.index, indexKey{messageID: messageID, emoji: emoji.Key()})
	s.mu.Unlock()
	return nil
}

// Lookup resolves the role for an emoji on a message. Mappings without a
// message id answer for the default message only.
func (s *Synchronizer) Lookup(messageID string, emoji Emoji) (string, bool) {
	key := emoji.Key()
	s.mu.RLock()
	defer s.mu.RUnlock()

	if roleID, ok := s.index[indexKey{messageID: messageID, emoji: key}]; ok {
		return roleID, true
	}
	if messageID != "" && messageID == s.defaultMessage() {
		roleID, ok := s.index[indexKey{emoji: key}]
		return roleID, ok
	}
	return "", false
}

// Mappings lists the indexed mappings ordered by message then emoji.
func (s *Synchronizer) Mappings() []storage.ReactionRole {
	s.mu.RLock()
	out := make([]storage.ReactionRole, 0, len(s.index))
	for key, roleID := range s.index {
		out = append(out, storage.ReactionRole{MessageID: key.messageID, Emoji: key.emoji, RoleID: roleID})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageID != out[j].MessageID {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out
}

// ForMessage lists the mappings that apply to messageID.
func (s *Synchronizer) ForMessage(messageID string) []storage.ReactionRole {
	isDefault := messageID != "" && messageID == s.defaultMessage()
	var out []storage.ReactionRole
	for _, mapping := range s.Mappings() {
		if mapping.MessageID == messageID || (isDefault && mapping.MessageID == "") {
			out = append(out, mapping)
		}
	}
	return out
}

func (s *Synchronizer) OnReactionAdded(ctx context.Context, reaction Reaction) Outcome {
	roleID, ok := s.resolve(reaction)
	if !ok {
		return Ignored
	}

	grant := keyFor(reaction)
	if !s.reserveGrant(grant, roleID) {
		return Ignored
	}
	if err := s.guild.AddRole(reaction.GuildID, reaction.UserID, roleID); err != nil {
		s.releaseGrant(grant)
		s.logger.Warn("reaction role grant failed",
			zap.String("guild_id", reaction.GuildID),
			zap.String("user_id", reaction.UserID),
			zap.String("role_id", roleID),
			zap.Error(err))
		return Failed
	}
	s.logger.Debug("reaction role granted", zap.String("user_id", reaction.UserID), zap.String("role_id", roleID))
	return Granted
}

// OnReactionRemoved revokes the role recorded for the reaction, falling back
// to the current mapping when the grant predates this process.
func (s *Synchronizer) OnReactionRemoved(ctx context.Context, reaction Reaction) Outcome {
	if !eligible(reaction) {
		return Ignored
	}
	roleID, ok := s.takeGrant(keyFor(reaction))
	if !ok {
		roleID, ok = s.resolve(reaction)
		if !ok {
			return Ignored
		}
	}

	if err := s.guild.RemoveRole(reaction.GuildID, reaction.UserID, roleID); err != nil {
		s.logger.Warn("reaction role revoke failed",
			zap.String("guild_id", reaction.GuildID),
			zap.String("user_id", reaction.UserID),
			zap.String("role_id", roleID),
			zap.Error(err))
		return Failed
	}
	s.logger.Debug("reaction role revoked", zap.String("user_id", reaction.UserID), zap.String("role_id", roleID))
	return Revoked
}

func eligible(reaction Reaction) bool {
	return !reaction.Bot && reaction.GuildID != "" && reaction.UserID != "" && !reaction.Emoji.IsZero()
}

func keyFor(reaction Reaction) grantKey {
	return grantKey{
		guildID:   reaction.GuildID,
		userID:    reaction.UserID,
		messageID: reaction.MessageID,
		emoji:     reaction.Emoji.Key(),
	}
}

func (s *Synchronizer) resolve(reaction Reaction) (string, bool) {
	if !eligible(reaction) {
		return "", false
	}
	roleID, ok := s.Lookup(reaction.MessageID, reaction.Emoji)
	if !ok {
		return "", false
	}
	if !s.guild.HasRole(reaction.GuildID, roleID) {
		s.logger.Warn("reaction role points at unknown role", zap.String("guild_id", reaction.GuildID), zap.String("role_id", roleID))
		return "", false
	}
	if !s.guild.HasMember(reaction.GuildID, reaction.UserID) {
		s.logger.Warn("reaction from unknown member", zap.String("guild_id", reaction.GuildID), zap.String("user_id", reaction.UserID))
		return "", false
	}
	return roleID, true
}

func (s *Synchronizer) reserveGrant(key grantKey, roleID string) bool {
	s.grantsMu.Lock()
	defer s.grantsMu.Unlock()
	if _, ok := s.grants[key]; ok {
		return false
	}
	s.grants[key] = roleID
	return true
}

func (s *Synchronizer) takeGrant(key grantKey) (string, bool) {
	s.grantsMu.Lock()
	defer s.grantsMu.Unlock()
	roleID, ok := s.grants[key]
	delete(s.grants, key)
	return roleID, ok
}

func (s *Synchronizer) releaseGrant(key grantKey) {
	s.grantsMu.Lock()
	delete(s.grants, key)
	s.grantsMu.Unlock()
}

func validRoleID(roleID string) bool {
	id, err := strconv.ParseUint(roleID, 10, 64)
	return err == nil && id != 0
}
