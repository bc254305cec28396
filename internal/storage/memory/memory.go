// Package memory is a process-local store for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"hearth-bot/internal/storage"
)

type roleKey struct {
	messageID string
	emoji     string
}

type Store struct {
	mu       sync.RWMutex
	profiles map[string]storage.Profile
	roles    map[roleKey]storage.ReactionRole
	order    []roleKey
}

func New() *Store {
	return &Store{
		profiles: make(map[string]storage.Profile),
		roles:    make(map[roleKey]storage.ReactionRole),
	}
}

func (s *Store) GetProfile(ctx context.Context, userID string) (storage.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return storage.Profile{}, storage.ErrNotFound
	}
	return cloneProfile(profile), nil
}

func (s *Store) CreateProfile(ctx context.Context, profile storage.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.UserID]; ok {
		return storage.ErrAlreadyExists
	}
	s.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

func (s *Store) SaveProfile(ctx context.Context, profile storage.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = cloneProfile(profile)
	return nil
}

func (s *Store) AddInfraction(ctx context.Context, userID, note string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	profile = cloneProfile(profile)
	count := storage.AppendInfraction(&profile, note, time.Now())
	s.profiles[userID] = profile
	return count, nil
}

func (s *Store) TopProfiles(ctx context.Context, limit int) ([]storage.Profile, error) {
	s.mu.RLock()
	profiles := make([]storage.Profile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		profiles = append(profiles, cloneProfile(profile))
	}
	s.mu.RUnlock()

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Level != profiles[j].Level {
			return profiles[i].Level > profiles[j].Level
		}
		if profiles[i].XP != profiles[j].XP {
			return profiles[i].XP > profiles[j].XP
		}
		return profiles[i].UserID < profiles[j].UserID
	})
	if limit > 0 && len(profiles) > limit {
		profiles = profiles[:limit]
	}
	return profiles, nil
}

func (s *Store) ListReactionRoles(ctx context.Context) ([]storage.ReactionRole, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.ReactionRole, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.roles[key])
	}
	return out, nil
}

func (s *Store) AddReactionRole(ctx context.Context, mapping storage.ReactionRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roleKey{messageID: mapping.MessageID, emoji: mapping.Emoji}
	if _, ok := s.roles[key]; !ok {
		s.order = append(s.order, key)
	}
	s.roles[key] = mapping
	return nil
}

func (s *Store) RemoveReactionRole(ctx context.Context, messageID, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roleKey{messageID: messageID, emoji: emoji}
	if _, ok := s.roles[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.roles, key)
	for i, existing := range s.order {
		if existing == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close(ctx context.Context) error { return nil }

func cloneProfile(p storage.Profile) storage.Profile {
	if p.Infractions != nil {
		p.Infractions = append([]string(nil), p.Infractions...)
	}
	return p
}
