// Package leveling awards chat XP behind a per-user cooldown and applies level-ups.
package leveling

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"hearth-bot/internal/storage"

	"go.uber.org/zap"
)

// Threshold is the XP needed to finish level.
func Threshold(level int) int {
	next := float64(level + 1)
	return int(math.Floor(math.Round(25 * next * next)))
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Member struct {
	UserID    string
	Username  string
	AvatarURL string
}

type LevelUp struct {
	Member        Member
	ChannelID     string
	Level         int
	NextThreshold int
}

type Notifier interface {
	NotifyLevelUp(ctx context.Context, event LevelUp) error
}

type Config struct {
	Cooldown     time.Duration
	Cleanup      time.Duration
	XPPerMessage int
}

type Result struct {
	Profile   storage.Profile
	LeveledUp bool
}

const lockStripes = 64

type Tracker struct {
	cfg      Config
	store    storage.ProfileStore
	notifier Notifier
	logger   *zap.Logger
	clock    Clock
	banner   func() string
	observe  func(LevelUp)

	mu   sync.Mutex
	last map[string]time.Time

	locks [lockStripes]sync.Mutex
}

func New(cfg Config, store storage.ProfileStore, notifier Notifier, logger *zap.Logger) *Tracker {
	if cfg.XPPerMessage <= 0 {
		cfg.XPPerMessage = 1
	}
	if cfg.Cleanup < cfg.Cooldown {
		cfg.Cleanup = cfg.Cooldown
	}
	return &Tracker{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		logger:   logger,
		clock:    realClock{},
		banner:   func() string { return "" },
		last:     make(map[string]time.Time),
	}
}

func (t *Tracker) WithClock(clock Clock) {
	t.clock = clock
}

// WithBanners sets the background picker used for profiles created here.
func (t *Tracker) WithBanners(pick func() string) {
	t.banner = pick
}

// WithObserver registers a hook that sees every level-up, notified or not.
func (t *Tracker) WithObserver(observe func(LevelUp)) {
	t.observe = observe
}

// RecordMessage awards message XP unless the member is still on cooldown.
// The cooldown slot is claimed before any storage I/O, so concurrent messages
// from one member award at most once per window.
func (t *Tracker) RecordMessage(ctx context.Context, member Member, channelID string, ts time.Time) (bool, error) {
	if ts.IsZero() {
		ts = t.clock.Now()
	}
	if !t.claim(member.UserID, ts) {
		return false, nil
	}
	if _, err := t.Award(ctx, member, t.cfg.XPPerMessage, channelID); err != nil {
		return false, err
	}
	return true, nil
}

// Award adds amount XP and applies at most one level-up, persisting once.
func (t *Tracker) Award(ctx context.Context, member Member, amount int, channelID string) (Result, error) {
	lock := t.lockFor(member.UserID)
	lock.Lock()
	profile, err := t.addXPLocked(ctx, member, amount)
	if err != nil {
		lock.Unlock()
		return Result{}, err
	}
	leveled := applyLevelUp(&profile)
	if err := t.store.SaveProfile(ctx, profile); err != nil {
		lock.Unlock()
		return Result{}, fmt.Errorf("save profile %s: %w", member.UserID, err)
	}
	lock.Unlock()

	if leveled {
		t.notify(ctx, member, channelID, profile)
	}
	return Result{Profile: profile, LeveledUp: leveled}, nil
}

// AwardXP adds amount XP without checking for a level-up. A missing profile is created.
func (t *Tracker) AwardXP(ctx context.Context, member Member, amount int) (storage.Profile, error) {
	lock := t.lockFor(member.UserID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := t.addXPLocked(ctx, member, amount)
	if err != nil {
		return storage.Profile{}, err
	}
	if err := t.store.SaveProfile(ctx, profile); err != nil {
		return storage.Profile{}, fmt.Errorf("save profile %s: %w", member.UserID, err)
	}
	return profile, nil
}

// TryLevelUp consumes one threshold of XP if the member has enough.
func (t *Tracker) TryLevelUp(ctx context.Context, member Member, channelID string) (bool, error) {
	lock := t.lockFor(member.UserID)
	lock.Lock()
	profile, err := t.store.GetProfile(ctx, member.UserID)
	if err != nil {
		lock.Unlock()
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load profile %s: %w", member.UserID, err)
	}
	if !applyLevelUp(&profile) {
		lock.Unlock()
		return false, nil
	}
	profile.UpdatedAt = t.clock.Now()
	if err := t.store.SaveProfile(ctx, profile); err != nil {
		lock.Unlock()
		return false, fmt.Errorf("save profile %s: %w", member.UserID, err)
	}
	lock.Unlock()

	t.notify(ctx, member, channelID, profile)
	return true, nil
}

// EnsureProfile returns the member's profile, creating the default one if needed.
func (t *Tracker) EnsureProfile(ctx context.Context, member Member) (storage.Profile, bool, error) {
	profile, err := t.store.GetProfile(ctx, member.UserID)
	if err == nil {
		return profile, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.Profile{}, false, fmt.Errorf("load profile %s: %w", member.UserID, err)
	}

	profile = storage.NewProfile(member.UserID, member.Username, t.banner(), t.clock.Now())
	if err := t.store.CreateProfile(ctx, profile); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			existing, getErr := t.store.GetProfile(ctx, member.UserID)
			return existing, false, getErr
		}
		return storage.Profile{}, false, fmt.Errorf("create profile %s: %w", member.UserID, err)
	}
	return profile, true, nil
}

// Update applies mutate to the member's profile under the member's award lock.
// A mutate error aborts without saving.
func (t *Tracker) Update(ctx context.Context, member Member, mutate func(*storage.Profile) error) (storage.Profile, error) {
	lock := t.lockFor(member.UserID)
	lock.Lock()
	defer lock.Unlock()

	profile, _, err := t.EnsureProfile(ctx, member)
	if err != nil {
		return storage.Profile{}, err
	}
	if err := mutate(&profile); err != nil {
		return storage.Profile{}, err
	}
	profile.UpdatedAt = t.clock.Now()
	if err := t.store.SaveProfile(ctx, profile); err != nil {
		return storage.Profile{}, fmt.Errorf("save profile %s: %w", member.UserID, err)
	}
	return profile, nil
}

// AddInfraction records note against the member and returns the new count.
func (t *Tracker) AddInfraction(ctx context.Context, member Member, note string) (int, error) {
	lock := t.lockFor(member.UserID)
	lock.Lock()
	defer lock.Unlock()

	if _, _, err := t.EnsureProfile(ctx, member); err != nil {
		return 0, err
	}
	count, err := t.store.AddInfraction(ctx, member.UserID, note)
	if err != nil {
		return 0, fmt.Errorf("add infraction %s: %w", member.UserID, err)
	}
	return count, nil
}

// Tracked reports how many cooldown entries are held.
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}

func (t *Tracker) claim(userID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sweepLocked(now)
	if last, ok := t.last[userID]; ok && now.Sub(last) < t.cfg.Cooldown {
		return false
	}
	t.last[userID] = now
	return true
}

func (t *Tracker) sweepLocked(now time.Time) {
	for userID, last := range t.last {
		if now.Sub(last) >= t.cfg.Cleanup {
			delete(t.last, userID)
		}
	}
}

func (t *Tracker) addXPLocked(ctx context.Context, member Member, amount int) (storage.Profile, error) {
	now := t.clock.Now()
	profile, err := t.store.GetProfile(ctx, member.UserID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		profile = storage.NewProfile(member.UserID, member.Username, t.banner(), now)
		profile.XP = 0
	case err != nil:
		return storage.Profile{}, fmt.Errorf("load profile %s: %w", member.UserID, err)
	}

	profile.XP += amount
	if member.Username != "" {
		profile.Username = member.Username
	}
	profile.UpdatedAt = now
	return profile, nil
}

func (t *Tracker) notify(ctx context.Context, member Member, channelID string, profile storage.Profile) {
	t.logger.Info("level up", zap.String("user_id", member.UserID), zap.Int("level", profile.Level))
	event := LevelUp{
		Member:        member,
		ChannelID:     channelID,
		Level:         profile.Level,
		NextThreshold: Threshold(profile.Level),
	}
	if t.observe != nil {
		t.observe(event)
	}
	if !profile.LevelNotify || t.notifier == nil {
		return
	}
	if err := t.notifier.NotifyLevelUp(ctx, event); err != nil {
		t.logger.Warn("level up notification failed", zap.String("user_id", member.UserID), zap.Error(err))
	}
}

func (t *Tracker) lockFor(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &t.locks[h.Sum32()%lockStripes]
}

// applyLevelUp advances at most one level per call.
func applyLevelUp(profile *storage.Profile) bool {
	need := Threshold(profile.Level)
	if profile.XP < need {
		return false
	}
	profile.XP -= need
	profile.Level++
	return true
}
