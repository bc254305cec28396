package leveling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hearth-bot/internal/storage"
	"hearth-bot/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []LevelUp
}

func (r *recordingNotifier) NotifyLevelUp(ctx context.Context, event LevelUp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

type failingStore struct {
	*memory.Store
}

func (failingStore) SaveProfile(ctx context.Context, profile storage.Profile) error {
	return errors.New("database unavailable")
}

var member = Member{UserID: "u1", Username: "alice"}

func newTracker(t *testing.T) (*Tracker, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	tracker := New(Config{Cooldown: 3 * time.Second, Cleanup: 30 * time.Second, XPPerMessage: 1}, store, notifier, zap.NewNop())
	tracker.WithClock(&fakeClock{now: time.Unix(1_700_000_000, 0)})
	return tracker, store, notifier
}

func seed(t *testing.T, store *memory.Store, level, xp int) {
	t.Helper()
	profile := storage.NewProfile(member.UserID, member.Username, "", time.Now())
	profile.Level = level
	profile.XP = xp
	require.NoError(t, store.SaveProfile(context.Background(), profile))
}

func TestThresholdMonotonic(t *testing.T) {
	assert.Equal(t, 100, Threshold(1))
	assert.Equal(t, 225, Threshold(2))
	for level := 1; level < 1000; level++ {
		require.Less(t, Threshold(level), Threshold(level+1), "level %d", level)
	}
}

func TestAwardExactThresholdLevelsOnce(t *testing.T) {
	tracker, store, notifier := newTracker(t)
	seed(t, store, 1, 0)

	res, err := tracker.Award(context.Background(), member, Threshold(1), "c1")
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Equal(t, 2, res.Profile.Level)
	assert.Equal(t, 0, res.Profile.XP)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, 2, notifier.events[0].Level)
	assert.Equal(t, Threshold(2), notifier.events[0].NextThreshold)
	assert.Equal(t, "c1", notifier.events[0].ChannelID)
}

func TestAwardKeepsRemainder(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 1, 0)

	k := Threshold(2) - 1
	res, err := tracker.Award(context.Background(), member, Threshold(1)+k, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Profile.Level)
	assert.Equal(t, k, res.Profile.XP)
}

func TestAwardNeverSkipsLevels(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 1, 0)

	res, err := tracker.Award(context.Background(), member, Threshold(1)+Threshold(2)+Threshold(3), "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Profile.Level)
	assert.Equal(t, Threshold(2)+Threshold(3), res.Profile.XP)

	leveled, err := tracker.TryLevelUp(context.Background(), member, "c1")
	require.NoError(t, err)
	assert.True(t, leveled)

	got, err := store.GetProfile(context.Background(), member.UserID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, Threshold(3), got.XP)
}

func TestLevelNotifyDisabled(t *testing.T) {
	tracker, store, notifier := newTracker(t)
	profile := storage.NewProfile(member.UserID, member.Username, "", time.Now())
	profile.XP = 0
	profile.LevelNotify = false
	require.NoError(t, store.SaveProfile(context.Background(), profile))
	var observed []LevelUp
	tracker.WithObserver(func(event LevelUp) { observed = append(observed, event) })

	res, err := tracker.Award(context.Background(), member, Threshold(1), "c1")
	require.NoError(t, err)
	assert.True(t, res.LeveledUp)
	assert.Empty(t, notifier.events)
	require.Len(t, observed, 1)
	assert.Equal(t, 2, observed[0].Level)
}

func TestAwardXPCreatesProfileOnDemand(t *testing.T) {
	tracker, store, _ := newTracker(t)
	tracker.WithBanners(func() string { return "https://example.com/banner.png" })

	profile, err := tracker.AwardXP(context.Background(), member, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Level)
	assert.Equal(t, 5, profile.XP)

	got, err := store.GetProfile(context.Background(), member.UserID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/banner.png", got.Background)
	assert.Equal(t, storage.DefaultAboutMe, got.AboutMe)
}

func TestTryLevelUpWithoutProfile(t *testing.T) {
	tracker, _, _ := newTracker(t)
	leveled, err := tracker.TryLevelUp(context.Background(), member, "c1")
	require.NoError(t, err)
	assert.False(t, leveled)
}

func TestCooldownWindow(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 1, 0)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	awarded, err := tracker.RecordMessage(ctx, member, "c1", start)
	require.NoError(t, err)
	assert.True(t, awarded)

	awarded, err = tracker.RecordMessage(ctx, member, "c1", start.Add(2999*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, awarded)

	awarded, err = tracker.RecordMessage(ctx, member, "c1", start.Add(3*time.Second))
	require.NoError(t, err)
	assert.True(t, awarded)

	got, err := store.GetProfile(ctx, member.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.XP)
}

func TestCooldownCleanupEvictsStaleEntries(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 1, 0)
	ctx := context.Background()
	start := time.Unix(1_700_000_000, 0)

	_, err := tracker.RecordMessage(ctx, member, "c1", start)
	require.NoError(t, err)
	_, err = tracker.RecordMessage(ctx, Member{UserID: "u2"}, "c1", start.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, tracker.Tracked())

	_, err = tracker.RecordMessage(ctx, Member{UserID: "u3"}, "c1", start.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, tracker.Tracked())

	awarded, err := tracker.RecordMessage(ctx, member, "c1", start.Add(31*time.Second))
	require.NoError(t, err)
	assert.True(t, awarded)
}

func TestRecordMessageUsesClockWhenTimestampMissing(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 1, 0)

	awarded, err := tracker.RecordMessage(context.Background(), member, "c1", time.Time{})
	require.NoError(t, err)
	assert.True(t, awarded)
	awarded, err = tracker.RecordMessage(context.Background(), member, "c1", time.Time{})
	require.NoError(t, err)
	assert.False(t, awarded)
}

func TestConcurrentMessagesAwardOnce(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 1, 0)
	ts := time.Unix(1_700_000_000, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tracker.RecordMessage(context.Background(), member, "c1", ts)
		}()
	}
	wg.Wait()

	got, err := store.GetProfile(context.Background(), member.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.XP)
}

func TestConcurrentAwardsDoNotLoseXP(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 50, 0)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = tracker.AwardXP(context.Background(), member, 10)
		}()
	}
	wg.Wait()

	got, err := store.GetProfile(context.Background(), member.UserID)
	require.NoError(t, err)
	assert.Equal(t, 400, got.XP)
}

func TestStorageErrorPropagates(t *testing.T) {
	store := failingStore{Store: memory.New()}
	tracker := New(Config{Cooldown: 3 * time.Second, Cleanup: 30 * time.Second}, store, nil, zap.NewNop())

	awarded, err := tracker.RecordMessage(context.Background(), member, "c1", time.Now())
	require.Error(t, err)
	assert.False(t, awarded)
	assert.Contains(t, err.Error(), "database unavailable")
}

func TestEnsureProfile(t *testing.T) {
	tracker, _, _ := newTracker(t)

	profile, created, err := tracker.EnsureProfile(context.Background(), member)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, profile.XP)

	_, created, err = tracker.EnsureProfile(context.Background(), member)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUpdateAbortsOnMutateError(t *testing.T) {
	tracker, store, _ := newTracker(t)
	seed(t, store, 3, 40)

	_, err := tracker.Update(context.Background(), member, func(p *storage.Profile) error {
		p.AboutMe = "changed"
		return errors.New("rejected")
	})
	require.Error(t, err)

	got, err := store.GetProfile(context.Background(), member.UserID)
	require.NoError(t, err)
	assert.Equal(t, storage.DefaultAboutMe, got.AboutMe)

	updated, err := tracker.Update(context.Background(), member, func(p *storage.Profile) error {
		p.AboutMe = "hello"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", updated.AboutMe)
	assert.Equal(t, 40, updated.XP)
}

func TestAddInfractionCreatesProfile(t *testing.T) {
	tracker, store, _ := newTracker(t)

	count, err := tracker.AddInfraction(context.Background(), member, "spam")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = tracker.AddInfraction(context.Background(), member, "invite link")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := store.GetProfile(context.Background(), member.UserID)
	require.NoError(t, err)
	assert.Equal(t, []string{"spam", "invite link"}, got.Infractions)
}
