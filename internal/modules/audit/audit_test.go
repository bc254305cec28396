package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifiesAndWrites(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := NewLogger(zap.New(core))

	var got []Entry
	logger.SetNotifier(func(ctx context.Context, entry Entry) {
		got = append(got, entry)
	})
	logger.Log(context.Background(), LevelWarn, "g1", "u1", "mod", "warn", "spamming")

	require.Len(t, got, 1)
	assert.Equal(t, "warn", got[0].Event)
	assert.Equal(t, "mod", got[0].ActorID)
	assert.False(t, got[0].CreatedAt.IsZero())

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "spamming", entries[0].ContextMap()["details"])
}

func TestLogWithoutNotifier(t *testing.T) {
	logger := NewLogger(zap.NewNop())
	logger.Log(context.Background(), LevelInfo, "g1", "u1", "", "kick", "")
}
