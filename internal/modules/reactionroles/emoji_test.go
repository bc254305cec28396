package reactionroles

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmoji(t *testing.T) {
	cases := []struct {
		raw  string
		want Emoji
	}{
		{raw: "🔥", want: UnicodeEmoji("🔥")},
		{raw: " 🎮 ", want: UnicodeEmoji("🎮")},
		{raw: "<:party:123>", want: CustomEmoji("party", "123", false)},
		{raw: "<a:dance:456>", want: CustomEmoji("dance", "456", true)},
		{raw: "party:123", want: CustomEmoji("party", "123", false)},
	}
	for _, tc := range cases {
		got, err := ParseEmoji(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}

	for _, raw := range []string{"", "   ", "party", "<:broken>", "two words", "<:x:abc>"} {
		_, err := ParseEmoji(raw)
		assert.ErrorIs(t, err, ErrInvalidEmoji, raw)
	}
}

func TestEmojiKeyForms(t *testing.T) {
	animated := CustomEmoji("dance", "456", true)
	assert.Equal(t, "<:dance:456>", animated.Key())
	assert.Equal(t, "<a:dance:456>", animated.String())
	assert.Equal(t, "dance:456", animated.APIName())

	glyph := UnicodeEmoji("🔥")
	assert.Equal(t, "🔥", glyph.Key())
	assert.Equal(t, "🔥", glyph.APIName())
}

func TestFromDiscordRoundTrip(t *testing.T) {
	custom := FromDiscord(discordgo.Emoji{Name: "party", ID: "123"})
	parsed, err := ParseEmoji(custom.Key())
	require.NoError(t, err)
	assert.Equal(t, custom.Key(), parsed.Key())

	unicode := FromDiscord(discordgo.Emoji{Name: "🎨"})
	assert.Equal(t, Unicode, unicode.Kind)
	assert.False(t, unicode.IsZero())
	assert.True(t, FromDiscord(discordgo.Emoji{}).IsZero())
}
