package reactionroles

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

var ErrInvalidEmoji = errors.New("invalid emoji")

type EmojiKind int

const (
	Unicode EmojiKind = iota
	Custom
)

// Emoji is either a Unicode glyph (Name only) or a guild emoji (Name and ID).
type Emoji struct {
	Kind     EmojiKind
	Name     string
	ID       string
	Animated bool
}

var (
	customMention = regexp.MustCompile(`^<(a?):([A-Za-z0-9_~]{2,32}):(\d+)>$`)
	customAPIName = regexp.MustCompile(`^([A-Za-z0-9_~]{2,32}):(\d+)$`)
)

func UnicodeEmoji(glyph string) Emoji {
	return Emoji{Kind: Unicode, Name: glyph}
}

func CustomEmoji(name, id string, animated bool) Emoji {
	return Emoji{Kind: Custom, Name: name, ID: id, Animated: animated}
}

// ParseEmoji accepts a glyph, a "<:name:id>" mention or a "name:id" pair.
func ParseEmoji(raw string) (Emoji, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\n") {
		return Emoji{}, ErrInvalidEmoji
	}
	if match := customMention.FindStringSubmatch(raw); match != nil {
		return CustomEmoji(match[2], match[3], match[1] == "a"), nil
	}
	if match := customAPIName.FindStringSubmatch(raw); match != nil {
		return CustomEmoji(match[1], match[2], false), nil
	}
	if strings.ContainsAny(raw, ":<>") || isASCII(raw) {
		return Emoji{}, ErrInvalidEmoji
	}
	return UnicodeEmoji(raw), nil
}

func isASCII(s string) bool {
	for _, r := range s {
		if r >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// FromDiscord converts a gateway emoji.
func FromDiscord(emoji discordgo.Emoji) Emoji {
	if emoji.ID != "" {
		return CustomEmoji(emoji.Name, emoji.ID, emoji.Animated)
	}
	return UnicodeEmoji(emoji.Name)
}

func (e Emoji) IsZero() bool {
	if e.Kind == Custom {
		return e.Name == "" || e.ID == ""
	}
	return e.Name == ""
}

// Key is the canonical lookup key. Animated and static custom emoji share one form.
func (e Emoji) Key() string {
	if e.Kind == Custom {
		return "<:" + e.Name + ":" + e.ID + ">"
	}
	return e.Name
}

// APIName is the form the REST API expects when reacting.
func (e Emoji) APIName() string {
	if e.Kind == Custom {
		return e.Name + ":" + e.ID
	}
	return e.Name
}

// String renders the emoji inside message content.
func (e Emoji) String() string {
	if e.Kind == Custom && e.Animated {
		return "<a:" + e.Name + ":" + e.ID + ">"
	}
	return e.Key()
}
