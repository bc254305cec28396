package moderation

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

const (
	MaxPurge       = 1000
	PurgePage      = 100
	BulkDeleteLife = 14 * 24 * time.Hour
)

var (
	ErrInvalidAmount   = fmt.Errorf("amount must be between 1 and %d", MaxPurge)
	ErrNothingToDelete = errors.New("nothing to delete (within 14 days)")
)

// MessageAPI is the channel surface purge needs. *discordgo.Session satisfies it.
type MessageAPI interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(channelID string, messages []string, options ...discordgo.RequestOption) error
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

var _ MessageAPI = (*discordgo.Session)(nil)

// CollectPurge walks the channel history newest first and returns up to amount
// message ids younger than the bulk delete cutoff.
func CollectPurge(api MessageAPI, channelID string, amount int, now time.Time) ([]string, error) {
	if amount < 1 || amount > MaxPurge {
		return nil, ErrInvalidAmount
	}
	cutoff := now.Add(-BulkDeleteLife)
	ids := make([]string, 0, amount)
	before := ""

	for len(ids) < amount {
		limit := amount - len(ids)
		if limit > PurgePage {
			limit = PurgePage
		}
		page, err := api.ChannelMessages(channelID, limit, before, "", "")
		if err != nil {
			return nil, fmt.Errorf("fetch messages: %w", err)
		}
		if len(page) == 0 {
			break
		}
		expired := false
		for _, msg := range page {
			if !msg.Timestamp.After(cutoff) {
				expired = true
				break
			}
			ids = append(ids, msg.ID)
		}
		if expired || len(page) < limit {
			break
		}
		before = page[len(page)-1].ID
	}

	if len(ids) == 0 {
		return nil, ErrNothingToDelete
	}
	return ids, nil
}

// Batches splits ids into bulk delete pages.
func Batches(ids []string) [][]string {
	var batches [][]string
	for start := 0; start < len(ids); start += PurgePage {
		end := start + PurgePage
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

// Purge deletes up to amount recent messages and returns how many were removed.
func Purge(api MessageAPI, channelID string, amount int, now time.Time) (int, error) {
	ids, err := CollectPurge(api, channelID, amount, now)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, batch := range Batches(ids) {
		if len(batch) == 1 {
			err = api.ChannelMessageDelete(channelID, batch[0])
		} else {
			err = api.ChannelMessagesBulkDelete(channelID, batch)
		}
		if err != nil {
			return deleted, fmt.Errorf("delete messages: %w", err)
		}
		deleted += len(batch)
	}
	return deleted, nil
}
