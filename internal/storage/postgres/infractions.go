package postgres

import (
	"context"
	"errors"
	"time"

	"hearth-bot/internal/storage"

	"github.com/jackc/pgx/v5"
)

// AddInfraction increments the count and appends the note under a row lock.
func (s *Store) AddInfraction(ctx context.Context, userID, note string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 FOR UPDATE`, userID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, err
	}

	count := storage.AppendInfraction(&profile, note, time.Now())
	_, err = tx.Exec(ctx, `
		UPDATE profiles SET infraction_count = $2, infractions = $3, updated_at = $4
		WHERE user_id = $1
	`, userID, profile.InfractionCount, notes(profile.Infractions), profile.UpdatedAt)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return count, nil
}
