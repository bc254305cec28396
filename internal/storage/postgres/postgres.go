// Package postgres stores profiles and reaction roles in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"hearth-bot/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

const profileColumns = `user_id, username, level, xp, background, about_me, public_profile,
	level_notify, infraction_count, infractions, created_at, updated_at`

func scanProfile(row pgx.Row) (storage.Profile, error) {
	var p storage.Profile
	err := row.Scan(&p.UserID, &p.Username, &p.Level, &p.XP, &p.Background, &p.AboutMe, &p.PublicProfile,
		&p.LevelNotify, &p.InfractionCount, &p.Infractions, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) GetProfile(ctx context.Context, userID string) (storage.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Profile{}, storage.ErrNotFound
		}
		return storage.Profile{}, err
	}
	return profile, nil
}

func (s *Store) CreateProfile(ctx context.Context, p storage.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.UserID, p.Username, p.Level, p.XP, p.Background, p.AboutMe, p.PublicProfile,
		p.LevelNotify, p.InfractionCount, notes(p.Infractions), p.CreatedAt, p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrAlreadyExists
	}
	return err
}

func (s *Store) SaveProfile(ctx context.Context, p storage.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			username = excluded.username,
			level = excluded.level,
			xp = excluded.xp,
			background = excluded.background,
			about_me = excluded.about_me,
			public_profile = excluded.public_profile,
			level_notify = excluded.level_notify,
			infraction_count = excluded.infraction_count,
			infractions = excluded.infractions,
			updated_at = excluded.updated_at
	`, p.UserID, p.Username, p.Level, p.XP, p.Background, p.AboutMe, p.PublicProfile,
		p.LevelNotify, p.InfractionCount, notes(p.Infractions), p.CreatedAt, p.UpdatedAt)
	return err
}

func (s *Store) TopProfiles(ctx context.Context, limit int) ([]storage.Profile, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY level DESC, xp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []storage.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (s *Store) ListReactionRoles(ctx context.Context) ([]storage.ReactionRole, error) {
	rows, err := s.pool.Query(ctx, `SELECT message_id, emoji, role_id FROM reaction_roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []storage.ReactionRole
	for rows.Next() {
		var role storage.ReactionRole
		if err := rows.Scan(&role.MessageID, &role.Emoji, &role.RoleID); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) AddReactionRole(ctx context.Context, mapping storage.ReactionRole) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reaction_roles (message_id, emoji, role_id) VALUES ($1, $2, $3)
		ON CONFLICT (message_id, emoji) DO UPDATE SET role_id = excluded.role_id
	`, mapping.MessageID, mapping.Emoji, mapping.RoleID)
	return err
}

func (s *Store) RemoveReactionRole(ctx context.Context, messageID, emoji string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reaction_roles WHERE message_id = $1 AND emoji = $2`, messageID, emoji)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func notes(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column") || strings.Contains(message, "already exists")
}
