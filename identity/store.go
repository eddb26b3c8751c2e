package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUsernameTaken is returned when a username write hits the unique index.
var ErrUsernameTaken = errors.New("username_taken")

// ErrProfileNotFound is returned by reads for a user without a profile row.
var ErrProfileNotFound = errors.New("profile_not_found")

const pgUniqueViolation = "23505"

// Profile is one row of the profiles table.
type Profile struct {
	UserID      uuid.UUID `json:"user_id"`
	Username    *string   `json:"username"`
	DisplayName *string   `json:"display_name"`
	AvatarURL   *string   `json:"avatar_url"`
}

// ProfileUpdate carries user-editable fields; nil leaves a column unchanged.
type ProfileUpdate struct {
	Username    *string
	DisplayName *string
	AvatarURL   *string
}

// Store provides profile lookups/mutations against the profiles table.
type Store struct {
	pg     *pgxpool.Pool
	schema string
}

func NewStore(pg *pgxpool.Pool, schema string) *Store {
	s := strings.TrimSpace(schema)
	if s == "" {
		s = "public"
	}
	return &Store{pg: pg, schema: s}
}

func (s *Store) profilesTable() string { return s.schema + ".profiles" }

// EnsureProfile creates the row for userID if it does not exist yet.
func (s *Store) EnsureProfile(ctx context.Context, userID uuid.UUID) error {
	if s.pg == nil || userID == uuid.Nil {
		return nil
	}
	_, err := s.pg.Exec(ctx, `INSERT INTO `+s.profilesTable()+` (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	if s.pg == nil || userID == uuid.Nil {
		return nil, ErrProfileNotFound
	}
	var p Profile
	err := s.pg.QueryRow(ctx, `SELECT user_id, username, display_name, avatar_url FROM `+s.profilesTable()+` WHERE user_id=$1`, userID).
		Scan(&p.UserID, &p.Username, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetUsernameIfEmpty fills a NULL username. It reports false when the profile
// already had one (or does not exist).
func (s *Store) SetUsernameIfEmpty(ctx context.Context, userID uuid.UUID, username string) (bool, error) {
	if s.pg == nil || userID == uuid.Nil || strings.TrimSpace(username) == "" {
		return false, nil
	}
	tag, err := s.pg.Exec(ctx, `UPDATE `+s.profilesTable()+` SET username=$2, updated_at=NOW() WHERE user_id=$1 AND username IS NULL`, userID, username)
	if err != nil {
		return false, mapWriteErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateProfile applies the non-nil fields of upd and returns the new row.
func (s *Store) UpdateProfile(ctx context.Context, userID uuid.UUID, upd ProfileUpdate) (*Profile, error) {
	if s.pg == nil || userID == uuid.Nil {
		return nil, ErrProfileNotFound
	}
	var p Profile
	err := s.pg.QueryRow(ctx, `UPDATE `+s.profilesTable()+` SET
		username=COALESCE($2, username),
		display_name=COALESCE($3, display_name),
		avatar_url=COALESCE($4, avatar_url),
		updated_at=NOW()
		WHERE user_id=$1
		RETURNING user_id, username, display_name, avatar_url`,
		userID, upd.Username, upd.DisplayName, upd.AvatarURL).
		Scan(&p.UserID, &p.Username, &p.DisplayName, &p.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &p, nil
}

// GetIDByUsername resolves a username to its owner; uuid.Nil when unused.
func (s *Store) GetIDByUsername(ctx context.Context, username string) (uuid.UUID, error) {
	if s.pg == nil || strings.TrimSpace(username) == "" {
		return uuid.Nil, nil
	}
	var id uuid.UUID
	err := s.pg.QueryRow(ctx, `SELECT user_id FROM `+s.profilesTable()+` WHERE username=$1 LIMIT 1`, username).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrUsernameTaken
	}
	return err
}
