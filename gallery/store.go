package gallery

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads the videos table.
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

func (s *Store) ListVideos(ctx context.Context) ([]Video, error) {
	if s.pg == nil {
		return nil, nil
	}
	rows, err := s.pg.Query(ctx, `SELECT id, title, mux_playback_id, is_member_only, group_key, created_at
		FROM `+s.schema+`.videos ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.Title, &v.MuxPlaybackID, &v.IsMemberOnly, &v.GroupKey, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// AddVideo inserts a video and returns its id.
func (s *Store) AddVideo(ctx context.Context, v Video) (int64, error) {
	if s.pg == nil {
		return 0, errors.New("video store not configured")
	}
	var id int64
	err := s.pg.QueryRow(ctx, `INSERT INTO `+s.schema+`.videos (title, mux_playback_id, is_member_only, group_key)
		VALUES ($1, $2, $3, $4) RETURNING id`, v.Title, v.MuxPlaybackID, v.IsMemberOnly, v.GroupKey).Scan(&id)
	return id, err
}
