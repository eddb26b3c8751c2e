package memorystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/PaulFidika/membergate/gallery"
)

// VideoStore is an in-memory videos table.
type VideoStore struct {
	mu     sync.Mutex
	rows   []gallery.Video
	nextID int64
}

func NewVideoStore(seed ...gallery.Video) *VideoStore {
	s := &VideoStore{}
	for _, v := range seed {
		_, _ = s.AddVideo(context.Background(), v)
	}
	return s
}

func (s *VideoStore) AddVideo(_ context.Context, v gallery.Video) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	v.ID = s.nextID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	s.rows = append(s.rows, v)
	return v.ID, nil
}

// ListVideos returns videos newest first.
func (s *VideoStore) ListVideos(_ context.Context) ([]gallery.Video, error) {
	s.mu.Lock()
	out := append([]gallery.Video(nil), s.rows...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
