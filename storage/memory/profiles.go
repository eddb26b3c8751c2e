package memorystore

import (
	"context"
	"sync"

	"github.com/PaulFidika/membergate/identity"
	"github.com/google/uuid"
)

// ProfileStore keeps profiles in memory and enforces username uniqueness
// the way the profiles table's unique index does.
type ProfileStore struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]identity.Profile
	byName map[string]uuid.UUID
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{rows: map[uuid.UUID]identity.Profile{}, byName: map[string]uuid.UUID{}}
}

func (s *ProfileStore) EnsureProfile(_ context.Context, userID uuid.UUID) error {
	if userID == uuid.Nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[userID]; !ok {
		s.rows[userID] = identity.Profile{UserID: userID}
	}
	return nil
}

func (s *ProfileStore) GetProfile(_ context.Context, userID uuid.UUID) (*identity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[userID]
	if !ok {
		return nil, identity.ErrProfileNotFound
	}
	return &p, nil
}

func (s *ProfileStore) SetUsernameIfEmpty(_ context.Context, userID uuid.UUID, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[userID]
	if !ok || p.Username != nil {
		return false, nil
	}
	if owner, taken := s.byName[username]; taken && owner != userID {
		return false, identity.ErrUsernameTaken
	}
	name := username
	p.Username = &name
	s.rows[userID] = p
	s.byName[username] = userID
	return true, nil
}

func (s *ProfileStore) UpdateProfile(_ context.Context, userID uuid.UUID, upd identity.ProfileUpdate) (*identity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[userID]
	if !ok {
		return nil, identity.ErrProfileNotFound
	}
	if upd.Username != nil {
		if owner, taken := s.byName[*upd.Username]; taken && owner != userID {
			return nil, identity.ErrUsernameTaken
		}
		if p.Username != nil {
			delete(s.byName, *p.Username)
		}
		name := *upd.Username
		p.Username = &name
		s.byName[name] = userID
	}
	if upd.DisplayName != nil {
		v := *upd.DisplayName
		p.DisplayName = &v
	}
	if upd.AvatarURL != nil {
		v := *upd.AvatarURL
		p.AvatarURL = &v
	}
	s.rows[userID] = p
	return &p, nil
}

func (s *ProfileStore) GetIDByUsername(_ context.Context, username string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byName[username], nil
}

// ClaimUsername records name as taken by another (possibly unknown) user.
// Tests use it to set up collisions.
func (s *ProfileStore) ClaimUsername(owner uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[name] = owner
	if p, ok := s.rows[owner]; ok {
		n := name
		p.Username = &n
		s.rows[owner] = p
	}
}
