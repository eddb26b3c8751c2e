package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/PaulFidika/membergate/gotrue"
)

// FlowCache is an in-memory gotrue.FlowCache with TTL.
type FlowCache struct {
	mu     sync.Mutex
	ttl    time.Duration
	data   map[string]item
	closed chan struct{}
	once   sync.Once
}

type item struct {
	v   gotrue.FlowState
	exp time.Time
}

// NewFlowCache creates a cache whose entries live for ttl (15 minutes when
// ttl <= 0). A background goroutine drops expired entries every minute
// until Close.
func NewFlowCache(ttl time.Duration) *FlowCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	c := &FlowCache{ttl: ttl, data: make(map[string]item), closed: make(chan struct{})}
	go c.cleanupLoop()
	return c
}

func (s *FlowCache) Put(_ context.Context, id string, v gotrue.FlowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = item{v: v, exp: time.Now().Add(s.ttl)}
	return nil
}

func (s *FlowCache) Get(_ context.Context, id string) (gotrue.FlowState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.data[id]
	if !ok {
		return gotrue.FlowState{}, false, nil
	}
	if time.Now().After(it.exp) {
		delete(s.data, id)
		return gotrue.FlowState{}, false, nil
	}
	return it.v, true, nil
}

func (s *FlowCache) Del(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func (s *FlowCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.closed:
			return
		}
	}
}

func (s *FlowCache) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.data {
		if now.After(v.exp) {
			delete(s.data, k)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *FlowCache) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
