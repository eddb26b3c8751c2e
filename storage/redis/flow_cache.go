package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/PaulFidika/membergate/gotrue"
	"github.com/redis/go-redis/v9"
)

// FlowCache is a gotrue.FlowCache in Redis. Entries expire after ttl.
type FlowCache struct {
	rdb   redis.UniversalClient
	keyNS string
	ttl   time.Duration
}

func NewFlowCache(rdb redis.UniversalClient, keyPrefix string, ttl time.Duration) *FlowCache {
	if keyPrefix == "" {
		keyPrefix = "membergate:flow:"
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &FlowCache{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (s *FlowCache) key(id string) string { return s.keyNS + id }

func (s *FlowCache) Put(ctx context.Context, id string, data gotrue.FlowState) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(id), b, s.ttl).Err()
}

func (s *FlowCache) Get(ctx context.Context, id string) (gotrue.FlowState, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gotrue.FlowState{}, false, nil
	}
	if err != nil {
		return gotrue.FlowState{}, false, err
	}
	var d gotrue.FlowState
	if err := json.Unmarshal(val, &d); err != nil {
		return gotrue.FlowState{}, false, err
	}
	return d, true, nil
}

func (s *FlowCache) Del(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
