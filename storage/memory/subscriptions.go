package memorystore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PaulFidika/membergate/billing"
	"github.com/PaulFidika/membergate/entitlements"
	"github.com/google/uuid"
)

// SubscriptionStore is an in-memory subscriptions table keyed by
// stripe_subscription_id with a store-assigned revision.
type SubscriptionStore struct {
	mu       sync.Mutex
	rows     map[string]entitlements.SubscriptionRecord
	revision int64
	now      func() time.Time
}

func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{rows: map[string]entitlements.SubscriptionRecord{}, now: time.Now}
}

func (s *SubscriptionStore) UpsertSubscription(_ context.Context, rec entitlements.SubscriptionRecord) (*entitlements.SubscriptionRecord, error) {
	if rec.UserID == uuid.Nil || strings.TrimSpace(rec.StripeSubscriptionID) == "" {
		return nil, errors.New("user_id and stripe_subscription_id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revision++
	rec.Revision = s.revision
	rec.UpdatedAt = s.now()
	if rec.CurrentPeriodEnd != nil {
		t := *rec.CurrentPeriodEnd
		rec.CurrentPeriodEnd = &t
	}
	s.rows[rec.StripeSubscriptionID] = rec
	out := rec
	return &out, nil
}

func (s *SubscriptionStore) LatestForUser(_ context.Context, userID uuid.UUID) (*entitlements.SubscriptionRecord, error) {
	s.mu.Lock()
	var recs []entitlements.SubscriptionRecord
	for _, r := range s.rows {
		if r.UserID == userID {
			recs = append(recs, r)
		}
	}
	s.mu.Unlock()
	return entitlements.Latest(recs), nil
}

func (s *SubscriptionStore) GetBySubscriptionID(_ context.Context, subscriptionID string) (*entitlements.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[subscriptionID]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &r, nil
}

func (s *SubscriptionStore) ListStale(_ context.Context, now time.Time, limit int) ([]entitlements.SubscriptionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	var out []entitlements.SubscriptionRecord
	for _, r := range s.rows {
		if entitlements.IsActiveStatus(r.Status) && r.CurrentPeriodEnd != nil && r.CurrentPeriodEnd.Before(now) {
			out = append(out, r)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentPeriodEnd.Before(*out[j].CurrentPeriodEnd) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
