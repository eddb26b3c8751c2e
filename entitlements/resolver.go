package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LatestReader returns a user's current subscription record (see Latest), or
// nil when the user has none.
type LatestReader interface {
	LatestForUser(ctx context.Context, userID uuid.UUID) (*SubscriptionRecord, error)
}

// Resolver is the one place pages and routes ask whether a user is entitled.
type Resolver struct {
	store LatestReader
	now   func() time.Time
}

func NewResolver(store LatestReader) *Resolver {
	return &Resolver{store: store, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve loads the current record and evaluates it. On a read error the
// verdict is not entitled and the error is returned for logging.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Entitlement, error) {
	if r == nil || r.store == nil || userID == uuid.Nil {
		return Entitlement{}, nil
	}
	rec, err := r.store.LatestForUser(ctx, userID)
	if err != nil {
		return Entitlement{}, err
	}
	return Entitlement{Entitled: IsEntitled(rec, r.now()), Record: rec}, nil
}
