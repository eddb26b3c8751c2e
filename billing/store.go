package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/PaulFidika/membergate/entitlements"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSubscriptionNotFound is returned when no row has the given subscription id.
var ErrSubscriptionNotFound = errors.New("subscription_not_found")

// Store is the Postgres-backed subscription cache.
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

func (s *Store) table() string    { return s.schema + ".subscriptions" }
func (s *Store) sequence() string { return s.schema + ".subscriptions_revision_seq" }

const recordColumns = `user_id, status, current_period_end, stripe_customer_id, stripe_subscription_id, revision, updated_at`

// current record first: period end DESC with NULL first, then latest write.
const latestOrder = `ORDER BY current_period_end DESC NULLS FIRST, revision DESC`

// UpsertSubscription inserts or updates the row keyed by stripe_subscription_id.
func (s *Store) UpsertSubscription(ctx context.Context, rec entitlements.SubscriptionRecord) (*entitlements.SubscriptionRecord, error) {
	if s.pg == nil {
		return nil, errors.New("subscription store not configured")
	}
	if rec.UserID == uuid.Nil || strings.TrimSpace(rec.StripeSubscriptionID) == "" {
		return nil, errors.New("user_id and stripe_subscription_id are required")
	}
	row := s.pg.QueryRow(ctx, `INSERT INTO `+s.table()+`
		(user_id, status, current_period_end, stripe_customer_id, stripe_subscription_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (stripe_subscription_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			revision = nextval('`+s.sequence()+`'),
			updated_at = NOW()
		RETURNING `+recordColumns,
		rec.UserID, rec.Status, rec.CurrentPeriodEnd, rec.StripeCustomerID, rec.StripeSubscriptionID)
	return scanRecord(row)
}

// LatestForUser returns the user's current record, or nil when there is none.
func (s *Store) LatestForUser(ctx context.Context, userID uuid.UUID) (*entitlements.SubscriptionRecord, error) {
	if s.pg == nil || userID == uuid.Nil {
		return nil, nil
	}
	row := s.pg.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+s.table()+` WHERE user_id=$1 `+latestOrder+` LIMIT 1`, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// GetBySubscriptionID returns the row for a processor subscription id.
func (s *Store) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*entitlements.SubscriptionRecord, error) {
	if s.pg == nil || strings.TrimSpace(subscriptionID) == "" {
		return nil, ErrSubscriptionNotFound
	}
	row := s.pg.QueryRow(ctx, `SELECT `+recordColumns+` FROM `+s.table()+` WHERE stripe_subscription_id=$1`, subscriptionID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	return rec, err
}

// ListStale returns rows still marked active whose period has ended before now.
func (s *Store) ListStale(ctx context.Context, now time.Time, limit int) ([]entitlements.SubscriptionRecord, error) {
	if s.pg == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pg.Query(ctx, `SELECT `+recordColumns+` FROM `+s.table()+`
		WHERE status = ANY($1) AND current_period_end IS NOT NULL AND current_period_end < $2
		ORDER BY current_period_end ASC LIMIT $3`,
		[]string{entitlements.StatusActive, entitlements.StatusTrialing}, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []entitlements.SubscriptionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*entitlements.SubscriptionRecord, error) {
	var r entitlements.SubscriptionRecord
	if err := row.Scan(&r.UserID, &r.Status, &r.CurrentPeriodEnd, &r.StripeCustomerID, &r.StripeSubscriptionID, &r.Revision, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
