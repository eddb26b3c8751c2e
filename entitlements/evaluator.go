package entitlements

import (
	"sort"
	"time"
)

var activeStatuses = map[string]struct{}{
	StatusActive:   {},
	StatusTrialing: {},
}

// IsActiveStatus reports whether status is one of the entitling statuses.
func IsActiveStatus(status string) bool {
	_, ok := activeStatuses[status]
	return ok
}

// IsEntitled decides access from the user's current record.
// A nil period end does not block access: the processor may not have
// populated the period boundary yet.
func IsEntitled(rec *SubscriptionRecord, now time.Time) bool {
	if rec == nil {
		return false
	}
	if !IsActiveStatus(rec.Status) {
		return false
	}
	return rec.CurrentPeriodEnd == nil || rec.CurrentPeriodEnd.After(now)
}

// Latest picks the record entitlement is evaluated against: latest period end
// first with NULL ranked ahead of any timestamp (Postgres DESC default), and
// ties broken by the higher store revision.
func Latest(recs []SubscriptionRecord) *SubscriptionRecord {
	if len(recs) == 0 {
		return nil
	}
	sorted := make([]SubscriptionRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[j], sorted[i]) })
	out := sorted[0]
	return &out
}

// less orders records ascending by recency; the greatest element is the
// current record.
func less(a, b SubscriptionRecord) bool {
	switch {
	case a.CurrentPeriodEnd == nil && b.CurrentPeriodEnd != nil:
		return false
	case a.CurrentPeriodEnd != nil && b.CurrentPeriodEnd == nil:
		return true
	case a.CurrentPeriodEnd != nil && b.CurrentPeriodEnd != nil && !a.CurrentPeriodEnd.Equal(*b.CurrentPeriodEnd):
		return a.CurrentPeriodEnd.Before(*b.CurrentPeriodEnd)
	}
	return a.Revision < b.Revision
}
