package entitlements

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func tp(t time.Time) *time.Time { return &t }

func TestIsEntitled_Scenarios(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		rec  *SubscriptionRecord
		want bool
	}{
		{name: "active until tomorrow", rec: &SubscriptionRecord{Status: "active", CurrentPeriodEnd: tp(now.Add(24 * time.Hour))}, want: true},
		{name: "canceled without period end", rec: &SubscriptionRecord{Status: "canceled"}, want: false},
		{name: "no record", rec: nil, want: false},
		{name: "trialing without period end", rec: &SubscriptionRecord{Status: "trialing"}, want: true},
		{name: "active but expired", rec: &SubscriptionRecord{Status: "active", CurrentPeriodEnd: tp(now.Add(-time.Second))}, want: false},
		{name: "active ending exactly now", rec: &SubscriptionRecord{Status: "active", CurrentPeriodEnd: tp(now)}, want: false},
		{name: "past_due does not entitle", rec: &SubscriptionRecord{Status: "past_due", CurrentPeriodEnd: tp(now.Add(time.Hour))}, want: false},
		{name: "status is case sensitive", rec: &SubscriptionRecord{Status: "ACTIVE"}, want: false},
	}
	for _, tt := range tests {
		if got := IsEntitled(tt.rec, now); got != tt.want {
			t.Fatalf("%s: IsEntitled = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsEntitled_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("nil record never entitles", prop.ForAll(
		func(offset int64) bool {
			return !IsEntitled(nil, base.Add(time.Duration(offset)*time.Second))
		},
		gen.Int64Range(-1e9, 1e9),
	))

	properties.Property("entitled iff active status and period end unknown or in the future", prop.ForAll(
		func(status string, hasEnd bool, endOffset int64) bool {
			rec := &SubscriptionRecord{Status: status}
			if hasEnd {
				rec.CurrentPeriodEnd = tp(base.Add(time.Duration(endOffset) * time.Second))
			}
			active := status == "active" || status == "trialing"
			want := active && (!hasEnd || endOffset > 0)
			return IsEntitled(rec, base) == want
		},
		gen.OneConstOf("active", "trialing", "canceled", "past_due", "incomplete", "unpaid", "paused", ""),
		gen.Bool(),
		gen.Int64Range(-86400*60, 86400*60),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLatest_Ordering(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if Latest(nil) != nil {
		t.Fatalf("expected nil for no records")
	}

	older := SubscriptionRecord{StripeSubscriptionID: "sub_old", Status: "canceled", CurrentPeriodEnd: tp(now.Add(-30 * 24 * time.Hour)), Revision: 5}
	newer := SubscriptionRecord{StripeSubscriptionID: "sub_new", Status: "active", CurrentPeriodEnd: tp(now.Add(30 * 24 * time.Hour)), Revision: 1}
	got := Latest([]SubscriptionRecord{older, newer})
	if got == nil || got.StripeSubscriptionID != "sub_new" {
		t.Fatalf("expected latest period end to win, got %+v", got)
	}

	pending := SubscriptionRecord{StripeSubscriptionID: "sub_pending", Status: "active", Revision: 2}
	got = Latest([]SubscriptionRecord{older, newer, pending})
	if got == nil || got.StripeSubscriptionID != "sub_pending" {
		t.Fatalf("expected NULL period end to rank first, got %+v", got)
	}
}

func TestLatest_TieBreakByRevision(t *testing.T) {
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	a := SubscriptionRecord{StripeSubscriptionID: "sub_a", Status: "canceled", CurrentPeriodEnd: tp(end), Revision: 10}
	b := SubscriptionRecord{StripeSubscriptionID: "sub_b", Status: "active", CurrentPeriodEnd: tp(end), Revision: 11}
	if got := Latest([]SubscriptionRecord{b, a}); got.StripeSubscriptionID != "sub_b" {
		t.Fatalf("expected higher revision to win a period-end tie, got %s", got.StripeSubscriptionID)
	}

	n1 := SubscriptionRecord{StripeSubscriptionID: "sub_n1", Status: "active", Revision: 3}
	n2 := SubscriptionRecord{StripeSubscriptionID: "sub_n2", Status: "canceled", Revision: 4}
	if got := Latest([]SubscriptionRecord{n1, n2}); got.StripeSubscriptionID != "sub_n2" {
		t.Fatalf("expected latest write to win a NULL tie, got %s", got.StripeSubscriptionID)
	}
}

func TestLatest_DoesNotMutateInput(t *testing.T) {
	recs := []SubscriptionRecord{
		{StripeSubscriptionID: "first", Revision: 1},
		{StripeSubscriptionID: "second", Revision: 2},
	}
	_ = Latest(recs)
	if recs[0].StripeSubscriptionID != "first" {
		t.Fatalf("input slice was reordered")
	}
}
