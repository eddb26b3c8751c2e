package core

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/PaulFidika/membergate/gotrue"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Alice":                      "alice",
		"  Ada Lovelace ":            "ada_lovelace",
		"émile--zola":                "mile_zola",
		"__x__":                      "x",
		"!!!":                        "user",
		"":                           "user",
		"a_b":                        "a_b",
		"abcdefghijklmnopqrstuvwxyz": "abcdefghijklmnopqrst",
		"abcdefghijklmnopqrs tuv":    "abcdefghijklmnopqrs",
		"UPPER.case+Mixed@host":      "upper_case_mixed_hos",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

var usernameShape = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9_]{0,18}[a-z0-9])?$`)

func TestSanitize_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 500
	properties := gopter.NewProperties(params)

	properties.Property("idempotent", prop.ForAll(
		func(s string) bool { return Sanitize(Sanitize(s)) == Sanitize(s) },
		gen.AnyString(),
	))
	properties.Property("output shape", prop.ForAll(
		func(s string) bool { return usernameShape.MatchString(Sanitize(s)) },
		gen.AnyString(),
	))
	properties.Property("idempotent on underscore-heavy input", prop.ForAll(
		func(parts []string) bool {
			s := strings.Join(parts, "_")
			return Sanitize(Sanitize(s)) == Sanitize(s)
		},
		gen.SliceOf(gen.AlphaString()),
	))
	properties.TestingRun(t)
}

func TestUsernameCandidates_Order(t *testing.T) {
	u := gotrue.User{
		Email:        "mail.local@example.com",
		UserMetadata: map[string]any{"user_name": "meta_user_name", "preferred_username": "meta_pref"},
		Identities: []gotrue.Identity{
			{Provider: "twitter", IdentityData: map[string]any{"screen_name": "tw_screen"}},
		},
	}
	got := UsernameCandidates(u)
	want := []string{"meta_pref", "meta_user_name", "tw_screen", "mail.local"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("candidates = %v, want %v", got, want)
	}
	if c := UsernameCandidates(gotrue.User{}); len(c) != 0 {
		t.Fatalf("expected no candidates, got %v", c)
	}
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func TestEnsureUsername_FirstCandidateWins(t *testing.T) {
	profiles := newSpyProfiles()
	ctx := context.Background()
	id := uuid.New()
	_ = profiles.EnsureProfile(ctx, id)

	a := NewAllocator(profiles, quietLogger())
	name, err := a.EnsureUsername(ctx, id, "", "  ", "Ada Lovelace", "second")
	if err != nil {
		t.Fatalf("EnsureUsername: %v", err)
	}
	if name != "ada_lovelace" {
		t.Fatalf("got %q", name)
	}
}

func TestEnsureUsername_NoCandidatesIsNoop(t *testing.T) {
	profiles := newSpyProfiles()
	a := NewAllocator(profiles, quietLogger())
	name, err := a.EnsureUsername(context.Background(), uuid.New(), "", " ")
	if err != nil || name != "" {
		t.Fatalf("expected no-op, got %q %v", name, err)
	}
	if len(profiles.sets) != 0 {
		t.Fatalf("expected no writes, got %v", profiles.sets)
	}
}

func TestEnsureUsername_CollisionGetsSuffix(t *testing.T) {
	profiles := newSpyProfiles()
	ctx := context.Background()
	user1, user2 := uuid.New(), uuid.New()
	_ = profiles.EnsureProfile(ctx, user1)
	_ = profiles.EnsureProfile(ctx, user2)
	profiles.ClaimUsername(user1, "alice")

	a := NewAllocator(profiles, quietLogger()).WithSuffix(func() string { return "x7k2" })
	name, err := a.EnsureUsername(ctx, user2, "alice")
	if err != nil {
		t.Fatalf("EnsureUsername: %v", err)
	}
	if name != "alice_x7k2" {
		t.Fatalf("got %q", name)
	}
	p, _ := profiles.GetProfile(ctx, user2)
	if p.Username == nil || *p.Username == "alice" {
		t.Fatalf("user2 must not end up as alice: %+v", p.Username)
	}
}

func TestEnsureUsername_LongBaseIsCutBeforeSuffix(t *testing.T) {
	profiles := newSpyProfiles()
	ctx := context.Background()
	owner, id := uuid.New(), uuid.New()
	_ = profiles.EnsureProfile(ctx, id)
	profiles.ClaimUsername(owner, "averyveryverylongnam")

	a := NewAllocator(profiles, quietLogger()).WithSuffix(func() string { return "zz99" })
	name, err := a.EnsureUsername(ctx, id, "AVeryVeryVeryLongName")
	if err != nil {
		t.Fatalf("EnsureUsername: %v", err)
	}
	if name != "averyveryverylo_zz99" {
		t.Fatalf("got %q", name)
	}
}

func TestEnsureUsername_GivesUpAfterThreeAttempts(t *testing.T) {
	profiles := newSpyProfiles()
	ctx := context.Background()
	owner, id := uuid.New(), uuid.New()
	_ = profiles.EnsureProfile(ctx, id)
	profiles.ClaimUsername(owner, "alice")
	profiles.ClaimUsername(owner, "alice_dupe")

	a := NewAllocator(profiles, quietLogger()).WithSuffix(func() string { return "dupe" })
	name, err := a.EnsureUsername(ctx, id, "alice")
	if KindOf(err) != KindUniquenessConflict {
		t.Fatalf("expected uniqueness conflict, got %v", err)
	}
	if name != "" {
		t.Fatalf("expected no name, got %q", name)
	}
	if len(profiles.sets) != 3 {
		t.Fatalf("expected 3 attempts, got %v", profiles.sets)
	}
	p, _ := profiles.GetProfile(ctx, id)
	if p.Username != nil {
		t.Fatalf("username should stay empty, got %q", *p.Username)
	}
}

func TestEnsureUsername_OtherErrorsAbortImmediately(t *testing.T) {
	profiles := newSpyProfiles()
	profiles.setErr = errors.New("connection reset")
	a := NewAllocator(profiles, quietLogger())

	_, err := a.EnsureUsername(context.Background(), uuid.New(), "alice")
	if KindOf(err) != KindCollaborator {
		t.Fatalf("expected collaborator error, got %v", err)
	}
	if len(profiles.sets) != 1 {
		t.Fatalf("expected a single attempt, got %v", profiles.sets)
	}
}

func TestRandomSuffix(t *testing.T) {
	s := randomSuffix()
	if len(s) != 4 || strings.Trim(s, suffixAlphabet) != "" {
		t.Fatalf("bad suffix %q", s)
	}
}
