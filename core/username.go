package core

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/PaulFidika/membergate/gotrue"
	"github.com/PaulFidika/membergate/identity"
	"github.com/PaulFidika/membergate/metrics"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	usernameMaxLen    = 20
	usernameBaseLen   = 15
	usernameSuffixLen = 4
	usernameAttempts  = 3
	usernameFallback  = "user"
	suffixAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// metadata keys checked for a provider-supplied handle, in order.
var usernameMetadataKeys = []string{"username", "preferred_username", "user_name", "screen_name"}

// Sanitize maps s into [a-z0-9_]{1,20}: lower-cases, collapses each run of
// other characters to one underscore, trims underscores at the ends and
// falls back to "user" when nothing is left.
func Sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			inRun = false
			continue
		}
		if !inRun {
			b.WriteByte('_')
			inRun = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > usernameMaxLen {
		out = strings.TrimRight(out[:usernameMaxLen], "_")
	}
	if out == "" {
		return usernameFallback
	}
	return out
}

// UsernameCandidates lists handle sources for u: user metadata first, then
// each linked identity's data, then the email local part.
func UsernameCandidates(u gotrue.User) []string {
	var out []string
	add := func(m map[string]any) {
		for _, k := range usernameMetadataKeys {
			if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
				out = append(out, v)
			}
		}
	}
	add(u.UserMetadata)
	for _, id := range u.Identities {
		add(id.IdentityData)
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		out = append(out, u.Email[:i])
	}
	return out
}

// Allocator assigns a unique username to a profile that has none.
type Allocator struct {
	profiles ProfileStore
	suffix   func() string
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
}

func NewAllocator(profiles ProfileStore, log logrus.FieldLogger) *Allocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Allocator{profiles: profiles, suffix: randomSuffix, log: log}
}

func (a *Allocator) WithMetrics(m *metrics.Metrics) *Allocator {
	a.metrics = m
	return a
}

// WithSuffix replaces the random suffix source; used by tests.
func (a *Allocator) WithSuffix(fn func() string) *Allocator {
	a.suffix = fn
	return a
}

// EnsureUsername writes the first non-blank candidate, sanitized. On a
// uniqueness collision it retries with base[:15] + "_" + a random suffix,
// three attempts in total. It returns "" without error when there is no
// candidate or the profile already had a username.
func (a *Allocator) EnsureUsername(ctx context.Context, userID uuid.UUID, candidates ...string) (string, error) {
	base := ""
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			base = Sanitize(c)
			break
		}
	}
	if base == "" {
		return "", nil
	}
	attempt := 0
	op := func() (string, error) {
		attempt++
		name := base
		if attempt > 1 {
			stem := base
			if len(stem) > usernameBaseLen {
				stem = stem[:usernameBaseLen]
			}
			name = Sanitize(stem + "_" + a.suffix())
		}
		set, err := a.profiles.SetUsernameIfEmpty(ctx, userID, name)
		switch {
		case errors.Is(err, identity.ErrUsernameTaken):
			a.metrics.IncUsernameAttempt("taken")
			a.log.WithFields(logrus.Fields{"user_id": userID.String(), "username": name, "attempt": attempt}).Debug("username taken")
			return "", err
		case err != nil:
			a.metrics.IncUsernameAttempt("error")
			return "", backoff.Permanent(err)
		case !set:
			a.metrics.IncUsernameAttempt("already_set")
			return "", nil
		}
		a.metrics.IncUsernameAttempt("assigned")
		return name, nil
	}
	name, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(usernameAttempts),
	)
	if errors.Is(err, identity.ErrUsernameTaken) {
		return "", fail(KindUniquenessConflict, "ensure_username", err)
	}
	if err != nil {
		return "", fail(KindCollaborator, "ensure_username", err)
	}
	return name, nil
}

func randomSuffix() string {
	b := make([]byte, usernameSuffixLen)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = suffixAlphabet[i]
			continue
		}
		b[i] = suffixAlphabet[n.Int64()]
	}
	return string(b)
}
