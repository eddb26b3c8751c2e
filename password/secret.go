// Package password verifies shared operator secrets such as the admin
// bearer token. The configured value may be a bcrypt hash, an Argon2id PHC
// string, or the plain secret.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
)

// MatchSecret reports whether presented matches configured. An empty
// configured value never matches.
func MatchSecret(configured, presented string) bool {
	configured = strings.TrimSpace(configured)
	if configured == "" || presented == "" {
		return false
	}
	switch {
	case IsBcryptHash(configured):
		ok, err := VerifyBcrypt(configured, presented)
		return err == nil && ok
	case IsArgon2idHash(configured):
		ok, err := VerifyArgon2id(configured, presented)
		return err == nil && ok
	}
	// hash both sides so the comparison does not leak the length
	a := sha256.Sum256([]byte(configured))
	b := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// HashSecret hashes secret for storage in configuration. algo is "bcrypt"
// or "argon2id".
func HashSecret(algo, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("empty secret")
	}
	switch strings.ToLower(algo) {
	case "", "bcrypt":
		return HashBcrypt(secret)
	case "argon2id":
		return HashArgon2id(secret)
	default:
		return "", fmt.Errorf("unknown algorithm %q", algo)
	}
}

// Redact shows a secret as its first four characters and length.
func Redact(s string) string {
	if s == "" {
		return ""
	}
	n := 4
	if len(s) < n {
		n = len(s)
	}
	return fmt.Sprintf("%s…(%d)", s[:n], len(s))
}
