package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashBcrypt hashes secret at the default cost.
func HashBcrypt(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(b), err
}

// VerifyBcrypt compares a bcrypt hash with a plaintext secret.
func VerifyBcrypt(hash, secret string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}

// IsBcryptHash detects common bcrypt prefixes.
func IsBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}
