package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost sits above the spec's floor of 10; the teacher's indirect
// golang.org/x/crypto dependency already carries bcrypt, so no new
// dependency is introduced here.
const bcryptCost = 12

// preprocess reduces an arbitrary-length secret to bcrypt's 72-byte input
// ceiling by hashing it to a fixed 32-byte SHA-256 digest first.
func preprocess(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}

// HashSecret produces the slow bcrypt verifier for a password or API key
// plaintext.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(preprocess(secret), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifySecret reports whether secret matches the stored bcrypt verifier.
func VerifySecret(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), preprocess(secret)) == nil
}

// LookupDigest returns the deterministic, indexable SHA-256 hex digest of
// an API key plaintext, used for O(1) candidate lookup.
func LookupDigest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
