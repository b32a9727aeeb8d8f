package user

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher defines the minimal hashing interface so the digest scheme
// can be swapped without touching the service.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(digest, pw string) bool
}

// Hasher produces bcrypt digests (per-user salt embedded in the digest) and
// still verifies legacy digests of the form hex(sha256(pw + secret)) so
// existing accounts keep working until their next password change.
type Hasher struct {
	secret string
	cost   int
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: secret, cost: bcrypt.DefaultCost}
}

func (h *Hasher) Hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *Hasher) Verify(digest, pw string) bool {
	if strings.HasPrefix(digest, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(pw)) == nil
	}
	// legacy scheme; comparison must be constant-time
	want := h.legacyDigest(pw)
	return subtle.ConstantTimeCompare([]byte(want), []byte(digest)) == 1
}

func (h *Hasher) legacyDigest(pw string) string {
	sum := sha256.Sum256([]byte(pw + h.secret))
	return hex.EncodeToString(sum[:])
}
