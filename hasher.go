package courseai

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher produces and verifies one-way hashes of secrets using bcrypt.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given bcrypt work factor. Costs
// outside bcrypt's valid range fall back to the default cost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns the bcrypt hash of secret. Empty secrets and secrets over
// bcrypt's 72-byte input limit are rejected with ErrInvalidInput before any
// work is done, so callers never see a raw bcrypt error.
func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}
	if len(secret) > MaxSecretLength {
		return "", fmt.Errorf("%w: secret exceeds %d bytes", ErrInvalidInput, MaxSecretLength)
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(out), nil
}

// Verify reports whether secret matches hash. The comparison is constant
// time with respect to the secret; a malformed hash is treated as a
// non-match, never an error.
func (h *Hasher) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
