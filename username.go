package courseai

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
)

// MinUsernameLength is the shortest username accepted after normalization.
const MinUsernameLength = 3

// NormalizeUsername canonicalizes a username for storage and comparison.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// UsernameAllocator generates and validates unique usernames against the
// identity store.
type UsernameAllocator struct {
	store IdentityStore
}

// NewUsernameAllocator returns an allocator backed by the given store.
func NewUsernameAllocator(store IdentityStore) *UsernameAllocator {
	return &UsernameAllocator{store: store}
}

// Suggest derives a candidate username from seed: whitespace stripped,
// lowercased, with a random 4-digit suffix. The candidate is likely but not
// guaranteed unique; callers must still validate against the store before
// committing.
func (a *UsernameAllocator) Suggest(seed string) string {
	base := strings.ToLower(strings.Join(strings.Fields(seed), ""))
	if base == "" {
		base = "user"
	}
	return fmt.Sprintf("%s%d", base, 1000+rand.IntN(9000))
}

// Validate normalizes proposed and checks it against the store, ignoring the
// identity that owns excludeEmail. Returns the normalized username on
// success, ErrUsernameTooShort or ErrUsernameTaken otherwise.
func (a *UsernameAllocator) Validate(ctx context.Context, proposed, excludeEmail string) (string, error) {
	normalized := NormalizeUsername(proposed)
	if len(normalized) < MinUsernameLength {
		return "", fmt.Errorf("%w: %q", ErrUsernameTooShort, normalized)
	}
	holder, err := a.store.FindByUsernameExcluding(ctx, normalized, NormalizeEmail(excludeEmail))
	if err != nil {
		return "", err
	}
	if holder != nil {
		return "", fmt.Errorf("%w: %q", ErrUsernameTaken, normalized)
	}
	return normalized, nil
}
