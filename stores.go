package courseai

import (
	"context"
	"time"
)

// IdentityStore is the persistence interface consumed by the identity core.
//
// Lookups return (nil, nil) when no identity matches; errors are reserved
// for store failures and are wrapped with ErrStoreUnavailable by
// implementations. The store, not the caller, enforces the uniqueness
// invariants on email and username: Create must fail with ErrDuplicateKey
// when a concurrent writer got there first, and the Unifier treats that as
// "already exists" rather than a fault.
type IdentityStore interface {
	// FindByEmail matches the canonical (lowercased) email exactly.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// FindByIdentifier matches either username or email, case-insensitively
	// and exactly (no substring matching). Used by local login.
	FindByIdentifier(ctx context.Context, identifier string) (*Identity, error)

	// FindByUsernameExcluding returns the identity holding username, unless
	// that identity's email is excludeEmail.
	FindByUsernameExcluding(ctx context.Context, username, excludeEmail string) (*Identity, error)

	// Create persists a new identity. Fails with ErrDuplicateKey if the
	// email or username is already held.
	Create(ctx context.Context, identity *Identity) (*Identity, error)

	// Update applies the patch to the identity with the given email and
	// returns the updated record, or (nil, nil) if no identity matches.
	Update(ctx context.Context, email string, patch IdentityPatch) (*Identity, error)
}

// IdentityLister is implemented by stores that can enumerate all identities.
// Only the admin views need it.
type IdentityLister interface {
	List(ctx context.Context) ([]*Identity, error)
}

// SearchRecord is one entry in a user's search history.
type SearchRecord struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"userId"`
	Query      string    `json:"searchQuery"`
	Timestamp  time.Time `json:"timestamp"`
}

// HistoryStore is the append-only search history log, keyed by identity id.
type HistoryStore interface {
	// Append stores the record, assigning ID and Timestamp if unset.
	Append(ctx context.Context, record *SearchRecord) (*SearchRecord, error)

	// ListByIdentity returns the identity's records, newest first.
	ListByIdentity(ctx context.Context, identityID string) ([]*SearchRecord, error)

	// DeleteOne removes a single record by id. Fails with ErrRecordNotFound
	// for unknown ids.
	DeleteOne(ctx context.Context, id string) error

	// DeleteAllByIdentity clears the identity's history and returns how many
	// records were removed.
	DeleteAllByIdentity(ctx context.Context, identityID string) (int64, error)

	// CountByIdentity returns the number of records for the identity.
	CountByIdentity(ctx context.Context, identityID string) (int64, error)
}
