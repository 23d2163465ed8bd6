package courseai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MinSecretLength is the shortest local password accepted.
const MinSecretLength = 6

// MaxSecretLength is the longest local password accepted, matching bcrypt's
// 72-byte input limit. Longer secrets are rejected up front rather than
// letting bcrypt fail with an error outside the taxonomy.
const MaxSecretLength = 72

// maxSuggestRetries bounds username re-suggestion on collision during
// federated auto-provisioning.
const maxSuggestRetries = 5

// Unifier orchestrates create-vs-merge decisions between the local and
// federated login paths, and the credential-state transitions of an
// identity. It holds no locks across its read-then-write sequences; the
// store's uniqueness constraints arbitrate races.
type Unifier struct {
	store     IdentityStore
	hasher    *Hasher
	usernames *UsernameAllocator
	now       func() time.Time
}

// NewUnifier returns a Unifier over the given store and hasher.
func NewUnifier(store IdentityStore, hasher *Hasher) *Unifier {
	return &Unifier{
		store:     store,
		hasher:    hasher,
		usernames: NewUsernameAllocator(store),
		now:       time.Now,
	}
}

// LocalLogin authenticates a username-or-email identifier with a secret.
//
// Identities provisioned through federation that never set a local
// credential fail with ErrFederationRequired, never ErrInvalidCredential.
func (u *Unifier) LocalLogin(ctx context.Context, identifier, secret string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return nil, fmt.Errorf("%w: identifier and password are required", ErrInvalidInput)
	}
	identity, err := u.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, ErrAccountNotFound
	}
	if !identity.Credential.Enabled() {
		return nil, ErrFederationRequired
	}
	if !u.hasher.Verify(secret, identity.Credential.Hash) {
		return nil, ErrInvalidCredential
	}
	return identity.Account(), nil
}

// FederatedLogin unifies a verified federated login with the identity
// matching claims.Email, auto-provisioning one if none exists. Existing
// identities get their display name and avatar refreshed from the claims.
//
// The returned flag reports whether the identity still needs a local
// credential (it has only ever authenticated via federation).
func (u *Unifier) FederatedLogin(ctx context.Context, claims *FederatedClaims) (*Account, bool, error) {
	if claims == nil || claims.Email == "" {
		return nil, false, fmt.Errorf("%w: verified claims with email are required", ErrInvalidInput)
	}
	email := NormalizeEmail(claims.Email)

	identity, err := u.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if identity == nil {
		identity, err = u.provisionFederated(ctx, email, claims)
	} else {
		identity, err = u.refreshProfile(ctx, email, claims)
	}
	if err != nil {
		return nil, false, err
	}
	if identity == nil {
		return nil, false, ErrAccountNotFound
	}
	return identity.Account(), !identity.Credential.Enabled(), nil
}

// provisionFederated creates a fresh identity from verified claims, with no
// local credential. A concurrent create for the same email is benign: the
// store rejects the duplicate and we adopt the winner's record. A duplicate
// caused by a username collision gets a new suggestion, a bounded number of
// times.
func (u *Unifier) provisionFederated(ctx context.Context, email string, claims *FederatedClaims) (*Identity, error) {
	for attempt := 0; attempt < maxSuggestRetries; attempt++ {
		candidate := u.usernames.Suggest(claims.DisplayName)
		if _, err := u.usernames.Validate(ctx, candidate, email); err != nil {
			if errors.Is(err, ErrUsernameTaken) {
				continue
			}
			return nil, err
		}

		now := u.now()
		created, err := u.store.Create(ctx, &Identity{
			ID:                  NewID(),
			DisplayName:         claims.DisplayName,
			Username:            candidate,
			Email:               email,
			AvatarURL:           claims.AvatarURL,
			Role:                DefaultRole,
			CredentialChangedAt: now,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, ErrDuplicateKey) {
			return nil, err
		}
		// Lost a race. If the email now exists someone else provisioned this
		// user; adopt that record and refresh its profile from our claims,
		// the same as a login against a pre-existing identity. Otherwise the
		// username collided and we retry with a new suggestion.
		existing, ferr := u.store.FindByEmail(ctx, email)
		if ferr != nil {
			return nil, ferr
		}
		if existing != nil {
			return u.refreshProfile(ctx, email, claims)
		}
	}
	return nil, fmt.Errorf("%w: could not allocate a free username", ErrUsernameTaken)
}

func (u *Unifier) refreshProfile(ctx context.Context, email string, claims *FederatedClaims) (*Identity, error) {
	updated, err := u.store.Update(ctx, email, IdentityPatch{
		DisplayName: &claims.DisplayName,
		AvatarURL:   &claims.AvatarURL,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetInitialCredential completes a federation-provisioned identity: it sets
// the chosen username and the first local password in one step. It is also
// how a user changes username and password together later.
func (u *Unifier) SetInitialCredential(ctx context.Context, email, username, secret string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrWeakCredential, MinSecretLength)
	}
	if len(secret) > MaxSecretLength {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, MaxSecretLength)
	}
	normalized, err := u.usernames.Validate(ctx, username, email)
	if err != nil {
		return nil, err
	}
	hash, err := u.hasher.Hash(secret)
	if err != nil {
		return nil, err
	}
	now := u.now()
	updated, err := u.store.Update(ctx, email, IdentityPatch{
		Username:            &normalized,
		Credential:          &Credential{Hash: hash},
		CredentialChangedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrAccountNotFound
	}
	return updated.Account(), nil
}

// UpdateCredential rotates the local password for the identity matching
// email and returns the new credential timestamp.
func (u *Unifier) UpdateCredential(ctx context.Context, email, newSecret string) (time.Time, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return time.Time{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if len(newSecret) < MinSecretLength {
		return time.Time{}, fmt.Errorf("%w: password must be at least %d characters", ErrWeakCredential, MinSecretLength)
	}
	if len(newSecret) > MaxSecretLength {
		return time.Time{}, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, MaxSecretLength)
	}
	hash, err := u.hasher.Hash(newSecret)
	if err != nil {
		return time.Time{}, err
	}
	now := u.now()
	updated, err := u.store.Update(ctx, email, IdentityPatch{
		Credential:          &Credential{Hash: hash},
		CredentialChangedAt: &now,
	})
	if err != nil {
		return time.Time{}, err
	}
	if updated == nil {
		return time.Time{}, ErrAccountNotFound
	}
	return updated.CredentialChangedAt, nil
}
