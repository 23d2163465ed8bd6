package courseai

import "errors"

// Sentinel errors for the identity core. Transport layers map these to
// status codes; match with errors.Is since stores and the unifier wrap them
// with context.
var (
	// ErrInvalidInput marks malformed or missing fields, detected before any
	// store access.
	ErrInvalidInput = errors.New("invalid input")

	// ErrWeakCredential is returned for secrets shorter than the minimum.
	ErrWeakCredential = errors.New("password too weak")

	// ErrUsernameTooShort is returned for usernames under 3 characters after
	// normalization.
	ErrUsernameTooShort = errors.New("username too short")

	// ErrUsernameTaken is returned when another identity already holds the
	// proposed username.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrAccountNotFound is returned when no identity matches the given
	// identifier or email.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidCredential is returned when a secret does not match the
	// stored hash.
	ErrInvalidCredential = errors.New("invalid password")

	// ErrFederationRequired is returned when a local login hits an identity
	// that has no local credential yet. The caller must complete a federated
	// login first, then set an initial credential.
	ErrFederationRequired = errors.New("federated login required")

	// ErrVerificationFailed is returned when a federated token fails
	// signature, issuer, audience, or expiry checks.
	ErrVerificationFailed = errors.New("token verification failed")

	// ErrDuplicateKey is surfaced by stores when a create would violate the
	// email or username uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrRecordNotFound is returned by the history store for unknown record
	// ids.
	ErrRecordNotFound = errors.New("record not found")

	// ErrStoreUnavailable wraps transient persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
)
