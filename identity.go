package courseai

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// DefaultRole is assigned to every identity at creation. This core never
// mutates the role afterwards.
const DefaultRole = "user"

// Credential is the local-credential dimension of an identity. The zero value
// means the identity has no usable local password and can only authenticate
// via federation. A non-zero value holds a one-way hash, never a plaintext
// secret. Using the zero value (persisted as NULL) keeps the "no credential"
// state disjoint from every possible hash value.
type Credential struct {
	Hash string `json:"-"`
}

// Enabled reports whether the identity can complete a local password login.
func (c Credential) Enabled() bool {
	return c.Hash != ""
}

// Identity is the single account record for a real-world user, regardless of
// whether they signed up locally or through a federated provider.
type Identity struct {
	ID                  string     `json:"id"`
	DisplayName         string     `json:"name"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	Credential          Credential `json:"-"`
	CredentialChangedAt time.Time  `json:"credential_changed_at"`
	AvatarURL           string     `json:"avatar_url"`
	Role                string     `json:"role"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Account is the public projection of an Identity returned by every login
// and credential operation. It never carries the credential hash.
type Account struct {
	ID                  string    `json:"id"`
	DisplayName         string    `json:"name"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	AvatarURL           string    `json:"picture,omitempty"`
	CredentialChangedAt time.Time `json:"passwordLastChanged"`
}

// Account returns the public projection of the identity.
func (id *Identity) Account() *Account {
	return &Account{
		ID:                  id.ID,
		DisplayName:         id.DisplayName,
		Username:            id.Username,
		Email:               id.Email,
		AvatarURL:           id.AvatarURL,
		CredentialChangedAt: id.CredentialChangedAt,
	}
}

// IdentityPatch describes a partial update to an identity. Nil fields are
// left untouched by the store.
type IdentityPatch struct {
	DisplayName         *string
	AvatarURL           *string
	Username            *string
	Credential          *Credential
	CredentialChangedAt *time.Time
}

// Apply copies the patch's set fields onto the identity.
func (p IdentityPatch) Apply(id *Identity) {
	if p.DisplayName != nil {
		id.DisplayName = *p.DisplayName
	}
	if p.AvatarURL != nil {
		id.AvatarURL = *p.AvatarURL
	}
	if p.Username != nil {
		id.Username = *p.Username
	}
	if p.Credential != nil {
		id.Credential = *p.Credential
	}
	if p.CredentialChangedAt != nil {
		id.CredentialChangedAt = *p.CredentialChangedAt
	}
}

// NormalizeEmail canonicalizes an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewID generates a cryptographically secure identity or record id.
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
