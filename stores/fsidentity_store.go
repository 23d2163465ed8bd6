package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	ca "github.com/courseai/courseai"
)

// identityRecord is the on-disk shape of an identity. The credential hash is
// a nullable field so the "no local credential" state survives round trips.
type identityRecord struct {
	ID                  string    `json:"id"`
	DisplayName         string    `json:"name"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	CredentialHash      *string   `json:"credential_hash,omitempty"`
	CredentialChangedAt time.Time `json:"credential_changed_at"`
	AvatarURL           string    `json:"avatar_url,omitempty"`
	Role                string    `json:"role"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toRecord(id *ca.Identity) *identityRecord {
	rec := &identityRecord{
		ID:                  id.ID,
		DisplayName:         id.DisplayName,
		Username:            id.Username,
		Email:               id.Email,
		CredentialChangedAt: id.CredentialChangedAt,
		AvatarURL:           id.AvatarURL,
		Role:                id.Role,
		CreatedAt:           id.CreatedAt,
		UpdatedAt:           id.UpdatedAt,
	}
	if id.Credential.Enabled() {
		hash := id.Credential.Hash
		rec.CredentialHash = &hash
	}
	return rec
}

func (r *identityRecord) toIdentity() *ca.Identity {
	id := &ca.Identity{
		ID:                  r.ID,
		DisplayName:         r.DisplayName,
		Username:            r.Username,
		Email:               r.Email,
		CredentialChangedAt: r.CredentialChangedAt,
		AvatarURL:           r.AvatarURL,
		Role:                r.Role,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.CredentialHash != nil {
		id.Credential = ca.Credential{Hash: *r.CredentialHash}
	}
	return id
}

// FSIdentityStore stores identities as JSON files, one per identity. A
// process-wide mutex makes create-vs-create races observe the same
// uniqueness constraints a database would enforce.
type FSIdentityStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSIdentityStore(storagePath string) *FSIdentityStore {
	return &FSIdentityStore{StoragePath: storagePath}
}

func (s *FSIdentityStore) identityPath(id string) string {
	safe := filepath.Base(id) // prevents path traversal
	return filepath.Join(s.StoragePath, "identities", safe+".json")
}

// scan loads every identity and returns the first one matching pred.
func (s *FSIdentityStore) scan(pred func(*ca.Identity) bool) (*ca.Identity, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	for _, identity := range all {
		if pred(identity) {
			return identity, nil
		}
	}
	return nil, nil
}

func (s *FSIdentityStore) loadAll() ([]*ca.Identity, error) {
	dir := filepath.Join(s.StoragePath, "identities")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}

	var identities []*ca.Identity
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec identityRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		identities = append(identities, rec.toIdentity())
	}
	return identities, nil
}

func (s *FSIdentityStore) write(identity *ca.Identity) error {
	path := s.identityPath(identity.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}
	data, err := json.MarshalIndent(toRecord(identity), "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomicFile(path, data); err != nil {
		return fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *FSIdentityStore) FindByEmail(ctx context.Context, email string) (*ca.Identity, error) {
	email = ca.NormalizeEmail(email)
	return s.scan(func(id *ca.Identity) bool { return id.Email == email })
}

func (s *FSIdentityStore) FindByIdentifier(ctx context.Context, identifier string) (*ca.Identity, error) {
	needle := ca.NormalizeUsername(identifier)
	return s.scan(func(id *ca.Identity) bool {
		return id.Username == needle || id.Email == needle
	})
}

func (s *FSIdentityStore) FindByUsernameExcluding(ctx context.Context, username, excludeEmail string) (*ca.Identity, error) {
	username = ca.NormalizeUsername(username)
	excludeEmail = ca.NormalizeEmail(excludeEmail)
	return s.scan(func(id *ca.Identity) bool {
		return id.Username == username && id.Email != excludeEmail
	})
}

func (s *FSIdentityStore) Create(ctx context.Context, identity *ca.Identity) (*ca.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *identity
	stored.Email = ca.NormalizeEmail(stored.Email)
	stored.Username = ca.NormalizeUsername(stored.Username)

	conflict, err := s.scan(func(id *ca.Identity) bool {
		return id.Email == stored.Email || id.Username == stored.Username
	})
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		return nil, fmt.Errorf("%w: email or username already exists", ca.ErrDuplicateKey)
	}
	if err := s.write(&stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *FSIdentityStore) Update(ctx context.Context, email string, patch ca.IdentityPatch) (*ca.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = ca.NormalizeEmail(email)
	identity, err := s.scan(func(id *ca.Identity) bool { return id.Email == email })
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, nil
	}
	if patch.Username != nil {
		normalized := ca.NormalizeUsername(*patch.Username)
		holder, err := s.scan(func(id *ca.Identity) bool {
			return id.Username == normalized && id.Email != email
		})
		if err != nil {
			return nil, err
		}
		if holder != nil {
			return nil, fmt.Errorf("%w: username already exists", ca.ErrDuplicateKey)
		}
		patch.Username = &normalized
	}
	patch.Apply(identity)
	identity.UpdatedAt = time.Now()
	if err := s.write(identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *FSIdentityStore) List(ctx context.Context) ([]*ca.Identity, error) {
	return s.loadAll()
}
