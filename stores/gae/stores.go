package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	ca "github.com/courseai/courseai"
)

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ca.ErrStoreUnavailable, op, err)
}

// IdentityStore persists identities in Cloud Datastore.
type IdentityStore struct {
	client    *datastore.Client
	namespace string
}

func NewIdentityStore(client *datastore.Client, namespace string) *IdentityStore {
	return &IdentityStore{client: client, namespace: namespace}
}

func (s *IdentityStore) key(kind, name string) *datastore.Key {
	k := datastore.NameKey(kind, name, nil)
	k.Namespace = s.namespace
	return k
}

func (s *IdentityStore) getIdentity(ctx context.Context, id string) (*ca.Identity, error) {
	var entity IdentityEntity
	err := s.client.Get(ctx, s.key(KindIdentity, id), &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get identity", err)
	}
	return entity.toIdentity(), nil
}

func (s *IdentityStore) lookupIndex(ctx context.Context, kind, value string) (*ca.Identity, error) {
	var idx uniqueIndex
	err := s.client.Get(ctx, s.key(kind, value), &idx)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get index", err)
	}
	return s.getIdentity(ctx, idx.IdentityID)
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*ca.Identity, error) {
	return s.lookupIndex(ctx, KindEmailIndex, ca.NormalizeEmail(email))
}

// FindByIdentifier resolves a login identifier against both the email and
// the username index.
func (s *IdentityStore) FindByIdentifier(ctx context.Context, identifier string) (*ca.Identity, error) {
	identifier = ca.NormalizeEmail(identifier)
	identity, err := s.lookupIndex(ctx, KindEmailIndex, identifier)
	if err != nil || identity != nil {
		return identity, err
	}
	return s.lookupIndex(ctx, KindUsernameIndex, identifier)
}

func (s *IdentityStore) FindByUsernameExcluding(ctx context.Context, username, excludeEmail string) (*ca.Identity, error) {
	identity, err := s.lookupIndex(ctx, KindUsernameIndex, ca.NormalizeUsername(username))
	if err != nil || identity == nil {
		return nil, err
	}
	if identity.Email == ca.NormalizeEmail(excludeEmail) {
		return nil, nil
	}
	return identity, nil
}

// Create inserts the identity and claims its email and username index
// entities in one transaction, so concurrent creates for the same email or
// username collapse to a single winner.
func (s *IdentityStore) Create(ctx context.Context, identity *ca.Identity) (*ca.Identity, error) {
	identity.Email = ca.NormalizeEmail(identity.Email)
	identity.Username = ca.NormalizeUsername(identity.Username)

	identityKey := s.key(KindIdentity, identity.ID)
	emailKey := s.key(KindEmailIndex, identity.Email)
	usernameKey := s.key(KindUsernameIndex, identity.Username)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		for _, k := range []*datastore.Key{identityKey, emailKey, usernameKey} {
			var probe datastore.PropertyList
			switch err := tx.Get(k, &probe); {
			case err == nil:
				return ca.ErrDuplicateKey
			case !errors.Is(err, datastore.ErrNoSuchEntity):
				return err
			}
		}
		entity := IdentityEntity{
			DisplayName:         identity.DisplayName,
			Username:            identity.Username,
			Email:               identity.Email,
			CredentialHash:      identity.Credential.Hash,
			CredentialChangedAt: identity.CredentialChangedAt,
			AvatarURL:           identity.AvatarURL,
			Role:                identity.Role,
			CreatedAt:           identity.CreatedAt,
			UpdatedAt:           identity.UpdatedAt,
		}
		idx := uniqueIndex{IdentityID: identity.ID}
		if _, err := tx.Put(identityKey, &entity); err != nil {
			return err
		}
		if _, err := tx.Put(emailKey, &idx); err != nil {
			return err
		}
		_, err := tx.Put(usernameKey, &idx)
		return err
	})
	if errors.Is(err, ca.ErrDuplicateKey) {
		return nil, ca.ErrDuplicateKey
	}
	if err != nil {
		return nil, storeErr("create identity", err)
	}
	return identity, nil
}

// Update applies the patch to the identity with the given email. A username
// change re-points the username index inside the transaction and fails with
// ErrDuplicateKey when the new username is already claimed.
func (s *IdentityStore) Update(ctx context.Context, email string, patch ca.IdentityPatch) (*ca.Identity, error) {
	email = ca.NormalizeEmail(email)
	emailKey := s.key(KindEmailIndex, email)

	var updated *ca.Identity
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var idx uniqueIndex
		if err := tx.Get(emailKey, &idx); err != nil {
			return err
		}
		identityKey := s.key(KindIdentity, idx.IdentityID)
		var entity IdentityEntity
		if err := tx.Get(identityKey, &entity); err != nil {
			return err
		}

		identity := entity.toIdentity()
		identity.ID = idx.IdentityID
		oldUsername := identity.Username
		patch.Apply(identity)
		identity.Username = ca.NormalizeUsername(identity.Username)
		identity.UpdatedAt = time.Now().UTC()

		if identity.Username != oldUsername {
			newKey := s.key(KindUsernameIndex, identity.Username)
			var probe uniqueIndex
			switch err := tx.Get(newKey, &probe); {
			case err == nil:
				return ca.ErrDuplicateKey
			case !errors.Is(err, datastore.ErrNoSuchEntity):
				return err
			}
			if err := tx.Delete(s.key(KindUsernameIndex, oldUsername)); err != nil {
				return err
			}
			if _, err := tx.Put(newKey, &uniqueIndex{IdentityID: idx.IdentityID}); err != nil {
				return err
			}
		}

		entity = IdentityEntity{
			DisplayName:         identity.DisplayName,
			Username:            identity.Username,
			Email:               identity.Email,
			CredentialHash:      identity.Credential.Hash,
			CredentialChangedAt: identity.CredentialChangedAt,
			AvatarURL:           identity.AvatarURL,
			Role:                identity.Role,
			CreatedAt:           identity.CreatedAt,
			UpdatedAt:           identity.UpdatedAt,
		}
		if _, err := tx.Put(identityKey, &entity); err != nil {
			return err
		}
		updated = identity
		return nil
	})
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, nil
	}
	if errors.Is(err, ca.ErrDuplicateKey) {
		return nil, ca.ErrDuplicateKey
	}
	if err != nil {
		return nil, storeErr("update identity", err)
	}
	return updated, nil
}

// List returns all identities, for the admin surface.
func (s *IdentityStore) List(ctx context.Context) ([]*ca.Identity, error) {
	q := datastore.NewQuery(KindIdentity).Namespace(s.namespace)
	var identities []*ca.Identity
	it := s.client.Run(ctx, q)
	for {
		var entity IdentityEntity
		key, err := it.Next(&entity)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, storeErr("list identities", err)
		}
		entity.Key = key
		identities = append(identities, entity.toIdentity())
	}
	return identities, nil
}

// HistoryStore persists search history records in Cloud Datastore.
type HistoryStore struct {
	client    *datastore.Client
	namespace string
}

func NewHistoryStore(client *datastore.Client, namespace string) *HistoryStore {
	return &HistoryStore{client: client, namespace: namespace}
}

func (s *HistoryStore) key(name string) *datastore.Key {
	k := datastore.NameKey(KindSearchRecord, name, nil)
	k.Namespace = s.namespace
	return k
}

func (s *HistoryStore) byIdentity(identityID string) *datastore.Query {
	return datastore.NewQuery(KindSearchRecord).
		Namespace(s.namespace).
		FilterField("identity_id", "=", identityID)
}

func (s *HistoryStore) Append(ctx context.Context, record *ca.SearchRecord) (*ca.SearchRecord, error) {
	if record.IdentityID == "" || record.Query == "" {
		return nil, fmt.Errorf("%w: identity id and query are required", ca.ErrInvalidInput)
	}
	if record.ID == "" {
		record.ID = ca.NewID()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	entity := SearchRecordEntity{
		IdentityID: record.IdentityID,
		Query:      record.Query,
		Timestamp:  record.Timestamp,
	}
	if _, err := s.client.Put(ctx, s.key(record.ID), &entity); err != nil {
		return nil, storeErr("append record", err)
	}
	return record, nil
}

func (s *HistoryStore) ListByIdentity(ctx context.Context, identityID string) ([]*ca.SearchRecord, error) {
	q := s.byIdentity(identityID).Order("-timestamp")
	var records []*ca.SearchRecord
	it := s.client.Run(ctx, q)
	for {
		var entity SearchRecordEntity
		key, err := it.Next(&entity)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, storeErr("list records", err)
		}
		entity.Key = key
		records = append(records, entity.toRecord())
	}
	return records, nil
}

func (s *HistoryStore) DeleteOne(ctx context.Context, id string) error {
	key := s.key(id)
	var entity SearchRecordEntity
	err := s.client.Get(ctx, key, &entity)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ca.ErrRecordNotFound
	}
	if err != nil {
		return storeErr("get record", err)
	}
	if err := s.client.Delete(ctx, key); err != nil {
		return storeErr("delete record", err)
	}
	return nil
}

func (s *HistoryStore) DeleteAllByIdentity(ctx context.Context, identityID string) (int64, error) {
	q := s.byIdentity(identityID).KeysOnly()
	keys, err := s.client.GetAll(ctx, q, nil)
	if err != nil {
		return 0, storeErr("list record keys", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.client.DeleteMulti(ctx, keys); err != nil {
		return 0, storeErr("delete records", err)
	}
	return int64(len(keys)), nil
}

func (s *HistoryStore) CountByIdentity(ctx context.Context, identityID string) (int64, error) {
	q := s.byIdentity(identityID).KeysOnly()
	keys, err := s.client.GetAll(ctx, q, nil)
	if err != nil {
		return 0, storeErr("count records", err)
	}
	return int64(len(keys)), nil
}
