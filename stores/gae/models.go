package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	ca "github.com/courseai/courseai"
)

// Kind constants for Datastore entities.
const (
	KindIdentity      = "Identity"
	KindEmailIndex    = "IdentityEmail"
	KindUsernameIndex = "IdentityUsername"
	KindSearchRecord  = "SearchRecord"
)

// IdentityEntity is the Datastore shape of an identity. An empty
// CredentialHash means the identity is federated-only.
type IdentityEntity struct {
	Key                 *datastore.Key `datastore:"__key__"`
	DisplayName         string         `datastore:"display_name,noindex"`
	Username            string         `datastore:"username"`
	Email               string         `datastore:"email"`
	CredentialHash      string         `datastore:"credential_hash,noindex"`
	CredentialChangedAt time.Time      `datastore:"credential_changed_at,noindex"`
	AvatarURL           string         `datastore:"avatar_url,noindex"`
	Role                string         `datastore:"role,noindex"`
	CreatedAt           time.Time      `datastore:"created_at"`
	UpdatedAt           time.Time      `datastore:"updated_at,noindex"`
}

func (e *IdentityEntity) toIdentity() *ca.Identity {
	identity := &ca.Identity{
		DisplayName:         e.DisplayName,
		Username:            e.Username,
		Email:               e.Email,
		Credential:          ca.Credential{Hash: e.CredentialHash},
		CredentialChangedAt: e.CredentialChangedAt,
		AvatarURL:           e.AvatarURL,
		Role:                e.Role,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
	if e.Key != nil {
		identity.ID = e.Key.Name
	}
	return identity
}

// uniqueIndex reserves an email or username for an identity.
type uniqueIndex struct {
	IdentityID string `datastore:"identity_id"`
}

// SearchRecordEntity is the Datastore shape of a history record.
type SearchRecordEntity struct {
	Key        *datastore.Key `datastore:"__key__"`
	IdentityID string         `datastore:"identity_id"`
	Query      string         `datastore:"query,noindex"`
	Timestamp  time.Time      `datastore:"timestamp"`
}

func (e *SearchRecordEntity) toRecord() *ca.SearchRecord {
	rec := &ca.SearchRecord{
		IdentityID: e.IdentityID,
		Query:      e.Query,
		Timestamp:  e.Timestamp,
	}
	if e.Key != nil {
		rec.ID = e.Key.Name
	}
	return rec
}
