package gorm

import (
	"time"

	ca "github.com/courseai/courseai"
)

// IdentityModel is the GORM model for identities. CredentialHash is NULL
// while the identity is federated-only.
type IdentityModel struct {
	ID                  string    `gorm:"primaryKey;size:64"`
	DisplayName         string    `gorm:"size:255"`
	Username            string    `gorm:"uniqueIndex;size:64"`
	Email               string    `gorm:"uniqueIndex;size:255"`
	CredentialHash      *string   `gorm:"size:128"`
	CredentialChangedAt time.Time
	AvatarURL           string    `gorm:"size:512"`
	Role                string    `gorm:"size:32;default:user"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime"`
}

func (IdentityModel) TableName() string {
	return "identities"
}

func (m *IdentityModel) ToIdentity() *ca.Identity {
	identity := &ca.Identity{
		ID:                  m.ID,
		DisplayName:         m.DisplayName,
		Username:            m.Username,
		Email:               m.Email,
		CredentialChangedAt: m.CredentialChangedAt,
		AvatarURL:           m.AvatarURL,
		Role:                m.Role,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.CredentialHash != nil {
		identity.Credential = ca.Credential{Hash: *m.CredentialHash}
	}
	return identity
}

func IdentityToModel(i *ca.Identity) *IdentityModel {
	model := &IdentityModel{
		ID:                  i.ID,
		DisplayName:         i.DisplayName,
		Username:            ca.NormalizeUsername(i.Username),
		Email:               ca.NormalizeEmail(i.Email),
		CredentialChangedAt: i.CredentialChangedAt,
		AvatarURL:           i.AvatarURL,
		Role:                i.Role,
		CreatedAt:           i.CreatedAt,
		UpdatedAt:           i.UpdatedAt,
	}
	if i.Credential.Enabled() {
		hash := i.Credential.Hash
		model.CredentialHash = &hash
	}
	return model
}

// HistoryModel is the GORM model for search history records.
type HistoryModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	IdentityID string    `gorm:"index;size:64"`
	Query      string    `gorm:"size:1024"`
	Timestamp  time.Time `gorm:"index"`
}

func (HistoryModel) TableName() string {
	return "search_history"
}

func (m *HistoryModel) ToRecord() *ca.SearchRecord {
	return &ca.SearchRecord{
		ID:         m.ID,
		IdentityID: m.IdentityID,
		Query:      m.Query,
		Timestamp:  m.Timestamp,
	}
}

func RecordToModel(r *ca.SearchRecord) *HistoryModel {
	return &HistoryModel{
		ID:         r.ID,
		IdentityID: r.IdentityID,
		Query:      r.Query,
		Timestamp:  r.Timestamp,
	}
}
