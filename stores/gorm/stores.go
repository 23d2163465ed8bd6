package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	ca "github.com/courseai/courseai"
)

// AutoMigrate runs database migrations for all courseai tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&IdentityModel{},
		&HistoryModel{},
	)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ca.ErrDuplicateKey, err)
	default:
		return fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}
}

// IdentityStore implements ca.IdentityStore using GORM.
type IdentityStore struct {
	db *gorm.DB
}

func NewIdentityStore(db *gorm.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func (s *IdentityStore) first(ctx context.Context, query string, args ...any) (*ca.Identity, error) {
	var model IdentityModel
	err := s.db.WithContext(ctx).First(&model, append([]any{query}, args...)...).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translate(err)
	}
	return model.ToIdentity(), nil
}

func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*ca.Identity, error) {
	return s.first(ctx, "email = ?", ca.NormalizeEmail(email))
}

func (s *IdentityStore) FindByIdentifier(ctx context.Context, identifier string) (*ca.Identity, error) {
	needle := strings.ToLower(strings.TrimSpace(identifier))
	return s.first(ctx, "username = ? OR email = ?", needle, needle)
}

func (s *IdentityStore) FindByUsernameExcluding(ctx context.Context, username, excludeEmail string) (*ca.Identity, error) {
	return s.first(ctx, "username = ? AND email <> ?",
		ca.NormalizeUsername(username), ca.NormalizeEmail(excludeEmail))
}

func (s *IdentityStore) Create(ctx context.Context, identity *ca.Identity) (*ca.Identity, error) {
	model := IdentityToModel(identity)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToIdentity(), nil
}

func (s *IdentityStore) Update(ctx context.Context, email string, patch ca.IdentityPatch) (*ca.Identity, error) {
	email = ca.NormalizeEmail(email)

	updates := map[string]any{}
	if patch.DisplayName != nil {
		updates["display_name"] = *patch.DisplayName
	}
	if patch.AvatarURL != nil {
		updates["avatar_url"] = *patch.AvatarURL
	}
	if patch.Username != nil {
		updates["username"] = ca.NormalizeUsername(*patch.Username)
	}
	if patch.Credential != nil {
		if patch.Credential.Enabled() {
			updates["credential_hash"] = patch.Credential.Hash
		} else {
			updates["credential_hash"] = nil
		}
	}
	if patch.CredentialChangedAt != nil {
		updates["credential_changed_at"] = *patch.CredentialChangedAt
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&IdentityModel{}).
			Where("email = ?", email).Updates(updates)
		if res.Error != nil {
			return nil, translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, nil
		}
	}
	return s.FindByEmail(ctx, email)
}

func (s *IdentityStore) List(ctx context.Context) ([]*ca.Identity, error) {
	var models []IdentityModel
	if err := s.db.WithContext(ctx).Order("created_at").Find(&models).Error; err != nil {
		return nil, translate(err)
	}
	identities := make([]*ca.Identity, len(models))
	for i, m := range models {
		identities[i] = m.ToIdentity()
	}
	return identities, nil
}

// HistoryStore implements ca.HistoryStore using GORM.
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(ctx context.Context, record *ca.SearchRecord) (*ca.SearchRecord, error) {
	if record == nil || record.IdentityID == "" || record.Query == "" {
		return nil, fmt.Errorf("%w: identity id and query are required", ca.ErrInvalidInput)
	}
	stored := *record
	if stored.ID == "" {
		stored.ID = ca.NewID()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}
	stored.Query = strings.TrimSpace(stored.Query)

	model := RecordToModel(&stored)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToRecord(), nil
}

func (s *HistoryStore) ListByIdentity(ctx context.Context, identityID string) ([]*ca.SearchRecord, error) {
	var models []HistoryModel
	err := s.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("timestamp DESC").
		Find(&models).Error
	if err != nil {
		return nil, translate(err)
	}
	records := make([]*ca.SearchRecord, len(models))
	for i, m := range models {
		records[i] = m.ToRecord()
	}
	return records, nil
}

func (s *HistoryStore) DeleteOne(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&HistoryModel{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ca.ErrRecordNotFound
	}
	return nil
}

func (s *HistoryStore) DeleteAllByIdentity(ctx context.Context, identityID string) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&HistoryModel{}, "identity_id = ?", identityID)
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *HistoryStore) CountByIdentity(ctx context.Context, identityID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&HistoryModel{}).
		Where("identity_id = ?", identityID).
		Count(&count).Error
	if err != nil {
		return 0, translate(err)
	}
	return count, nil
}
