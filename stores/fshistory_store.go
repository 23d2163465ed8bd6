package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	ca "github.com/courseai/courseai"
)

// FSHistoryStore stores search history records as JSON files, one per
// record.
type FSHistoryStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSHistoryStore(storagePath string) *FSHistoryStore {
	return &FSHistoryStore{StoragePath: storagePath}
}

func (s *FSHistoryStore) recordPath(id string) string {
	safe := filepath.Base(id)
	return filepath.Join(s.StoragePath, "history", safe+".json")
}

func (s *FSHistoryStore) loadAll() ([]*ca.SearchRecord, error) {
	dir := filepath.Join(s.StoragePath, "history")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}

	var records []*ca.SearchRecord
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec ca.SearchRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

func (s *FSHistoryStore) Append(ctx context.Context, record *ca.SearchRecord) (*ca.SearchRecord, error) {
	if record == nil || record.IdentityID == "" || record.Query == "" {
		return nil, fmt.Errorf("%w: identity id and query are required", ca.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *record
	if stored.ID == "" {
		stored.ID = ca.NewID()
	}
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now()
	}

	path := s.recordPath(stored.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}
	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeAtomicFile(path, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}
	return &stored, nil
}

func (s *FSHistoryStore) ListByIdentity(ctx context.Context, identityID string) ([]*ca.SearchRecord, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	var records []*ca.SearchRecord
	for _, rec := range all {
		if rec.IdentityID == identityID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}

func (s *FSHistoryStore) DeleteOne(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(id)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ca.ErrRecordNotFound
		}
		return fmt.Errorf("%w: %v", ca.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *FSHistoryStore) DeleteAllByIdentity(ctx context.Context, identityID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.loadAll()
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, rec := range all {
		if rec.IdentityID != identityID {
			continue
		}
		if err := os.Remove(s.recordPath(rec.ID)); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

func (s *FSHistoryStore) CountByIdentity(ctx context.Context, identityID string) (int64, error) {
	records, err := s.ListByIdentity(ctx, identityID)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}
