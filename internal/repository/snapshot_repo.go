package repository

import (
	"context"
	"errors"
	"slices"
	"sync"

	"tourinvoice/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSnapshotNotFound is returned by DocumentStore.Load when nothing is stored for a session.
var ErrSnapshotNotFound = errors.New("wizard snapshot not found")

// DocumentStore persists the raw JSON snapshot of an in-progress wizard session.
// It stores bytes verbatim; decoding is the caller's concern.
type DocumentStore interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, data []byte) error
	Clear(ctx context.Context, sessionID string) error
}

type snapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository returns a DocumentStore backed by the wizard_snapshots table.
func NewSnapshotRepository(db *gorm.DB) DocumentStore {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) Load(ctx context.Context, sessionID string) ([]byte, error) {
	var snap model.WizardSnapshot
	err := GetDB(ctx, r.db).First(&snap, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(snap.Data), nil
}

func (r *snapshotRepository) Save(ctx context.Context, sessionID string, data []byte) error {
	snap := model.WizardSnapshot{SessionID: sessionID, Data: datatypes.JSON(data)}
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&snap).Error
}

func (r *snapshotRepository) Clear(ctx context.Context, sessionID string) error {
	return GetDB(ctx, r.db).Delete(&model.WizardSnapshot{}, "session_id = ?", sessionID).Error
}

// MemoryStore is a process-local DocumentStore.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[sessionID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return slices.Clone(data), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[sessionID] = slices.Clone(data)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, sessionID)
	return nil
}
