package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// VectorStorage implements embedding artifact persistence for Badger
type VectorStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewVectorStorage creates a new VectorStorage instance
func NewVectorStorage(db *BadgerDB, logger arbor.ILogger) interfaces.VectorStorage {
	return &VectorStorage{
		db:     db,
		logger: logger,
	}
}

// PutVector upserts one vector record keyed by its URI
func (s *VectorStorage) PutVector(ctx context.Context, record *models.VectorRecord) error {
	if record.Key == "" {
		return fmt.Errorf("vector record requires a key")
	}
	record.UpdatedAt = time.Now().UTC()

	if err := s.db.Store().Upsert(record.Key, record); err != nil {
		return fmt.Errorf("failed to store vector: %w", err)
	}
	return nil
}

// GetVector returns nil without error when the key does not resolve.
// A dangling vector_uri is a degraded-scoring condition, not a failure.
func (s *VectorStorage) GetVector(ctx context.Context, key string) (*models.VectorRecord, error) {
	if key == "" {
		return nil, nil
	}

	var record models.VectorRecord
	err := s.db.Store().Get(key, &record)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vector: %w", err)
	}
	return &record, nil
}

// DeleteVector removes one vector record
func (s *VectorStorage) DeleteVector(ctx context.Context, key string) error {
	err := s.db.Store().Delete(key, &models.VectorRecord{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	return nil
}

// CountVectors returns the number of stored vector records
func (s *VectorStorage) CountVectors(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.VectorRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return int(count), nil
}
