package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// HistoryStorage implements optimizer decision history for Badger.
// Records are append-only and keyed by (tenant_id, timestamp).
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

// AppendRecord stores one tuning decision
func (s *HistoryStorage) AppendRecord(ctx context.Context, record *models.OptimizationRecord) error {
	if record.TenantID == "" {
		return fmt.Errorf("optimization record requires a tenant_id")
	}
	if record.ID == "" {
		record.ID = models.OptimizationKey(record.TenantID, record.Timestamp)
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to append optimization record: %w", err)
	}
	return nil
}

// ListRecords returns a tenant's decisions newest first
func (s *HistoryStorage) ListRecords(ctx context.Context, tenantID string, limit int) ([]*models.OptimizationRecord, error) {
	var records []models.OptimizationRecord
	query := badgerhold.Where("TenantID").Eq(tenantID).SortBy("Timestamp").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list optimization records: %w", err)
	}

	result := make([]*models.OptimizationRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
