package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db          *BadgerDB
	opportunity interfaces.OpportunityStorage
	company     interfaces.CompanyStorage
	match       interfaces.MatchStorage
	cache       interfaces.CacheStorage
	job         interfaces.JobStorage
	schedule    interfaces.ScheduleStorage
	vector      interfaces.VectorStorage
	weight      interfaces.WeightStorage
	history     interfaces.HistoryStorage
	brief       interfaces.BriefStorage
	queue       interfaces.QueueStorage
	kv          interfaces.KeyValueStorage
	logger      arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:          db,
		opportunity: NewOpportunityStorage(db, logger),
		company:     NewCompanyStorage(db, logger),
		match:       NewMatchStorage(db, logger),
		cache:       NewCacheStorage(db, logger),
		job:         NewJobStorage(db, logger),
		schedule:    NewScheduleStorage(db, logger),
		vector:      NewVectorStorage(db, logger),
		weight:      NewWeightStorage(db, logger),
		history:     NewHistoryStorage(db, logger),
		brief:       NewBriefStorage(db, logger),
		queue:       NewQueueStorage(db, logger),
		kv:          NewKVStorage(db, logger),
		logger:      logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// OpportunityStorage returns the opportunity catalog interface
func (m *Manager) OpportunityStorage() interfaces.OpportunityStorage {
	return m.opportunity
}

// CompanyStorage returns the company profile storage interface
func (m *Manager) CompanyStorage() interfaces.CompanyStorage {
	return m.company
}

// MatchStorage returns the match result storage interface
func (m *Manager) MatchStorage() interfaces.MatchStorage {
	return m.match
}

// CacheStorage returns the fingerprint cache storage interface
func (m *Manager) CacheStorage() interfaces.CacheStorage {
	return m.cache
}

// JobStorage returns the batch job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// ScheduleStorage returns the schedule storage interface
func (m *Manager) ScheduleStorage() interfaces.ScheduleStorage {
	return m.schedule
}

// VectorStorage returns the vector storage interface
func (m *Manager) VectorStorage() interfaces.VectorStorage {
	return m.vector
}

// WeightStorage returns the tenant weight storage interface
func (m *Manager) WeightStorage() interfaces.WeightStorage {
	return m.weight
}

// HistoryStorage returns the optimizer history storage interface
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

// BriefStorage returns the capture brief storage interface
func (m *Manager) BriefStorage() interfaces.BriefStorage {
	return m.brief
}

// QueueStorage returns the work queue storage interface
func (m *Manager) QueueStorage() interfaces.QueueStorage {
	return m.queue
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// DB returns the underlying database connection
func (m *Manager) DB() interface{} {
	if m.db != nil {
		return m.db.Store()
	}
	return nil
}

// RunGC runs a value-log garbage collection pass
func (m *Manager) RunGC() int {
	if m.db == nil {
		return 0
	}
	return m.db.RunGC()
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
