package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// MatchOrder selects the sort order for match queries
type MatchOrder string

const (
	MatchOrderScoreDesc   MatchOrder = "score_desc"
	MatchOrderCreatedDesc MatchOrder = "created_desc"
)

// OpportunityStorage - interface for the opportunity catalog
type OpportunityStorage interface {
	// CRUD operations
	StoreOpportunity(ctx context.Context, opp *models.Opportunity) error
	StoreOpportunities(ctx context.Context, opps []*models.Opportunity) error
	GetOpportunity(ctx context.Context, noticeID string) (*models.Opportunity, error)
	DeleteOpportunity(ctx context.Context, noticeID string) error

	// Scan streams the catalog with filters applied; the callback returns
	// false to stop early. Archived opportunities are excluded unless the
	// filters request them.
	Scan(ctx context.Context, filters models.OpportunityFilters, fn func(*models.Opportunity) bool) error

	// Stats operations
	CountOpportunities(ctx context.Context) (int, error)

	// Bulk operations
	ClearAll(ctx context.Context) error
}

// CompanyStorage - interface for company profile persistence
type CompanyStorage interface {
	StoreCompany(ctx context.Context, profile *models.CompanyProfile) error
	GetCompany(ctx context.Context, companyID string) (*models.CompanyProfile, error)
	ListCompanies(ctx context.Context, tenantID string, limit, offset int) ([]*models.CompanyProfile, error)
	DeleteCompany(ctx context.Context, companyID string) error
	CountCompanies(ctx context.Context) (int, error)
}

// MatchStorage - interface for persisted match results
type MatchStorage interface {
	// PutMatch upserts one result keyed by (company_id, opportunity_id)
	PutMatch(ctx context.Context, result *models.MatchResult) error
	GetMatch(ctx context.Context, companyID, opportunityID string) (*models.MatchResult, error)

	// QueryMatches returns a company's results in the given order
	QueryMatches(ctx context.Context, companyID string, limit int, order MatchOrder) ([]*models.MatchResult, error)

	// DeleteMatches bulk-deletes all results for a company (force refresh)
	DeleteMatches(ctx context.Context, companyID string) (int, error)

	// DeleteExpired purges results past their expires_at timestamp
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	CountMatches(ctx context.Context) (int, error)
}

// CacheStorage - TTL-aware store for fingerprint-keyed cache entries
type CacheStorage interface {
	// GetEntry returns nil without error on miss or expiry
	GetEntry(ctx context.Context, fingerprint string) (*models.CacheEntry, error)
	PutEntry(ctx context.Context, entry *models.CacheEntry) error

	// InvalidateCompany best-effort purges all entries involving a company
	InvalidateCompany(ctx context.Context, companyID string) (int, error)

	// DeleteExpired purges entries past their TTL
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	CountEntries(ctx context.Context) (int, error)
}

// JobStorage - interface for batch job records
type JobStorage interface {
	CreateJob(ctx context.Context, job *models.BatchJob) error
	GetJob(ctx context.Context, jobID string) (*models.BatchJob, error)
	UpdateJob(ctx context.Context, job *models.BatchJob) error
	ListJobs(ctx context.Context, tenantID string, limit, offset int) ([]*models.BatchJob, error)
	ListJobsByState(ctx context.Context, state models.JobState) ([]*models.BatchJob, error)

	// TransitionState performs a conditional state update: the write applies
	// only when the stored state equals fromState. Returns the updated job.
	TransitionState(ctx context.Context, jobID string, fromState, toState models.JobState, mutate func(*models.BatchJob)) (*models.BatchJob, error)

	// ApplyCounters atomically adds a delta to the job's counters
	ApplyCounters(ctx context.Context, jobID string, delta models.CounterDelta) (*models.BatchJob, error)

	// GetStaleJobs returns RUNNING jobs whose heartbeat is older than the threshold
	GetStaleJobs(ctx context.Context, threshold time.Duration) ([]*models.BatchJob, error)

	DeleteJob(ctx context.Context, jobID string) error
}

// ScheduleStorage - interface for schedule entries
type ScheduleStorage interface {
	StoreSchedule(ctx context.Context, entry *models.ScheduleEntry) error
	GetSchedule(ctx context.Context, name string) (*models.ScheduleEntry, error)
	ListSchedules(ctx context.Context) ([]*models.ScheduleEntry, error)
	DeleteSchedule(ctx context.Context, name string) error
}

// VectorStorage - interface for embedding artifacts
type VectorStorage interface {
	PutVector(ctx context.Context, record *models.VectorRecord) error

	// GetVector returns nil without error when the key does not resolve
	GetVector(ctx context.Context, key string) (*models.VectorRecord, error)

	DeleteVector(ctx context.Context, key string) error
	CountVectors(ctx context.Context) (int, error)
}

// WeightStorage - interface for per-tenant weight overrides
type WeightStorage interface {
	StoreWeights(ctx context.Context, weights *models.TenantWeights) error

	// GetWeights returns nil without error when no override exists
	GetWeights(ctx context.Context, tenantID string) (*models.TenantWeights, error)

	DeleteWeights(ctx context.Context, tenantID string) error
}

// HistoryStorage - interface for optimizer decision history
type HistoryStorage interface {
	AppendRecord(ctx context.Context, record *models.OptimizationRecord) error
	ListRecords(ctx context.Context, tenantID string, limit int) ([]*models.OptimizationRecord, error)
}

// BriefStorage - interface for generated capture briefs
type BriefStorage interface {
	StoreBrief(ctx context.Context, brief *models.CaptureBrief) error
	GetBrief(ctx context.Context, briefID string) (*models.CaptureBrief, error)
	GetBriefForMatch(ctx context.Context, companyID, opportunityID string) (*models.CaptureBrief, error)
	ListBriefs(ctx context.Context, companyID string, limit int) ([]*models.CaptureBrief, error)
	DeleteBriefs(ctx context.Context, companyID string) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	OpportunityStorage() OpportunityStorage
	CompanyStorage() CompanyStorage
	MatchStorage() MatchStorage
	CacheStorage() CacheStorage
	JobStorage() JobStorage
	ScheduleStorage() ScheduleStorage
	VectorStorage() VectorStorage
	WeightStorage() WeightStorage
	HistoryStorage() HistoryStorage
	BriefStorage() BriefStorage
	QueueStorage() QueueStorage
	KeyValueStorage() KeyValueStorage

	// LoadEnvFile seeds the key/value store from a .env file (API keys)
	LoadEnvFile(ctx context.Context, filePath string) error

	// RunGC compacts the underlying store, returning the number of
	// value-log files rewritten. Safe to call while serving traffic.
	RunGC() int

	DB() interface{}
	Close() error
}
