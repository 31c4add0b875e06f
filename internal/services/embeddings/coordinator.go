package embeddings

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// Coordinator keeps vector records in step with catalog writes. Company
// profile updates are embedded as they happen (event-driven); opportunities
// are embedded by a periodic sweep over catalog entries that have no
// vector_uri yet. With the embedding provider disabled both paths are no-ops
// and the semantic scorer reports missing embeddings.
type Coordinator struct {
	embeddings    interfaces.EmbeddingService
	opportunities interfaces.OpportunityStorage
	companies     interfaces.CompanyStorage
	vectors       interfaces.VectorStorage
	events        interfaces.EventService
	logger        arbor.ILogger

	// Prevents concurrent sweeps
	mu       sync.Mutex
	sweeping bool
}

// NewCoordinator creates an embedding coordinator
func NewCoordinator(
	embeddingService interfaces.EmbeddingService,
	opportunities interfaces.OpportunityStorage,
	companies interfaces.CompanyStorage,
	vectors interfaces.VectorStorage,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Coordinator {
	return &Coordinator{
		embeddings:    embeddingService,
		opportunities: opportunities,
		companies:     companies,
		vectors:       vectors,
		events:        events,
		logger:        logger,
	}
}

// Start subscribes to company profile updates
func (c *Coordinator) Start() error {
	return c.events.Subscribe(interfaces.EventCompanyUpdated, c.handleCompanyUpdated)
}

// handleCompanyUpdated embeds the changed profile
func (c *Coordinator) handleCompanyUpdated(ctx context.Context, event interfaces.Event) error {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovered from panic in company embedding handler")
		}
	}()

	payload, ok := event.Payload.(map[string]interface{})
	if !ok {
		return nil
	}
	companyID, ok := payload["company_id"].(string)
	if !ok || companyID == "" {
		return nil
	}

	if err := c.EmbedCompany(ctx, companyID); err != nil {
		c.logger.Warn().
			Err(err).
			Str("company_id", companyID).
			Msg("Company embedding failed, profile keeps its previous vector")
	}
	return nil
}

// EmbedCompany generates and stores the vector record for one profile, and
// stamps the profile's vector_uri when it was empty
func (c *Coordinator) EmbedCompany(ctx context.Context, companyID string) error {
	if !c.embeddings.IsAvailable(ctx) {
		c.logger.Debug().Str("company_id", companyID).Msg("Embedding provider unavailable, skipping company embedding")
		return nil
	}

	profile, err := c.companies.GetCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("failed to load company %s: %w", companyID, err)
	}

	record, err := c.embeddings.EmbedCompany(ctx, profile)
	if err != nil {
		return err
	}

	if err := c.vectors.PutVector(ctx, record); err != nil {
		return fmt.Errorf("failed to store company vector: %w", err)
	}

	if profile.VectorURI != record.Key {
		profile.VectorURI = record.Key
		if err := c.companies.StoreCompany(ctx, profile); err != nil {
			return fmt.Errorf("failed to stamp vector_uri on company %s: %w", companyID, err)
		}
	}

	c.logger.Debug().
		Str("company_id", companyID).
		Str("vector_uri", record.Key).
		Int("dimension", record.Dimension).
		Msg("Company profile embedded")
	return nil
}

// SweepOpportunities embeds up to limit catalog entries that have no
// vector_uri. Returns the number embedded. Only one sweep runs at a time;
// overlapping calls return immediately.
func (c *Coordinator) SweepOpportunities(ctx context.Context, limit int) (int, error) {
	if !c.embeddings.IsAvailable(ctx) {
		return 0, nil
	}

	c.mu.Lock()
	if c.sweeping {
		c.mu.Unlock()
		c.logger.Debug().Msg("Opportunity embedding sweep already in progress, skipping")
		return 0, nil
	}
	c.sweeping = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.sweeping = false
		c.mu.Unlock()
	}()

	if limit <= 0 {
		limit = 50
	}

	var pending []*models.Opportunity
	err := c.opportunities.Scan(ctx, models.OpportunityFilters{}, func(opp *models.Opportunity) bool {
		if opp.VectorURI == "" {
			pending = append(pending, opp)
		}
		return len(pending) < limit
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan for unembedded opportunities: %w", err)
	}

	embedded := 0
	for _, opp := range pending {
		if ctx.Err() != nil {
			break
		}

		record, err := c.embeddings.EmbedOpportunity(ctx, opp)
		if err != nil {
			c.logger.Warn().
				Err(err).
				Str("notice_id", opp.NoticeID).
				Msg("Opportunity embedding failed")
			if !interfaces.IsRetryableEmbeddingError(err) {
				continue
			}
			// Rate limited or transient: stop the sweep, the next pass retries
			break
		}

		if err := c.vectors.PutVector(ctx, record); err != nil {
			c.logger.Warn().Err(err).Str("notice_id", opp.NoticeID).Msg("Failed to store opportunity vector")
			continue
		}

		opp.VectorURI = record.Key
		if err := c.opportunities.StoreOpportunity(ctx, opp); err != nil {
			c.logger.Warn().Err(err).Str("notice_id", opp.NoticeID).Msg("Failed to stamp vector_uri on opportunity")
			continue
		}
		embedded++
	}

	if embedded > 0 {
		c.logger.Info().
			Int("embedded", embedded).
			Int("pending", len(pending)).
			Msg("Opportunity embedding sweep complete")
	}
	return embedded, nil
}
