package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

func newTestMatch(companyID, opportunityID string, score float64) *models.MatchResult {
	return &models.MatchResult{
		CompanyID:       companyID,
		OpportunityID:   opportunityID,
		TenantID:        "tenant-1",
		TotalScore:      score,
		ConfidenceLevel: models.ConfidenceForScore(score, 0.75, 0.50),
		Status:          models.MatchStatusOK,
		ExpiresAt:       time.Now().UTC().Add(time.Hour),
	}
}

func TestPutMatchLastWriterWins(t *testing.T) {
	db := newTestDB(t)
	storage := NewMatchStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-1", 0.42)))
	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-1", 0.77)))

	got, err := storage.GetMatch(ctx, "comp-1", "opp-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.77, got.TotalScore, 1e-9)

	count, err := storage.CountMatches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestQueryMatchesOrdering(t *testing.T) {
	db := newTestDB(t)
	storage := NewMatchStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-low", 0.30)))
	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-high", 0.90)))
	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-mid", 0.60)))
	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-2", "opp-high", 0.99)))

	results, err := storage.QueryMatches(ctx, "comp-1", 0, interfaces.MatchOrderScoreDesc)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "opp-high", results[0].OpportunityID)
	assert.Equal(t, "opp-mid", results[1].OpportunityID)
	assert.Equal(t, "opp-low", results[2].OpportunityID)

	limited, err := storage.QueryMatches(ctx, "comp-1", 2, interfaces.MatchOrderScoreDesc)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestDeleteMatchesForCompany(t *testing.T) {
	db := newTestDB(t)
	storage := NewMatchStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-1", 0.5)))
	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-2", 0.5)))
	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-2", "opp-1", 0.5)))

	deleted, err := storage.DeleteMatches(ctx, "comp-1")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Unrelated company untouched
	_, err = storage.GetMatch(ctx, "comp-2", "opp-1")
	assert.NoError(t, err)

	_, err = storage.GetMatch(ctx, "comp-1", "opp-1")
	assert.Error(t, err)
}

func TestDeleteExpiredMatches(t *testing.T) {
	db := newTestDB(t)
	storage := NewMatchStorage(db, arbor.NewLogger())
	ctx := context.Background()

	expired := newTestMatch("comp-1", "opp-old", 0.5)
	expired.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, storage.PutMatch(ctx, expired))
	require.NoError(t, storage.PutMatch(ctx, newTestMatch("comp-1", "opp-new", 0.5)))

	deleted, err := storage.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = storage.GetMatch(ctx, "comp-1", "opp-new")
	assert.NoError(t, err)
}
