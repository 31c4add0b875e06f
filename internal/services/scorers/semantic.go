package scorers

import (
	"context"
	"time"

	"github.com/ternarybob/congruo/internal/models"
)

// maxChunks bounds the best-chunk search over long opportunity documents
const maxChunks = 16

// SemanticScorer measures embedding similarity between the opportunity
// document and the company capability statement. It is the only scorer
// whose inputs require I/O, which the orchestrator performs up front: the
// pre-fetched vectors arrive through the scoring context.
type SemanticScorer struct{}

func (s *SemanticScorer) Name() string           { return NameSemantic }
func (s *SemanticScorer) DefaultWeight() float64 { return 0.25 }

// Score blends three signals: full-document similarity, the best chunk
// similarity over up to 16 opportunity chunks, and the mean of section
// similarities (title and description against the capability vector).
// Final score = 0.4*full + 0.4*best_chunk + 0.2*mean(sections). Chunks and
// sections are optional refinements; when absent the full-document signal
// stands in for them.
func (s *SemanticScorer) Score(_ context.Context, _ *models.Opportunity, _ *models.CompanyProfile, sctx *models.ScoringContext) models.ComponentResult {
	start := time.Now()

	oppVec := sctx.OpportunityVector
	compVec := sctx.CompanyVector
	if !oppVec.HasFull() || !compVec.HasFull() {
		detail := map[string]interface{}{
			"opportunity_vector": oppVec.HasFull(),
			"company_vector":     compVec.HasFull(),
		}
		return finish(models.ComponentResult{
			Score:  0.0,
			Status: models.ScoreStatusMissingEmbedding,
			Detail: detail,
		}, start)
	}

	full := Clamp01(CosineSimilarity(oppVec.Full, compVec.Full))

	bestChunk := full
	chunksCompared := 0
	for i, chunk := range oppVec.Chunks {
		if i >= maxChunks {
			break
		}
		sim := Clamp01(CosineSimilarity(chunk, compVec.Full))
		if chunksCompared == 0 || sim > bestChunk {
			bestChunk = sim
		}
		chunksCompared++
	}

	sectionSims := make([]float64, 0, 2)
	for _, section := range []string{models.VectorSectionTitle, models.VectorSectionDescription} {
		if vec, ok := oppVec.Sections[section]; ok && len(vec) > 0 {
			sectionSims = append(sectionSims, Clamp01(CosineSimilarity(vec, compVec.Full)))
		}
	}
	sectionMean := full
	if len(sectionSims) > 0 {
		sectionMean = Mean(sectionSims)
	}

	score := 0.4*full + 0.4*bestChunk + 0.2*sectionMean

	return finish(models.ComponentResult{
		Score:  score,
		Status: models.ScoreStatusOK,
		Detail: map[string]interface{}{
			"full_similarity":       full,
			"best_chunk_similarity": bestChunk,
			"section_mean":          sectionMean,
			"chunks_compared":       chunksCompared,
			"sections_compared":     len(sectionSims),
		},
	}, start)
}
