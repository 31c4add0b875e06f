package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"http 429", errors.New("googleapi: Error 429: Resource has been exhausted"), interfaces.ErrRateLimit},
		{"grpc resource exhausted", errors.New("rpc error: code = ResourceExhausted desc = try later"), interfaces.ErrRateLimit},
		{"quota", errors.New("quota exceeded for embed requests"), interfaces.ErrRateLimit},
		{"rate limit", errors.New("rate limit hit"), interfaces.ErrRateLimit},
		{"http 503", errors.New("googleapi: Error 503: Service Unavailable"), interfaces.ErrTransient},
		{"http 500", errors.New("Error 500: Internal Server Error"), interfaces.ErrTransient},
		{"connection refused", errors.New("dial tcp 1.2.3.4:443: connection refused"), interfaces.ErrTransient},
		{"deadline string", errors.New("context deadline exceeded"), interfaces.ErrTransient},
		{"deadline sentinel", context.DeadlineExceeded, interfaces.ErrTransient},
		{"cancelled sentinel", context.Canceled, interfaces.ErrTransient},
		{"bad api key", errors.New("API key not valid. Please pass a valid API key."), interfaces.ErrFatal},
		{"invalid argument", errors.New("invalid argument: text too long"), interfaces.ErrFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			require.ErrorIs(t, got, tt.want)
		})
	}
}

func TestClassifyPassesThroughClassifiedErrors(t *testing.T) {
	original := fmt.Errorf("%w: dimension mismatch", interfaces.ErrFatal)
	got := classify(original)
	require.Equal(t, original, got, "already classified errors must not be re-wrapped")

	require.Nil(t, classify(nil))
}

func TestClassifiedErrorRetryability(t *testing.T) {
	require.True(t, interfaces.IsRetryableEmbeddingError(classify(errors.New("429 too many requests"))))
	require.True(t, interfaces.IsRetryableEmbeddingError(classify(errors.New("503 unavailable"))))
	require.False(t, interfaces.IsRetryableEmbeddingError(classify(errors.New("API key not valid"))))
}

func TestNormalize(t *testing.T) {
	normalized := normalize([]float32{3, 4})
	require.InDelta(t, 0.6, normalized[0], 1e-6)
	require.InDelta(t, 0.8, normalized[1], 1e-6)

	var sum float64
	for _, x := range normalized {
		sum += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestNormalizeZeroVectorPassesThrough(t *testing.T) {
	zero := []float32{0, 0, 0}
	require.Equal(t, zero, normalize(zero))
}

func TestNormalizeUnitVectorStable(t *testing.T) {
	unit := []float32{1, 0, 0}
	normalized := normalize(unit)
	require.InDelta(t, 1.0, normalized[0], 1e-6)
	require.InDelta(t, 0.0, normalized[1], 1e-6)
}

func TestChunkTextShortTextSingleChunk(t *testing.T) {
	chunks := chunkText("a short description", 2000, 16)
	require.Equal(t, []string{"a short description"}, chunks)
}

func TestChunkTextPrefersParagraphBoundaries(t *testing.T) {
	first := strings.Repeat("a", 70)
	second := strings.Repeat("b", 200)
	chunks := chunkText(first+"\n\n"+second, 100, 16)

	require.GreaterOrEqual(t, len(chunks), 2)
	require.Equal(t, first, chunks[0], "cut should land on the paragraph break past the midpoint")
}

func TestChunkTextRespectsBounds(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 20000)
	chunks := chunkText(long, chunkChars, maxChunks)

	require.Len(t, chunks, maxChunks)
	for i, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), chunkChars, "chunk %d exceeds size", i)
		require.NotEmpty(t, chunk)
	}
}

func TestGenerateEmbeddingRejectsEmptyText(t *testing.T) {
	svc := &Service{logger: arbor.NewLogger()}

	_, err := svc.GenerateEmbedding(context.Background(), "   ")
	require.ErrorIs(t, err, interfaces.ErrFatal)
	require.False(t, interfaces.IsRetryableEmbeddingError(err))
}

func TestSleepBackoffHonorsCancellation(t *testing.T) {
	svc := &Service{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.sleepBackoff(ctx, 1, errors.New("transient"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDisabledServiceFailsFatally(t *testing.T) {
	svc := newDisabledService("gemini-embedding-001", 1024)

	require.False(t, svc.IsAvailable(context.Background()))
	require.Equal(t, "gemini-embedding-001", svc.ModelName())
	require.Equal(t, 1024, svc.Dimension())

	_, err := svc.GenerateEmbedding(context.Background(), "some text")
	require.ErrorIs(t, err, interfaces.ErrFatal)
	require.False(t, interfaces.IsRetryableEmbeddingError(err))

	_, err = svc.EmbedOpportunity(context.Background(), &models.Opportunity{NoticeID: "FA8750-26-R-0001"})
	require.ErrorIs(t, err, interfaces.ErrFatal)

	_, err = svc.EmbedCompany(context.Background(), &models.CompanyProfile{CompanyID: "acme-federal"})
	require.ErrorIs(t, err, interfaces.ErrFatal)
}

func TestNewServiceDisabledProvider(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Embeddings.Provider = "disabled"

	svc, err := NewService(context.Background(), config, nil, arbor.NewLogger())
	require.NoError(t, err)
	require.False(t, svc.IsAvailable(context.Background()))
}

func TestNewServiceEmptyProviderDisables(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Embeddings.Provider = ""

	svc, err := NewService(context.Background(), config, nil, arbor.NewLogger())
	require.NoError(t, err)
	require.False(t, svc.IsAvailable(context.Background()))
}

func TestNewServiceUnknownProvider(t *testing.T) {
	config := common.NewDefaultConfig()
	config.Embeddings.Provider = "martian"

	_, err := NewService(context.Background(), config, nil, arbor.NewLogger())
	require.ErrorContains(t, err, "unknown embedding provider")
}

func TestNewServiceGeminiWithoutKeyDegrades(t *testing.T) {
	t.Setenv("CONGRUO_GEMINI_API_KEY", "")

	config := common.NewDefaultConfig()
	config.Embeddings.Provider = "gemini"
	config.Gemini.APIKey = ""

	svc, err := NewService(context.Background(), config, nil, arbor.NewLogger())
	require.NoError(t, err)
	require.False(t, svc.IsAvailable(context.Background()), "no key means the disabled adapter")

	_, err = svc.GenerateEmbedding(context.Background(), "text")
	require.ErrorIs(t, err, interfaces.ErrFatal)
}

func TestVectorKeyHelpers(t *testing.T) {
	require.Equal(t, "vec/opp/FA8750-26-R-0001", models.OpportunityVectorKey("FA8750-26-R-0001"))
	require.Equal(t, "vec/comp/acme-federal", models.CompanyVectorKey("acme-federal"))
}
