// Package embeddings adapts the Gemini embedding API behind the
// EmbeddingService interface. Calls are rate limited and retried with
// exponential backoff; failures are classified into rate-limit,
// transient, and fatal classes so callers can degrade instead of aborting.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/common"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// Descriptions longer than chunkChars get per-chunk vectors alongside
	// the full-document vector
	chunkChars = 2000
	maxChunks  = 16

	transientBackoff = 500 * time.Millisecond
	rateLimitBackoff = 2 * time.Second
	backoffCap       = 8 * time.Second
)

// Service generates embeddings through the Gemini API
type Service struct {
	client     *genai.Client
	model      string
	dimension  int
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	logger     arbor.ILogger
}

// NewService builds the embedding adapter for the configured provider.
// The API key is resolved from the key/value store first, then the config
// fallback. A gemini provider without a key degrades to the disabled
// adapter so the matching pipeline can still run without vectors.
func NewService(
	ctx context.Context,
	config *common.Config,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) (interfaces.EmbeddingService, error) {
	cfg := config.Embeddings
	dimension := config.Matching.EmbeddingDimension

	switch strings.ToLower(cfg.Provider) {
	case "disabled", "":
		logger.Info().Msg("Embedding provider disabled, semantic scoring will report missing embeddings")
		return newDisabledService(cfg.Model, dimension), nil

	case "gemini":
		apiKey, err := common.ResolveAPIKey(ctx, kvStorage, "gemini_api_key", config.Gemini.APIKey)
		if err != nil || apiKey == "" {
			logger.Warn().Msg("No Gemini API key configured, embedding provider degraded to disabled")
			return newDisabledService(cfg.Model, dimension), nil
		}

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}

		logger.Info().
			Str("provider", cfg.Provider).
			Str("model", cfg.Model).
			Int("dimension", dimension).
			Msg("Embedding service initialized")

		return &Service{
			client:     client,
			model:      cfg.Model,
			dimension:  dimension,
			limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
			timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
			maxRetries: cfg.MaxRetries,
			logger:     logger,
		}, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// GenerateEmbedding creates a unit-normalized vector for text. The timeout
// covers the whole call including retries; rate-limit failures back off
// longer than plain transient ones, fatal failures return immediately.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", interfaces.ErrFatal)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleepBackoff(ctx, attempt, lastErr); err != nil {
				return nil, fmt.Errorf("%w: budget exhausted after %d attempts: %v", interfaces.ErrTransient, attempt, lastErr)
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", interfaces.ErrTransient, err)
		}

		vector, err := s.embedOnce(ctx, text)
		if err == nil {
			s.logger.Debug().
				Str("model", s.model).
				Int("dimension", len(vector)).
				Int("text_length", len(text)).
				Dur("duration", time.Since(start)).
				Msg("Generated embedding")
			return vector, nil
		}

		lastErr = classify(err)
		if !interfaces.IsRetryableEmbeddingError(lastErr) {
			return nil, lastErr
		}
		s.logger.Warn().
			Err(lastErr).
			Int("attempt", attempt+1).
			Msg("Embedding attempt failed, retrying")
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", s.maxRetries+1, lastErr)
}

// EmbedOpportunity builds the vector record for an opportunity. The
// full-document vector is required; section and chunk vectors are
// best-effort and logged when they fail.
func (s *Service) EmbedOpportunity(ctx context.Context, opp *models.Opportunity) (*models.VectorRecord, error) {
	if opp == nil {
		return nil, fmt.Errorf("%w: opportunity is nil", interfaces.ErrFatal)
	}

	full, err := s.GenerateEmbedding(ctx, opp.SearchText())
	if err != nil {
		return nil, fmt.Errorf("failed to embed opportunity %s: %w", opp.NoticeID, err)
	}

	record := &models.VectorRecord{
		Key:       models.OpportunityVectorKey(opp.NoticeID),
		Dimension: s.dimension,
		Full:      full,
		Sections:  make(map[string][]float32),
		Model:     s.model,
		UpdatedAt: time.Now().UTC(),
	}

	sections := map[string]string{
		models.VectorSectionTitle:       opp.Title,
		models.VectorSectionDescription: opp.Description,
	}
	for name, text := range sections {
		if strings.TrimSpace(text) == "" {
			continue
		}
		vector, err := s.GenerateEmbedding(ctx, text)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("notice_id", opp.NoticeID).
				Str("section", name).
				Msg("Section embedding failed, record keeps full vector only")
			continue
		}
		record.Sections[name] = vector
	}

	if len(opp.Description) > chunkChars {
		for i, chunk := range chunkText(opp.Description, chunkChars, maxChunks) {
			vector, err := s.GenerateEmbedding(ctx, chunk)
			if err != nil {
				s.logger.Warn().
					Err(err).
					Str("notice_id", opp.NoticeID).
					Int("chunk", i).
					Msg("Chunk embedding failed, stopping chunk pass")
				break
			}
			record.Chunks = append(record.Chunks, vector)
		}
	}

	return record, nil
}

// EmbedCompany builds the vector record for a company capability statement
func (s *Service) EmbedCompany(ctx context.Context, profile *models.CompanyProfile) (*models.VectorRecord, error) {
	if profile == nil {
		return nil, fmt.Errorf("%w: company profile is nil", interfaces.ErrFatal)
	}

	full, err := s.GenerateEmbedding(ctx, profile.ProfileText())
	if err != nil {
		return nil, fmt.Errorf("failed to embed company %s: %w", profile.CompanyID, err)
	}

	return &models.VectorRecord{
		Key:       models.CompanyVectorKey(profile.CompanyID),
		Dimension: s.dimension,
		Full:      full,
		Model:     s.model,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// ModelName returns the embedding model identifier
func (s *Service) ModelName() string {
	return s.model
}

// Dimension returns the configured embedding dimension
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable reports whether the adapter can serve embedding calls
func (s *Service) IsAvailable(ctx context.Context) bool {
	return s.client != nil
}

// embedOnce performs a single EmbedContent call and normalizes the result
func (s *Service) embedOnce(ctx context.Context, text string) ([]float32, error) {
	outputDim := int32(s.dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := s.client.Models.EmbedContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		embeddingConfig)
	if err != nil {
		return nil, err
	}

	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", interfaces.ErrTransient)
	}

	vector := result.Embeddings[0].Values
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: embedding dimension mismatch: expected %d, got %d",
			interfaces.ErrFatal, s.dimension, len(vector))
	}

	// Gemini only pre-normalizes the 3072-dim output; other dimensions
	// come back raw and the cosine scorer expects unit vectors
	return normalize(vector), nil
}

// sleepBackoff waits before a retry. Rate-limit failures back off from a
// higher base than plain transient ones.
func (s *Service) sleepBackoff(ctx context.Context, attempt int, cause error) error {
	base := transientBackoff
	if errors.Is(cause, interfaces.ErrRateLimit) {
		base = rateLimitBackoff
	}
	delay := base << (attempt - 1)
	if delay > backoffCap {
		delay = backoffCap
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify maps an upstream error onto the embedding failure classes.
// Errors already carrying a class pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, interfaces.ErrRateLimit) ||
		errors.Is(err, interfaces.ErrTransient) ||
		errors.Is(err, interfaces.ErrFatal) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", interfaces.ErrTransient, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "exhausted"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", interfaces.ErrRateLimit, err)
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "internal"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"):
		return fmt.Errorf("%w: %v", interfaces.ErrTransient, err)
	default:
		return fmt.Errorf("%w: %v", interfaces.ErrFatal, err)
	}
}

// normalize scales a vector to unit L2 norm. Zero vectors pass through
// unchanged rather than dividing by zero.
func normalize(vector []float32) []float32 {
	var sum float64
	for _, x := range vector {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vector
	}

	norm := math.Sqrt(sum)
	normalized := make([]float32, len(vector))
	for i, x := range vector {
		normalized[i] = float32(float64(x) / norm)
	}
	return normalized
}

// chunkText splits text into at most maxParts pieces of roughly size
// characters, preferring paragraph boundaries
func chunkText(text string, size int, maxParts int) []string {
	var chunks []string
	remaining := text
	for len(chunks) < maxParts && len(remaining) > 0 {
		if len(remaining) <= size {
			chunks = append(chunks, remaining)
			break
		}

		cut := size
		if idx := strings.LastIndex(remaining[:size], "\n\n"); idx > size/2 {
			cut = idx
		} else if idx := strings.LastIndex(remaining[:size], " "); idx > size/2 {
			cut = idx
		}

		chunk := strings.TrimSpace(remaining[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimSpace(remaining[cut:])
	}
	return chunks
}
