package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/models"
)

// fakeVectorStore is an in-memory VectorStorage for handler tests
type fakeVectorStore struct {
	mu      sync.Mutex
	records map[string]*models.VectorRecord
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string]*models.VectorRecord)}
}

func (s *fakeVectorStore) PutVector(_ context.Context, record *models.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *record
	s.records[record.Key] = &stored
	return nil
}

func (s *fakeVectorStore) GetVector(_ context.Context, key string) (*models.VectorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	found := *record
	return &found, nil
}

func (s *fakeVectorStore) DeleteVector(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *fakeVectorStore) CountVectors(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func vectorBody(t *testing.T, record *models.VectorRecord) *bytes.Buffer {
	t.Helper()
	data, err := json.Marshal(record)
	require.NoError(t, err)
	return bytes.NewBuffer(data)
}

func TestPutVectorHandler(t *testing.T) {
	store := newFakeVectorStore()
	handler := NewVectorHandler(store, arbor.NewLogger())

	record := &models.VectorRecord{
		Full:  []float32{0.6, 0.8},
		Model: "text-embedding-004",
	}

	req := httptest.NewRequest(http.MethodPut, "/api/vectors/vec/opp/notice-100", vectorBody(t, record))
	rec := httptest.NewRecorder()

	handler.HandleVectorRoutes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "vec/opp/notice-100", resp["key"])
	assert.Equal(t, float64(2), resp["dimension"], "dimension should default to vector length")

	stored, err := store.GetVector(context.Background(), "vec/opp/notice-100")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 2, stored.Dimension)
	assert.False(t, stored.UpdatedAt.IsZero())
}

func TestPutVectorHandlerPathKeyWins(t *testing.T) {
	store := newFakeVectorStore()
	handler := NewVectorHandler(store, arbor.NewLogger())

	record := &models.VectorRecord{
		Key:  "vec/opp/other",
		Full: []float32{1.0},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/vectors/vec/comp/comp-100", vectorBody(t, record))
	rec := httptest.NewRecorder()

	handler.HandleVectorRoutes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := store.GetVector(context.Background(), "vec/comp/comp-100")
	require.NoError(t, err)
	assert.NotNil(t, stored)

	orphan, err := store.GetVector(context.Background(), "vec/opp/other")
	require.NoError(t, err)
	assert.Nil(t, orphan)
}

func TestPutVectorHandlerRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"missing full vector", `{"model":"text-embedding-004"}`},
		{"dimension mismatch", `{"full":[0.6,0.8],"dimension":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewVectorHandler(newFakeVectorStore(), arbor.NewLogger())

			req := httptest.NewRequest(http.MethodPut, "/api/vectors/vec/opp/notice-100", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.HandleVectorRoutes(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp map[string]interface{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "INVALID_INPUT", resp["code"])
		})
	}
}

func TestGetVectorHandler(t *testing.T) {
	store := newFakeVectorStore()
	require.NoError(t, store.PutVector(context.Background(), &models.VectorRecord{
		Key:       "vec/opp/notice-100",
		Dimension: 2,
		Full:      []float32{0.6, 0.8},
	}))

	handler := NewVectorHandler(store, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/vectors/vec/opp/notice-100", nil)
	rec := httptest.NewRecorder()

	handler.HandleVectorRoutes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var record models.VectorRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&record))
	assert.Equal(t, "vec/opp/notice-100", record.Key)
	assert.Len(t, record.Full, 2)
}

func TestGetVectorHandlerNotFound(t *testing.T) {
	handler := NewVectorHandler(newFakeVectorStore(), arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/vectors/vec/opp/missing", nil)
	rec := httptest.NewRecorder()

	handler.HandleVectorRoutes(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteVectorHandler(t *testing.T) {
	store := newFakeVectorStore()
	require.NoError(t, store.PutVector(context.Background(), &models.VectorRecord{
		Key:  "vec/opp/notice-100",
		Full: []float32{1.0},
	}))

	handler := NewVectorHandler(store, arbor.NewLogger())

	req := httptest.NewRequest(http.MethodDelete, "/api/vectors/vec/opp/notice-100", nil)
	rec := httptest.NewRecorder()

	handler.HandleVectorRoutes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	count, err := store.CountVectors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestVectorRoutesRejectEmptyKey(t *testing.T) {
	handler := NewVectorHandler(newFakeVectorStore(), arbor.NewLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/vectors/", nil)
	rec := httptest.NewRecorder()

	handler.HandleVectorRoutes(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVectorKeyFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/vectors/vec/opp/notice-100", "vec/opp/notice-100"},
		{"/api/vectors/vec/comp/comp-100/", "vec/comp/comp-100"},
		{"/api/vectors/", ""},
	}

	for _, tt := range tests {
		if got := vectorKeyFromPath(tt.path); got != tt.want {
			t.Errorf("vectorKeyFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
