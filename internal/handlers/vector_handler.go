package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/congruo/internal/interfaces"
	"github.com/ternarybob/congruo/internal/models"
)

// VectorHandler handles embedding artifact API requests. Vector keys contain
// slashes (vec/opp/{notice_id}), so the key is the full path remainder.
type VectorHandler struct {
	vectors interfaces.VectorStorage
	logger  arbor.ILogger
}

// NewVectorHandler creates a new vector handler
func NewVectorHandler(vectors interfaces.VectorStorage, logger arbor.ILogger) *VectorHandler {
	return &VectorHandler{
		vectors: vectors,
		logger:  logger,
	}
}

// vectorKeyFromPath extracts the storage key from /api/vectors/{key...}
func vectorKeyFromPath(path string) string {
	return strings.Trim(strings.TrimPrefix(path, "/api/vectors/"), "/")
}

// HandleVectorRoutes dispatches by method for /api/vectors/{key}
func (h *VectorHandler) HandleVectorRoutes(w http.ResponseWriter, r *http.Request) {
	key := vectorKeyFromPath(r.URL.Path)
	if key == "" {
		WriteError(w, http.StatusBadRequest, "Vector key is required")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.putVector(w, r, key)
	case http.MethodGet:
		h.getVector(w, r, key)
	case http.MethodDelete:
		h.deleteVector(w, r, key)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// putVector stores an embedding record under the path key
// PUT /api/vectors/{key}
func (h *VectorHandler) putVector(w http.ResponseWriter, r *http.Request, key string) {
	var record models.VectorRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return
	}
	defer r.Body.Close()

	// The path key wins over any key in the body
	record.Key = key
	if !record.HasFull() {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "vector record requires a full embedding")
		return
	}
	if record.Dimension == 0 {
		record.Dimension = len(record.Full)
	}
	if record.Dimension != len(record.Full) {
		WriteCodedError(w, http.StatusBadRequest, "INVALID_INPUT", "dimension does not match full vector length")
		return
	}
	record.UpdatedAt = time.Now().UTC()

	if err := h.vectors.PutVector(r.Context(), &record); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to store vector")
		WriteError(w, http.StatusInternalServerError, "Failed to store vector")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":       key,
		"dimension": record.Dimension,
		"status":    "stored",
	})
}

// getVector returns an embedding record by key
// GET /api/vectors/{key}
func (h *VectorHandler) getVector(w http.ResponseWriter, r *http.Request, key string) {
	record, err := h.vectors.GetVector(r.Context(), key)
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to read vector")
		WriteError(w, http.StatusInternalServerError, "Failed to read vector")
		return
	}
	if record == nil {
		WriteError(w, http.StatusNotFound, "Vector not found")
		return
	}

	WriteJSON(w, http.StatusOK, record)
}

// deleteVector removes an embedding record
// DELETE /api/vectors/{key}
func (h *VectorHandler) deleteVector(w http.ResponseWriter, r *http.Request, key string) {
	if err := h.vectors.DeleteVector(r.Context(), key); err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to delete vector")
		WriteError(w, http.StatusInternalServerError, "Failed to delete vector")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"key":    key,
		"status": "deleted",
	})
}
