package common

import (
	"github.com/google/uuid"
)

// NewBatchID generates a unique batch job ID with the "batch_" prefix
// Format: batch_<uuid>
func NewBatchID() string {
	return "batch_" + uuid.New().String()
}

// NewUnitID generates a unique work unit ID with the "unit_" prefix
// Format: unit_<uuid>
func NewUnitID() string {
	return "unit_" + uuid.New().String()
}

// NewBriefID generates a unique capture brief ID with the "brief_" prefix
// Format: brief_<uuid>
func NewBriefID() string {
	return "brief_" + uuid.New().String()
}
