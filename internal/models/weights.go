// -----------------------------------------------------------------------
// Weights - Per-tenant scorer weight vectors
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// WeightSet maps scorer names to their aggregation weights
type WeightSet map[string]float64

// DefaultWeightSet returns the stock weight vector. Values sum to 1.0.
func DefaultWeightSet() WeightSet {
	return WeightSet{
		"semantic_similarity": 0.25,
		"keyword_matching":    0.15,
		"naics_alignment":     0.15,
		"past_performance":    0.20,
		"certification_bonus": 0.10,
		"geographic_match":    0.05,
		"capacity_fit":        0.05,
		"recency_factor":      0.05,
	}
}

// Clone returns an independent copy of the weight set
func (w WeightSet) Clone() WeightSet {
	out := make(WeightSet, len(w))
	for name, weight := range w {
		out[name] = weight
	}
	return out
}

// Normalized clamps negative weights to 0 and rescales so the weights sum
// to 1.0. An all-zero vector is returned unchanged.
func (w WeightSet) Normalized() WeightSet {
	out := make(WeightSet, len(w))
	sum := 0.0
	for name, weight := range w {
		if weight < 0 {
			weight = 0
		}
		out[name] = weight
		sum += weight
	}
	if sum == 0 {
		return out
	}
	for name := range out {
		out[name] /= sum
	}
	return out
}

// Sum returns the total of all weights
func (w WeightSet) Sum() float64 {
	sum := 0.0
	for _, weight := range w {
		sum += weight
	}
	return sum
}

// TenantWeights is the persisted per-tenant weight override
type TenantWeights struct {
	TenantID  string    `json:"tenant_id" badgerhold:"key"`
	Weights   WeightSet `json:"weights"`
	UpdatedAt time.Time `json:"updated_at"`
}
