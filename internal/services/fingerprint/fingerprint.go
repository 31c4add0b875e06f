// Package fingerprint derives deterministic cache identities for
// (opportunity, company, weights) triples. All functions are stateless
// and perform no I/O.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/congruo/internal/models"
)

const (
	shortHashLen   = 8
	fingerprintLen = 32
)

// canonicalJSON renders a value as JSON with object keys sorted, so two
// semantically equal values always serialize to the same bytes. Struct
// values round-trip through a map because struct fields marshal in
// declaration order, not sorted order.
func canonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to canonicalize value: %w", err)
	}

	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to remarshal value: %w", err)
	}
	return canonical, nil
}

// ShortHash returns the first 8 hex characters of the SHA-256 digest of the
// value's canonical JSON form. Any content change to the value changes the
// short hash.
func ShortHash(v interface{}) (string, error) {
	canonical, err := canonicalJSON(v)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:])[:shortHashLen], nil
}

// Compute builds the 32-character lowercase hex fingerprint for a match
// evaluation. Identical inputs always produce identical fingerprints;
// changing either entity's content or the effective weights changes it.
func Compute(opp *models.Opportunity, profile *models.CompanyProfile, weights models.WeightSet) (string, error) {
	if opp == nil || profile == nil {
		return "", fmt.Errorf("opportunity and company profile are required")
	}

	oppHash, err := ShortHash(opp)
	if err != nil {
		return "", fmt.Errorf("failed to hash opportunity: %w", err)
	}
	profileHash, err := ShortHash(profile)
	if err != nil {
		return "", fmt.Errorf("failed to hash company profile: %w", err)
	}
	weightsHash, err := ShortHash(weights)
	if err != nil {
		return "", fmt.Errorf("failed to hash weights: %w", err)
	}

	material := strings.Join([]string{
		opp.NoticeID,
		profile.CompanyID,
		oppHash,
		profileHash,
		weightsHash,
	}, "|")

	digest := sha256.Sum256([]byte(material))
	return hex.EncodeToString(digest[:])[:fingerprintLen], nil
}
