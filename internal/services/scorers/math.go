package scorers

import (
	"math"
	"strings"
)

// stopwords excluded from keyword tokenization. Short function words plus
// the solicitation boilerplate that appears in nearly every notice.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"were": true, "will": true, "with": true, "shall": true, "must": true,
	"contractor": true, "government": true, "solicitation": true, "requirement": true,
	"requirements": true, "services": true, "provide": true, "support": true,
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched dimensions or zero-norm inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Clamp01 constrains a score to [0,1]
func Clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// Mean calculates the arithmetic mean; empty input returns 0
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Tokenize lowercases text and splits it into content tokens. Stopwords,
// single characters, and all-digit tokens (NAICS codes, dollar figures)
// are dropped.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] || isAllDigits(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// TokenCounts builds a term-frequency map from tokens
func TokenCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
