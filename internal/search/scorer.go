package search

import (
	"math"

	"github.com/gcbaptista/docsearch/index"
)

// BM25 parameters
const (
	k1 = 1.2  // Controls term frequency saturation
	b  = 0.75 // Controls how much effect field length has
)

// Variant factors for typo matches, by edit distance.
const (
	oneTypoFactor  = 0.8
	twoTyposFactor = 0.6
)

// Scorer computes field-weighted BM25 scores against one index snapshot.
type Scorer struct {
	idx     *index.Index
	numDocs float64
}

// NewScorer creates a scorer for idx.
func NewScorer(idx *index.Index) *Scorer {
	return &Scorer{idx: idx, numDocs: float64(idx.NumDocs())}
}

// IDF calculates the inverse document frequency
// IDF = ln(1 + (N - df + 0.5) / (df + 0.5)), which is never negative.
// df counts records containing the term in any field.
func (s *Scorer) IDF(docFreq int) float64 {
	if s.numDocs == 0 || docFreq <= 0 {
		return 0.0
	}
	df := float64(docFreq)
	return math.Log(1 + (s.numDocs-df+0.5)/(df+0.5))
}

// FieldScore returns the weighted BM25 contribution of one term in one field
// of one record:
// w_f * idf * (tf * (k1 + 1)) / (tf + k1 * (1 - b + b * (len_f / avglen_f)))
func (s *Scorer) FieldScore(idf float64, termFreq int, fieldLength int, field index.Field) float64 {
	if termFreq <= 0 || idf == 0 {
		return 0.0
	}
	tf := float64(termFreq)

	norm := 1.0
	if avg := s.idx.AvgFieldLength(field); avg > 0 {
		norm = 1 - b + b*(float64(fieldLength)/avg)
	}
	return s.idx.FieldWeight(field) * idf * (tf * (k1 + 1)) / (tf + k1*norm)
}

// PhraseBonus is added once per field in which the whole query occurs
// contiguously.
func (s *Scorer) PhraseBonus(field index.Field) float64 {
	return s.idx.Settings.PhraseBonus * s.idx.FieldWeight(field)
}

// CategoryBoost multiplies the final score of a record.
func (s *Scorer) CategoryBoost(category string) float64 {
	return s.idx.Settings.CategoryBoost(category)
}

// PrefixFactor scales matches found by prefix expansion.
func (s *Scorer) PrefixFactor() float64 {
	return s.idx.Settings.PrefixPenalty
}

// TypoFactor scales matches found by typo tolerance.
func TypoFactor(distance int) float64 {
	switch {
	case distance <= 0:
		return 1.0
	case distance == 1:
		return oneTypoFactor
	default:
		return twoTyposFactor
	}
}
