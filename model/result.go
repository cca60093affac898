package model

// QueryResult is one ranked hit returned by a query.
type QueryResult struct {
	Location string  `json:"location"`
	Page     string  `json:"page"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
	Snippet  string  `json:"snippet"`

	// MatchedTerms lists, per field, the index terms that produced the hit.
	MatchedTerms map[string][]string `json:"matched_terms,omitempty"`
}
