package model

import "fmt"

// Category classifies what a record documents. Documentation tables use a
// small, open set of values; unknown categories are kept verbatim.
type Category string

const (
	CategorySection  Category = "section"
	CategoryPage     Category = "page"
	CategoryMethod   Category = "method"
	CategoryType     Category = "type"
	CategoryFunction Category = "function"
	CategoryMacro    Category = "macro"
	CategoryModule   Category = "module"
	CategoryConstant Category = "constant"
)

// Record is one searchable unit of documentation. Location is the
// addressable anchor returned to callers. Records are values: once
// validated they are never mutated.
type Record struct {
	Location string   `json:"location"`
	Page     string   `json:"page"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Category Category `json:"category"`
}

// RawRecord is a loosely typed input row as decoded from a record table.
// Example: raw["location"], raw["title"]. Extra keys are ignored.
type RawRecord map[string]interface{}

// GetLocation returns the location if it is present and a non-empty string.
func (r RawRecord) GetLocation() (string, bool) {
	if loc, ok := r["location"]; ok {
		if str, sok := loc.(string); sok {
			if str != "" {
				return str, true
			}
		}
	}
	return "", false
}

// GetString returns the named field as a string. Non-string scalars are
// formatted; missing or null fields yield "".
func (r RawRecord) GetString(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
