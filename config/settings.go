// Package config provides configuration structures for the search engine.
// It defines index settings (field weights, tokenizer rules, prefix and typo
// tolerance, snippet options) and the server configuration.
package config

import (
	"fmt"
	"strings"
)

// Default values applied by ApplyDefaults.
const (
	DefaultTitleWeight          = 10.0
	DefaultTextWeight           = 1.0
	DefaultMinTermLength        = 1
	DefaultPrefixThreshold      = 3
	DefaultPrefixPenalty        = 0.6
	DefaultPhraseBonus          = 10.0
	DefaultSnippetWindow        = 160
	DefaultLimit                = 10
	DefaultMaxTypoExpansions    = 20
	DefaultMinWordSizeFor1Typo  = 4
	DefaultMinWordSizeFor2Typos = 7
	DefaultShards               = 4
)

// DefaultOperatorTokens are the symbol runes kept as standalone terms.
// Documentation tables are full of names like "svd!" and "*", and a user
// typing them expects to find the exact entry.
var DefaultOperatorTokens = []string{"!", "*"}

// IndexSettings contains all configuration options for a search index.
//
// Title and text are always the searchable fields. Their relative weight is
// controlled by TitleWeight and TextWeight: a title match must dominate a
// body match, so TitleWeight is an order of magnitude larger by default.
type IndexSettings struct {
	Name string `json:"name"` // Unique name for the index

	TitleWeight float64 `json:"title_weight"` // Weight applied to title-field contributions (default 10)
	TextWeight  float64 `json:"text_weight"`  // Weight applied to text-field contributions (default 1)

	MinTermLength   int      `json:"min_term_length"`   // Tokens shorter than this are dropped (operator tokens exempt)
	OperatorTokens  []string `json:"operator_tokens"`   // Single runes emitted as standalone terms (e.g. "!")
	RemoveStopWords bool     `json:"remove_stop_words"` // Drop common English stop words
	Stem            bool     `json:"stem"`              // Apply English snowball stemming to every term
	SplitCamelCase  bool     `json:"split_camel_case"`  // Also emit camelCase components of identifiers

	// Prefix expansion is uncapped by default. A MaxPrefixExpansions cap
	// trades prefix containment for latency: dictionary terms past the cap
	// in lexicographic order are not expanded, so a prefix can miss records
	// its full term finds.
	PrefixThreshold     int     `json:"prefix_threshold"`      // Minimum query-term length that enables prefix expansion (default 3)
	MaxPrefixExpansions int     `json:"max_prefix_expansions"` // Cap on dictionary terms expanded per query term (0 means no cap)
	PrefixPenalty       float64 `json:"prefix_penalty"`        // Score factor for prefix (non-exact) matches
	PhraseBonus         float64 `json:"phrase_bonus"`          // Added (times field weight) when the query occurs contiguously

	TypoTolerance        bool `json:"typo_tolerance"`            // Enable typo matching for query terms with no exact/prefix hit
	MinWordSizeFor1Typo  int  `json:"min_word_size_for_1_typo"`  // Minimum word length to allow 1 typo (e.g., 4)
	MinWordSizeFor2Typos int  `json:"min_word_size_for_2_typos"` // Minimum word length to allow 2 typos (e.g., 7)
	MaxTypoExpansions    int  `json:"max_typo_expansions"`       // Cap on dictionary terms matched as typos per query term

	// CategoryBoosts multiplies the final score of records in a category.
	// Empty means every category ranks equally.
	CategoryBoosts map[string]float64 `json:"category_boosts,omitempty"`

	SnippetWindow int `json:"snippet_window"` // Maximum snippet length in characters (default 160)
	DefaultLimit  int `json:"default_limit"`  // Limit used by outer surfaces when a request omits one
	Shards        int `json:"shards"`         // Parallel build shards
}

// NewDefaultSettings returns settings for the named index with all defaults applied.
func NewDefaultSettings(name string) *IndexSettings {
	s := &IndexSettings{Name: name, TypoTolerance: true}
	s.ApplyDefaults()
	return s
}

// Validate checks the settings for invalid values and returns the list of problems found.
func (settings *IndexSettings) Validate() []string {
	var conflicts []string

	if strings.TrimSpace(settings.Name) == "" {
		conflicts = append(conflicts, "Index name cannot be empty or whitespace-only")
	}
	if settings.TitleWeight < 0 {
		conflicts = append(conflicts, "title_weight must not be negative")
	}
	if settings.TextWeight < 0 {
		conflicts = append(conflicts, "text_weight must not be negative")
	}
	if settings.MinTermLength < 0 {
		conflicts = append(conflicts, "min_term_length must not be negative")
	}
	if settings.MaxPrefixExpansions < 0 {
		conflicts = append(conflicts, "max_prefix_expansions must not be negative")
	}
	if settings.PrefixThreshold < 0 {
		conflicts = append(conflicts, "prefix_threshold must not be negative")
	}
	if settings.PhraseBonus < 0 {
		conflicts = append(conflicts, "phrase_bonus must not be negative")
	}
	if settings.PrefixPenalty < 0 || settings.PrefixPenalty > 1 {
		conflicts = append(conflicts, "prefix_penalty must be between 0 and 1")
	}
	for _, op := range settings.OperatorTokens {
		if len([]rune(op)) != 1 {
			conflicts = append(conflicts, fmt.Sprintf("Operator token '%s' must be a single character", op))
		}
	}
	conflicts = append(conflicts, checkDuplicates("operator_tokens", settings.OperatorTokens)...)
	for category, boost := range settings.CategoryBoosts {
		if boost < 0 {
			conflicts = append(conflicts, fmt.Sprintf("Boost for category '%s' must not be negative", category))
		}
	}

	return conflicts
}

// checkDuplicates checks for duplicate values in a slice and returns error messages
func checkDuplicates(fieldName string, values []string) []string {
	var errors []string
	seen := make(map[string]bool)

	for _, v := range values {
		if seen[v] {
			errors = append(errors, "Duplicate value '"+v+"' found in "+fieldName)
		}
		seen[v] = true
	}

	return errors
}

// ApplyDefaults applies default values to the index settings.
// Zero values are treated as "not set".
func (settings *IndexSettings) ApplyDefaults() {
	if settings.TitleWeight == 0 {
		settings.TitleWeight = DefaultTitleWeight
	}
	if settings.TextWeight == 0 {
		settings.TextWeight = DefaultTextWeight
	}
	if settings.MinTermLength == 0 {
		settings.MinTermLength = DefaultMinTermLength
	}
	if settings.OperatorTokens == nil {
		settings.OperatorTokens = append([]string(nil), DefaultOperatorTokens...)
	}
	if settings.PrefixThreshold == 0 {
		settings.PrefixThreshold = DefaultPrefixThreshold
	}
	if settings.PrefixPenalty == 0 {
		settings.PrefixPenalty = DefaultPrefixPenalty
	}
	if settings.PhraseBonus == 0 {
		settings.PhraseBonus = DefaultPhraseBonus
	}

	// Set default typo tolerance settings if not specified
	if settings.MinWordSizeFor1Typo == 0 {
		settings.MinWordSizeFor1Typo = DefaultMinWordSizeFor1Typo
	}
	if settings.MinWordSizeFor2Typos == 0 {
		settings.MinWordSizeFor2Typos = DefaultMinWordSizeFor2Typos
	}
	// Ensure MinWordSizeFor2Typos is at least as large as MinWordSizeFor1Typo
	if settings.MinWordSizeFor2Typos < settings.MinWordSizeFor1Typo {
		settings.MinWordSizeFor2Typos = settings.MinWordSizeFor1Typo + 1
	}
	if settings.MaxTypoExpansions == 0 {
		settings.MaxTypoExpansions = DefaultMaxTypoExpansions
	}

	if settings.SnippetWindow == 0 {
		settings.SnippetWindow = DefaultSnippetWindow
	}
	if settings.DefaultLimit == 0 {
		settings.DefaultLimit = DefaultLimit
	}
	if settings.Shards == 0 {
		settings.Shards = DefaultShards
	}
	if settings.CategoryBoosts == nil {
		settings.CategoryBoosts = map[string]float64{}
	}
}

// CategoryBoost returns the multiplier for a category (1 when unset).
func (settings *IndexSettings) CategoryBoost(category string) float64 {
	if boost, ok := settings.CategoryBoosts[category]; ok {
		return boost
	}
	return 1
}

// Clone returns a deep copy so snapshots never share mutable slices or maps.
func (settings *IndexSettings) Clone() *IndexSettings {
	c := *settings
	c.OperatorTokens = append([]string(nil), settings.OperatorTokens...)
	c.CategoryBoosts = make(map[string]float64, len(settings.CategoryBoosts))
	for k, v := range settings.CategoryBoosts {
		c.CategoryBoosts[k] = v
	}
	return &c
}
