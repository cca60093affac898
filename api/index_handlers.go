package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/docsearch/config"
)

// CreateIndexHandler handles the request to create a new index. The index
// is empty until records are uploaded.
// Request Body: config.IndexSettings
func (api *API) CreateIndexHandler(c *gin.Context) {
	var settings config.IndexSettings

	if result := ValidateJSONBinding(c, &settings); result.HasErrors() {
		SendValidationError(c, result)
		return
	}
	if result := ValidateIndexSettings(&settings); result.HasErrors() {
		SendValidationError(c, result)
		return
	}

	if err := api.engine.CreateIndex(settings); err != nil {
		sendEngineError(c, settings.Name, "create index", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Index '" + settings.Name + "' created successfully",
		"settings": settings,
	})
}

// ListIndexesHandler lists all available indexes.
func (api *API) ListIndexesHandler(c *gin.Context) {
	names := api.engine.ListIndexes()
	c.JSON(http.StatusOK, gin.H{"indexes": names, "count": len(names)})
}

// GetIndexHandler retrieves the settings and statistics of an index.
func (api *API) GetIndexHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		sendEngineError(c, indexName, "get index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settings": indexAccessor.Settings(),
		"stats":    indexAccessor.Stats(),
	})
}

// DeleteIndexHandler handles deleting an index.
func (api *API) DeleteIndexHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	if err := api.engine.DeleteIndex(indexName); err != nil {
		sendEngineError(c, indexName, "delete index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Index '" + indexName + "' deleted successfully"})
}

// IndexSettingsUpdate is a partial settings update: only fields present in
// the request change.
type IndexSettingsUpdate struct {
	TitleWeight          *float64           `json:"title_weight,omitempty"`
	TextWeight           *float64           `json:"text_weight,omitempty"`
	MinTermLength        *int               `json:"min_term_length,omitempty"`
	OperatorTokens       *[]string          `json:"operator_tokens,omitempty"`
	RemoveStopWords      *bool              `json:"remove_stop_words,omitempty"`
	Stem                 *bool              `json:"stem,omitempty"`
	SplitCamelCase       *bool              `json:"split_camel_case,omitempty"`
	PrefixThreshold      *int               `json:"prefix_threshold,omitempty"`
	MaxPrefixExpansions  *int               `json:"max_prefix_expansions,omitempty"`
	PrefixPenalty        *float64           `json:"prefix_penalty,omitempty"`
	PhraseBonus          *float64           `json:"phrase_bonus,omitempty"`
	TypoTolerance        *bool              `json:"typo_tolerance,omitempty"`
	MinWordSizeFor1Typo  *int               `json:"min_word_size_for_1_typo,omitempty"`
	MinWordSizeFor2Typos *int               `json:"min_word_size_for_2_typos,omitempty"`
	MaxTypoExpansions    *int               `json:"max_typo_expansions,omitempty"`
	CategoryBoosts       map[string]float64 `json:"category_boosts,omitempty"`
	SnippetWindow        *int               `json:"snippet_window,omitempty"`
	DefaultLimit         *int               `json:"default_limit,omitempty"`
	Shards               *int               `json:"shards,omitempty"`
}

// Apply copies the present fields onto settings and reports whether any
// field was present.
func (u IndexSettingsUpdate) Apply(settings *config.IndexSettings) bool {
	updated := false
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
			updated = true
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
			updated = true
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
			updated = true
		}
	}

	setFloat(&settings.TitleWeight, u.TitleWeight)
	setFloat(&settings.TextWeight, u.TextWeight)
	setInt(&settings.MinTermLength, u.MinTermLength)
	if u.OperatorTokens != nil {
		settings.OperatorTokens = append([]string{}, *u.OperatorTokens...)
		updated = true
	}
	setBool(&settings.RemoveStopWords, u.RemoveStopWords)
	setBool(&settings.Stem, u.Stem)
	setBool(&settings.SplitCamelCase, u.SplitCamelCase)
	setInt(&settings.PrefixThreshold, u.PrefixThreshold)
	setInt(&settings.MaxPrefixExpansions, u.MaxPrefixExpansions)
	setFloat(&settings.PrefixPenalty, u.PrefixPenalty)
	setFloat(&settings.PhraseBonus, u.PhraseBonus)
	setBool(&settings.TypoTolerance, u.TypoTolerance)
	setInt(&settings.MinWordSizeFor1Typo, u.MinWordSizeFor1Typo)
	setInt(&settings.MinWordSizeFor2Typos, u.MinWordSizeFor2Typos)
	setInt(&settings.MaxTypoExpansions, u.MaxTypoExpansions)
	if u.CategoryBoosts != nil {
		settings.CategoryBoosts = make(map[string]float64, len(u.CategoryBoosts))
		for k, v := range u.CategoryBoosts {
			settings.CategoryBoosts[k] = v
		}
		updated = true
	}
	setInt(&settings.SnippetWindow, u.SnippetWindow)
	setInt(&settings.DefaultLimit, u.DefaultLimit)
	setInt(&settings.Shards, u.Shards)
	return updated
}

// UpdateIndexSettingsHandler applies a partial settings update in a
// background job. Invalid settings are rejected before the job starts.
func (api *API) UpdateIndexSettingsHandler(c *gin.Context) {
	indexName := c.Param("indexName")

	settings, err := api.engine.GetIndexSettings(indexName)
	if err != nil {
		sendEngineError(c, indexName, "get index settings", err)
		return
	}

	var update IndexSettingsUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		SendInvalidJSONError(c, err)
		return
	}
	if !update.Apply(&settings) {
		result := &ValidationResult{Valid: true}
		result.AddError("settings", "No settings to update")
		SendValidationError(c, result)
		return
	}

	jobID, err := api.engine.UpdateSettingsAsync(indexName, settings)
	if err != nil {
		sendEngineError(c, indexName, "update settings", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":  "accepted",
		"message": "Settings update started for index '" + indexName + "'",
		"job_id":  jobID,
	})
}

// GetIndexStatsHandler returns statistics for a specific index
func (api *API) GetIndexStatsHandler(c *gin.Context) {
	indexName := c.Param("indexName")
	indexAccessor, err := api.engine.GetIndex(indexName)
	if err != nil {
		sendEngineError(c, indexName, "get index", err)
		return
	}
	c.JSON(http.StatusOK, indexAccessor.Stats())
}
