package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/internal/indexing"
)

// UpdateIndexSettings replaces the settings of an index. When the index is
// built, a new snapshot is swapped in: a full rebuild if the change affects
// tokenization, otherwise the existing postings are reused.
func (e *Engine) UpdateIndexSettings(ctx context.Context, name string, newSettings config.IndexSettings) error {
	instance, err := e.instance(name)
	if err != nil {
		return err
	}
	prepared, err := prepareSettings(name, newSettings)
	if err != nil {
		return err
	}
	return instance.updateSettings(ctx, prepared, nil)
}

func (i *IndexInstance) updateSettings(ctx context.Context, settings *config.IndexSettings, progress indexing.ProgressFunc) error {
	i.buildMu.Lock()
	defer i.buildMu.Unlock()

	old := i.currentSettings()
	if current := i.Snapshot(); current != nil {
		if requiresFullReindexing(old, settings) {
			i.logger.Info("Settings change affects tokenization, rebuilding index")
			if err := i.rebuildLocked(ctx, settings, progress); err != nil {
				return fmt.Errorf("failed to rebuild index '%s' with new settings: %w", i.name, err)
			}
		} else if err := i.install(current.WithSettings(settings)); err != nil {
			return err
		}
	}

	if err := i.engine.saveSettings(settings); err != nil {
		return err
	}
	i.setSettings(settings)
	i.logger.Info("Index settings updated")
	return nil
}

// prepareSettings applies defaults to a copy of settings and validates it.
// An empty name is taken to mean the index's own name.
func prepareSettings(name string, settings config.IndexSettings) (*config.IndexSettings, error) {
	if settings.Name != "" && settings.Name != name {
		return nil, errors.NewValidationError("name", fmt.Sprintf("cannot change index name from '%s' to '%s' during settings update", name, settings.Name))
	}
	prepared := settings.Clone()
	prepared.Name = name
	prepared.ApplyDefaults()
	if conflicts := prepared.Validate(); len(conflicts) > 0 {
		return nil, errors.NewValidationError("settings", strings.Join(conflicts, "; "))
	}
	return prepared, nil
}

// requiresFullReindexing reports whether the change alters the terms
// produced by the tokenizer. Weights, prefix, typo, phrase, boost and
// snippet settings only matter at query time.
func requiresFullReindexing(old, updated *config.IndexSettings) bool {
	if old.MinTermLength != updated.MinTermLength ||
		old.RemoveStopWords != updated.RemoveStopWords ||
		old.Stem != updated.Stem ||
		old.SplitCamelCase != updated.SplitCamelCase {
		return true
	}
	oldOps := slices.Clone(old.OperatorTokens)
	newOps := slices.Clone(updated.OperatorTokens)
	slices.Sort(oldOps)
	slices.Sort(newOps)
	return !slices.Equal(oldOps, newOps)
}
