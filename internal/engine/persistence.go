package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/config"
	"github.com/gcbaptista/docsearch/index"
	"github.com/gcbaptista/docsearch/internal/persistence"
)

// loadIndexesFromDisk restores every index found in the data directory.
// An index whose settings cannot be read is skipped; one whose snapshot is
// missing or unreadable is loaded as not built.
func (e *Engine) loadIndexesFromDisk() {
	e.logger.WithField("data_dir", e.layout.DataDir).Info("Loading indexes from disk")

	names, err := e.layout.IndexNames()
	if err != nil {
		e.logger.WithError(err).Warn("No indexes loaded")
		return
	}

	for _, name := range names {
		entry := e.logger.WithField("index", name)

		var settings config.IndexSettings
		if err := persistence.LoadGob(e.layout.SettingsPath(name), &settings); err != nil {
			entry.WithError(err).Warn("Failed to load settings, skipping index")
			continue
		}
		if settings.Name != name {
			entry.WithField("settings_name", settings.Name).Warn("Index name in settings does not match directory name, skipping index")
			continue
		}
		settings.ApplyDefaults()

		instance := newIndexInstance(e, &settings)
		if idx, err := e.loadSnapshot(name); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				entry.Info("No snapshot on disk, index is not built")
			} else {
				entry.WithError(err).Warn("Failed to load snapshot, index is not built")
			}
		} else if err := instance.activate(idx); err != nil {
			entry.WithError(err).Warn("Failed to activate snapshot, index is not built")
		}

		e.indexes[name] = instance
		stats := instance.Stats()
		entry.WithFields(logrus.Fields{
			"built":   stats.Built,
			"records": stats.RecordCount,
		}).Info("Index loaded")
	}
}

func (e *Engine) loadSnapshot(name string) (*index.Index, error) {
	idx := &index.Index{}
	if err := persistence.LoadGob(e.layout.SnapshotPath(name), idx); err != nil {
		return nil, err
	}
	if idx.Name != name {
		return nil, fmt.Errorf("snapshot belongs to index '%s'", idx.Name)
	}
	return idx, nil
}

func (e *Engine) saveSettings(settings *config.IndexSettings) error {
	if !e.persist {
		return nil
	}
	if err := persistence.SaveGob(e.layout.SettingsPath(settings.Name), settings); err != nil {
		return fmt.Errorf("failed to save settings for index '%s': %w", settings.Name, err)
	}
	return nil
}

func (e *Engine) saveSnapshot(idx *index.Index) error {
	if !e.persist {
		return nil
	}
	if err := persistence.SaveGob(e.layout.SnapshotPath(idx.Name), idx); err != nil {
		return fmt.Errorf("failed to save snapshot for index '%s': %w", idx.Name, err)
	}
	return nil
}
