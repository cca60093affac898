// Package persistence stores index settings and snapshots as gob files
// and provides the atomic file writes the other stores rely on.
package persistence

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	settingsFile = "settings.gob"
	snapshotFile = "snapshot.gob"
)

// Layout maps index names to files under a data directory:
// <dataDir>/<index>/settings.gob and <dataDir>/<index>/snapshot.gob.
type Layout struct {
	DataDir string
}

// IndexDir returns the directory of one index.
func (l Layout) IndexDir(indexName string) string {
	return filepath.Join(l.DataDir, indexName)
}

// SettingsPath returns the settings file of one index.
func (l Layout) SettingsPath(indexName string) string {
	return filepath.Join(l.IndexDir(indexName), settingsFile)
}

// SnapshotPath returns the snapshot file of one index.
func (l Layout) SnapshotPath(indexName string) string {
	return filepath.Join(l.IndexDir(indexName), snapshotFile)
}

// IndexNames lists the subdirectories of the data directory that hold a
// settings file. A missing data directory yields no names.
func (l Layout) IndexNames() ([]string, error) {
	entries, err := os.ReadDir(l.DataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read data directory %s: %w", l.DataDir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(l.SettingsPath(entry.Name())); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// RemoveIndex deletes the directory of one index.
func (l Layout) RemoveIndex(indexName string) error {
	if err := os.RemoveAll(l.IndexDir(indexName)); err != nil {
		return fmt.Errorf("failed to remove index directory for '%s': %w", indexName, err)
	}
	return nil
}

// SaveGob encodes object with gob and writes it atomically to filePath.
func SaveGob(filePath string, object interface{}) error {
	return WriteAtomic(filePath, func(w io.Writer) error {
		if err := gob.NewEncoder(w).Encode(object); err != nil {
			return fmt.Errorf("failed to gob encode to file %s: %w", filePath, err)
		}
		return nil
	})
}

// WriteAtomic streams write into a temporary file in the directory of
// filePath and renames it over filePath, so readers see either the old or
// the new file, never a partial one.
func WriteAtomic(filePath string, write func(w io.Writer) error) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		closeQuietly(tmp, tmpPath)
		return err
	}
	if err := w.Flush(); err != nil {
		closeQuietly(tmp, tmpPath)
		return fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	if err := tmp.Sync(); err != nil {
		closeQuietly(tmp, tmpPath)
		return fmt.Errorf("failed to sync file %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filePath, err)
	}
	committed = true
	return nil
}

// LoadGob decodes a gob file into objectPointer, which must point to the
// type that was encoded. A missing file returns os.ErrNotExist, so callers
// can treat it as a fresh start.
func LoadGob(filePath string, objectPointer interface{}) error {
	file, err := os.Open(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer closeQuietly(file, filePath)

	if err := gob.NewDecoder(bufio.NewReader(file)).Decode(objectPointer); err != nil {
		return fmt.Errorf("failed to gob decode from file %s: %w", filePath, err)
	}
	return nil
}

func closeQuietly(file *os.File, path string) {
	if err := file.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "persistence",
			"file":      path,
		}).WithError(err).Warn("Failed to close file")
	}
}
