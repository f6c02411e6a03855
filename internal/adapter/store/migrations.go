package store

import (
	"fmt"

	"intramind/internal/domain"
)

// CurrentSchemaVersion is the current on-disk index format version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

func checkSchema(m domain.Manifest) error {
	switch {
	case m.SchemaVersion == 0:
		return fmt.Errorf("manifest has no schema version")
	case m.SchemaVersion > CurrentSchemaVersion:
		return fmt.Errorf("index created by newer version (v%d > v%d)", m.SchemaVersion, CurrentSchemaVersion)
	case m.SchemaVersion < CurrentSchemaVersion:
		return fmt.Errorf("unsupported schema version v%d, rebuild the index", m.SchemaVersion)
	}
	return nil
}

// IndexSettings are the settings an index must have been built with to be
// current.
type IndexSettings struct {
	ModelID      string
	Metric       string
	ChunkSize    int
	ChunkOverlap int
}

// RebuildCheck describes whether a persisted index matches the current
// settings.
type RebuildCheck struct {
	NeedsRebuild bool
	Reasons      []string
}

// CheckRebuild compares a manifest against the current settings. A model
// change makes the index unusable; chunking or metric changes only make it
// stale.
func CheckRebuild(m domain.Manifest, s IndexSettings) RebuildCheck {
	var result RebuildCheck
	add := func(format string, args ...any) {
		result.NeedsRebuild = true
		result.Reasons = append(result.Reasons, fmt.Sprintf(format, args...))
	}

	if s.ModelID != "" && m.ModelID != s.ModelID {
		add("embedding model changed: %s -> %s", m.ModelID, s.ModelID)
	}
	if s.Metric != "" && m.Metric != s.Metric {
		add("metric changed: %s -> %s", m.Metric, s.Metric)
	}
	if s.ChunkSize != 0 && m.ChunkSize != s.ChunkSize {
		add("chunk size changed: %d -> %d", m.ChunkSize, s.ChunkSize)
	}
	if s.ChunkSize != 0 && m.ChunkOverlap != s.ChunkOverlap {
		add("chunk overlap changed: %d -> %d", m.ChunkOverlap, s.ChunkOverlap)
	}
	return result
}
