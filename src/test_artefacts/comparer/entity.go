package comparer

import (
	"github.com/google/go-cmp/cmp"

	"archivum/src/domain/entities"
)

// IgnoreChangeTimestamps compares Change stamps by author only; the wall
// clock is not deterministic in tests.
func IgnoreChangeTimestamps() cmp.Option {
	return IgnoreFieldsFor[entities.Change]("Timestamp")
}

// IgnoreMeta compares entities by their domain fields only.
func IgnoreMeta() cmp.Option {
	return IgnoreFieldsFor[entities.Metadata]("ID", "Rev", "PID", "Created", "Modified")
}
