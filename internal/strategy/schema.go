package strategy

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SchemaVersion identifies the persisted parameter-set layout. Bump the
// major version on breaking field changes; persisted snapshots from a
// different major version are refused on load.
const SchemaVersion = "1.0.0"

// CheckSchemaCompat reports whether a persisted snapshot written at the
// given schema version can be loaded by this build.
func CheckSchemaCompat(version string) error {
	if version == "" {
		return fmt.Errorf("snapshot missing schema version")
	}

	snap, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid schema version %q: %w", version, err)
	}
	current, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid current schema version %q: %w", SchemaVersion, err)
	}

	if snap.Major() != current.Major() {
		return fmt.Errorf("incompatible schema version %s (current %s)", version, SchemaVersion)
	}
	return nil
}
