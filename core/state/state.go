// Package state defines the durable migration flags that make every bootstrap step idempotent.
package state

import (
	"context"

	"github.com/pkg/errors"
)

// Flag names one migration step.
type Flag string

const (
	TablesVerified     Flag = "tablesVerified"
	GradingSeeded      Flag = "gradingSeeded"
	DefaultUsersSeeded Flag = "defaultUsersSeeded"
	SampleDataSeeded   Flag = "sampleDataSeeded"
)

// VersionKey is the storage key of the schema version.
const VersionKey = "schemaVersion"

func Flags() []Flag {
	return []Flag{TablesVerified, GradingSeeded, DefaultUsersSeeded, SampleDataSeeded}
}

// Tracker persists migration flags and the schema version.
// Single-key reads and writes are atomic. There are no cross-key transactions except ClearAll.
type Tracker interface {
	GetFlag(ctx context.Context, flag Flag) (bool, error)
	SetFlag(ctx context.Context, flag Flag, value bool) error
	GetVersion(ctx context.Context) (int, error)
	SetVersion(ctx context.Context, version int) error
	// ClearAll resets every flag to false and the version to 0.
	ClearAll(ctx context.Context) error
}

// MigrationState is a point-in-time snapshot of a Tracker.
type MigrationState struct {
	TablesVerified     bool `json:"tables_verified"`
	GradingSeeded      bool `json:"grading_seeded"`
	DefaultUsersSeeded bool `json:"default_users_seeded"`
	SampleDataSeeded   bool `json:"sample_data_seeded"`
	SchemaVersion      int  `json:"schema_version"`
}

// Flag returns the snapshot value of f.
func (s MigrationState) Flag(f Flag) bool {
	switch f {
	case TablesVerified:
		return s.TablesVerified
	case GradingSeeded:
		return s.GradingSeeded
	case DefaultUsersSeeded:
		return s.DefaultUsersSeeded
	case SampleDataSeeded:
		return s.SampleDataSeeded
	}
	return false
}

// Load reads every flag and the version from t.
func Load(ctx context.Context, t Tracker) (MigrationState, error) {
	var (
		st  MigrationState
		err error
	)
	dst := map[Flag]*bool{
		TablesVerified:     &st.TablesVerified,
		GradingSeeded:      &st.GradingSeeded,
		DefaultUsersSeeded: &st.DefaultUsersSeeded,
		SampleDataSeeded:   &st.SampleDataSeeded,
	}
	for _, f := range Flags() {
		if *dst[f], err = t.GetFlag(ctx, f); err != nil {
			return MigrationState{}, errors.Wrapf(err, "reading %s", f)
		}
	}
	if st.SchemaVersion, err = t.GetVersion(ctx); err != nil {
		return MigrationState{}, errors.Wrap(err, "reading schema version")
	}
	return st, nil
}
