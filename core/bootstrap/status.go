package bootstrap

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/state"
)

// GetStatus reads the migration state. Sample data does not count towards completion.
func (o *Orchestrator) GetStatus(ctx context.Context) (Status, error) {
	if o.disposed.Load() {
		return Status{}, core.ErrDisposed
	}
	st, err := state.Load(ctx, o.tracker)
	if err != nil {
		return Status{}, errors.Wrap(err, "loading migration state")
	}

	status := Status{
		TablesVerified:     st.TablesVerified,
		GradingSeeded:      st.GradingSeeded,
		DefaultUsersSeeded: st.DefaultUsersSeeded,
		SampleDataSeeded:   st.SampleDataSeeded,
		SchemaVersion:      st.SchemaVersion,
		CurrentVersion:     o.opts.SchemaVersion,
		IsUpToDate:         st.SchemaVersion >= o.opts.SchemaVersion,
	}
	for _, done := range []bool{status.TablesVerified, status.GradingSeeded, status.DefaultUsersSeeded, status.IsUpToDate} {
		if done {
			status.CompletionPercentage += 25
		}
	}
	return status, nil
}

// ResetState clears every flag and the schema version so that the next run starts over.
// It waits for an in-flight run to finish. Remote rows are never deleted.
func (o *Orchestrator) ResetState(ctx context.Context, includeUserData bool) (OperationResult, error) {
	if o.disposed.Load() {
		return OperationResult{}, core.ErrDisposed
	}

	o.runMu.Lock()
	defer o.runMu.Unlock()

	if err := o.tracker.ClearAll(ctx); err != nil {
		err = errors.Wrap(err, "clearing migration state")
		o.log.Error("bootstrap reset failed", "error", err)
		return OperationResult{Message: err.Error()}, err
	}
	o.setPhase(Idle)

	msg := "migration state cleared"
	if includeUserData {
		o.log.Warn("remote data deletion requested but not supported; only the migration state was cleared")
		msg += "; deleting remote data is not supported, no rows were removed"
	}
	o.log.Info("bootstrap state reset", "include_user_data", includeUserData)
	return OperationResult{Success: true, Message: msg}, nil
}
