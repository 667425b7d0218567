package bootstrap

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/state"
)

func (r *runner) verifyConnection() StepResult {
	if !r.remote.IsInitialized() {
		err := r.remote.Initialize(r.ctx, r.opts.RemoteURL, r.opts.RemoteKey, r.opts.Connect)
		if err != nil {
			var connErr *core.ConnectionError
			if !errors.As(err, &connErr) {
				err = &core.ConnectionError{Err: err}
			}
			return failed(StepVerifyConnection, err)
		}
	}

	health := r.remote.HealthCheck(r.ctx)
	if !health.Healthy {
		return failed(StepVerifyConnection, &core.ConnectionError{Message: health.Message})
	}
	return succeeded(StepVerifyConnection, health.Message)
}

// verifyTables probes every table concurrently. Each probe retries on its own,
// and a failing table never cancels the others.
func (r *runner) verifyTables(done bool) StepResult {
	if done {
		return skipped(StepVerifyTables, "tables already verified")
	}

	kinds := r.opts.Kinds
	errs := make([]error, len(kinds))

	var g errgroup.Group
	g.SetLimit(r.opts.ProbeConcurrency)
	for i, kind := range kinds {
		g.Go(func() error {
			defer recoverInto(&errs[i])
			errs[i] = r.probe(kind)
			return nil
		})
	}
	_ = g.Wait()

	var schemaErr core.SchemaVerificationError
	for i, err := range errs {
		if err == nil {
			continue
		}
		var qErr *core.QueryError
		if errors.As(err, &qErr) {
			err = qErr.Err
		}
		schemaErr.Failures = append(schemaErr.Failures, core.TableFailure{Table: kinds[i].Table(), Err: err})
	}
	if len(schemaErr.Failures) > 0 {
		return failed(StepVerifyTables, &schemaErr)
	}

	res := succeeded(StepVerifyTables, fmt.Sprintf("%d tables reachable", len(kinds)))
	return r.markDone(state.TablesVerified, res)
}

// probe reads at most one row of kind, retrying with a linearly growing delay.
func (r *runner) probe(kind entity.Kind) error {
	var err error
	for attempt := 1; attempt <= r.opts.ProbeAttempts; attempt++ {
		if _, err = r.remote.Query(r.ctx, kind, core.Query{Limit: 1}); err == nil {
			return nil
		}
		r.log.Debug("table probe failed", "table", kind, "attempt", attempt, "error", err)
		if attempt == r.opts.ProbeAttempts {
			break
		}
		if sErr := sleepFunc(r.ctx, r.opts.ProbeBaseDelay*time.Duration(attempt)); sErr != nil {
			return errors.Wrapf(err, "probe interrupted (%v)", sErr)
		}
	}
	return err
}

func (r *runner) finalize() StepResult {
	if err := r.tracker.SetVersion(r.ctx, r.opts.SchemaVersion); err != nil {
		return warned(StepFinalize, errors.Wrap(err, "saving schema version"))
	}
	return succeeded(StepFinalize, fmt.Sprintf("schema version %d", r.opts.SchemaVersion))
}
