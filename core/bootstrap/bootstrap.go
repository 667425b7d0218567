// Package bootstrap brings the remote school data store into a known-good state.
//
// A run verifies connectivity, probes every table, then seeds reference and sample data.
// Each step is recorded in the migration state tracker so that repeated runs only do
// what is still missing.
package bootstrap

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/state"
)

type (
	// RemoteStore is the gateway to the remote data service.
	RemoteStore interface {
		Initialize(ctx context.Context, rawURL, key string, opts core.ConnectOptions) error
		IsInitialized() bool
		HealthCheck(ctx context.Context) core.Health
		Query(ctx context.Context, kind entity.Kind, q core.Query) ([]core.Row, error)
		Insert(ctx context.Context, kind entity.Kind, e entity.Entity) error
	}

	Validator interface {
		Validate(e entity.Entity) entity.ValidationResult
	}

	// Metrics observes runs. Implementations must be safe for concurrent use.
	Metrics interface {
		ObserveStep(step string, outcome Outcome)
		ObserveRun(report InitializationReport)
	}

	Deps struct {
		Remote  RemoteStore
		Tracker state.Tracker
		Catalog Validator
		Logger  core.Logger
		Metrics Metrics // optional
	}

	Options struct {
		RemoteURL        string
		RemoteKey        string
		Connect          core.ConnectOptions
		SchemaVersion    int
		ProbeAttempts    int
		ProbeBaseDelay   time.Duration
		ProbeConcurrency int
		InsertDelay      time.Duration // pause between grading band inserts
		Actor            string        // created_by of seeded rows
		DefaultPassword  string        // password of the seeded accounts
		Kinds            []entity.Kind // tables to probe; every kind when empty
	}
)

const (
	defaultSchemaVersion    = 3
	defaultProbeAttempts    = 3
	defaultProbeBaseDelay   = 500 * time.Millisecond
	defaultProbeConcurrency = 8
	defaultActor            = "system"

	runKey = "bootstrap"
)

var (
	// mockable
	nowFunc   = time.Now
	sleepFunc = sleepCtx
)

func OptionsFromConfig(conf *core.Config) Options {
	bc := conf.Bootstrap
	return Options{
		RemoteURL:        conf.Remote.URL,
		RemoteKey:        conf.Remote.Key,
		Connect:          conf.Remote.ConnectOptions(),
		SchemaVersion:    bc.SchemaVersion,
		ProbeAttempts:    bc.ProbeAttempts,
		ProbeBaseDelay:   bc.ProbeBaseDelay,
		ProbeConcurrency: bc.ProbeConcurrency,
		InsertDelay:      bc.InsertDelay,
		Actor:            bc.Actor,
		DefaultPassword:  bc.DefaultPassword,
	}
}

func (o *Options) setDefaults() {
	if o.SchemaVersion <= 0 {
		o.SchemaVersion = defaultSchemaVersion
	}
	if o.ProbeAttempts <= 0 {
		o.ProbeAttempts = defaultProbeAttempts
	}
	if o.ProbeBaseDelay < 0 {
		o.ProbeBaseDelay = defaultProbeBaseDelay
	}
	if o.ProbeConcurrency <= 0 {
		o.ProbeConcurrency = defaultProbeConcurrency
	}
	if o.Actor == "" {
		o.Actor = defaultActor
	}
	if len(o.Kinds) == 0 {
		o.Kinds = entity.AllKinds()
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveStep(string, Outcome)     {}
func (nopMetrics) ObserveRun(InitializationReport) {}

// Orchestrator runs the bootstrap sequence. It is safe for concurrent use.
type Orchestrator struct {
	remote  RemoteStore
	tracker state.Tracker
	catalog Validator
	log     core.Logger
	metrics Metrics
	opts    Options
	url     *url.URL

	group    singleflight.Group
	runMu    sync.Mutex // held for the whole duration of a run
	inflight atomic.Bool
	phase    atomic.Int32
	disposed atomic.Bool
	callers  atomic.Int32 // inside Run

	bgMu     sync.Mutex // orders Start's bg.Add against Close
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	err := vala.BeginValidation().Validate(
		isSet(deps.Remote, "remote"),
		isSet(deps.Tracker, "tracker"),
		isSet(deps.Catalog, "catalog"),
		isSet(deps.Logger, "logger"),
		vala.StringNotEmpty(opts.RemoteURL, "remoteURL"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "creating bootstrap orchestrator")
	}

	u, err := url.Parse(opts.RemoteURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing remote url")
	}
	if u.Scheme == "" {
		return nil, errors.Errorf("remote url %q has no scheme", opts.RemoteURL)
	}

	opts.setDefaults()
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}

	o := &Orchestrator{
		remote:  deps.Remote,
		tracker: deps.Tracker,
		catalog: deps.Catalog,
		log:     deps.Logger,
		metrics: deps.Metrics,
		opts:    opts,
		url:     u,
	}
	o.bgCtx, o.bgCancel = context.WithCancel(context.Background())
	return o, nil
}

// isSet fails for nil interfaces and nil pointers, maps, funcs or channels. Value types pass.
func isSet(v interface{}, name string) vala.Checker {
	return func() (bool, string) {
		if v == nil {
			return false, "Parameter was nil: " + name
		}
		switch rv := reflect.ValueOf(v); rv.Kind() {
		case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
			if rv.IsNil() {
				return false, "Parameter was nil: " + name
			}
		}
		return true, ""
	}
}

// recoverInto stores a panic of the current goroutine in *errp. It must be deferred directly.
func recoverInto(errp *error) {
	if p := recover(); p != nil {
		*errp = errors.Errorf("unexpected error: %v", p)
	}
}

// Phase returns where the latest run is (or stopped) in the sequence.
func (o *Orchestrator) Phase() Phase { return Phase(o.phase.Load()) }

func (o *Orchestrator) setPhase(p Phase) { o.phase.Store(int32(p)) }

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool { return o.inflight.Load() }

// Run executes the bootstrap sequence and returns its report.
// A caller arriving while a run is in flight waits for that run and receives its report;
// progress is then only reported to the caller that started the run.
// The returned error is non-nil only when the orchestrator is disposed.
func (o *Orchestrator) Run(ctx context.Context, progress ProgressFunc) (InitializationReport, error) {
	if o.disposed.Load() {
		return InitializationReport{}, core.ErrDisposed
	}
	o.callers.Add(1)
	defer o.callers.Add(-1)
	v, _, _ := o.group.Do(runKey, func() (interface{}, error) {
		o.inflight.Store(true)
		defer o.inflight.Store(false)
		return o.run(ctx, progress), nil
	})
	return v.(InitializationReport), nil
}

// Start launches a run in the background. The run outlives ctx's cancellation
// but is cancelled by Close.
func (o *Orchestrator) Start(ctx context.Context, progress ProgressFunc) error {
	o.bgMu.Lock()
	defer o.bgMu.Unlock()

	if o.disposed.Load() {
		return core.ErrDisposed
	}
	if !o.inflight.CompareAndSwap(false, true) {
		return core.ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(o.bgCtx, cancel)

	o.bg.Add(1)
	go func() {
		defer o.bg.Done()
		defer cancel()
		defer stop()
		// the claim is released by the run itself
		if _, err := o.Run(runCtx, progress); err != nil {
			o.inflight.Store(false)
			o.log.Warn("background bootstrap not run", "error", err)
		}
	}()
	return nil
}

// Close cancels background runs, waits for them, and disposes the orchestrator.
func (o *Orchestrator) Close() error {
	o.bgMu.Lock()
	swapped := o.disposed.CompareAndSwap(false, true)
	o.bgMu.Unlock()
	if !swapped {
		return nil
	}
	o.bgCancel()
	o.bg.Wait()
	return nil
}

func (o *Orchestrator) run(ctx context.Context, progress ProgressFunc) (report InitializationReport) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	r := &runner{Orchestrator: o, ctx: ctx, progress: progress, now: nowFunc().UTC()}
	o.log.Info("bootstrap started", "remote", o.url.Redacted())

	defer func() {
		if p := recover(); p != nil {
			o.log.Error("bootstrap panicked", "panic", p, "stack", string(debug.Stack()))
			report = r.fail(fmt.Errorf("unexpected error: %v", p))
		}
		o.metrics.ObserveRun(report)
		if report.Success {
			o.log.Info("bootstrap finished", "duration_ms", report.DurationMs, "warnings", len(report.Warnings))
		} else {
			o.log.Error("bootstrap failed", "error", report.ErrorMessage, "duration_ms", report.DurationMs)
		}
	}()

	o.setPhase(VerifyingConnection)
	r.emit(StepVerifyConnection, 10)
	if res := r.record(r.verifyConnection()); res.Outcome == Fatal {
		return r.fail(errors.New(res.Message))
	}

	st, err := state.Load(ctx, o.tracker)
	if err != nil {
		return r.fail(errors.Wrap(err, "loading migration state"))
	}

	o.setPhase(VerifyingTables)
	r.emit(StepVerifyTables, 20)
	if res := r.record(r.verifyTables(st.TablesVerified)); res.Outcome == Fatal {
		return r.fail(errors.New(res.Message))
	}

	o.setPhase(SeedingGrading)
	r.emit(StepSeedGrading, 40)
	r.record(r.seedGradingScale(st.GradingSeeded))

	o.setPhase(SeedingDefaultUsers)
	r.emit(StepSeedDefaultUsers, 60)
	r.record(r.seedDefaultUsers(st.DefaultUsersSeeded))

	o.setPhase(SeedingSampleData)
	r.emit(StepSeedSampleData, 80)
	r.record(r.seedSampleData(st.SampleDataSeeded))

	o.setPhase(Finalizing)
	r.record(r.finalize())
	r.emit(StepFinalize, 100)

	o.setPhase(Done)
	return r.report(true, "")
}

// runner holds the state of a single run.
type runner struct {
	*Orchestrator
	ctx      context.Context
	progress ProgressFunc
	now      time.Time

	mu       sync.Mutex
	steps    []StepResult
	warnings []string
}

func (r *runner) emit(step string, pct int) {
	if r.progress != nil {
		r.progress(ProgressEvent{StepName: step, PercentComplete: pct})
	}
}

func (r *runner) record(res StepResult) StepResult {
	r.mu.Lock()
	r.steps = append(r.steps, res)
	r.warnings = append(r.warnings, res.Warnings...)
	r.mu.Unlock()

	r.metrics.ObserveStep(res.Step, res.Outcome)
	switch res.Outcome {
	case Fatal:
		r.log.Error("bootstrap step failed", "step", res.Step, "error", res.Message)
	case Warning:
		r.log.Warn("bootstrap step degraded", "step", res.Step, "warnings", res.Warnings)
	case Skipped:
		r.log.Debug("bootstrap step skipped", "step", res.Step)
	default:
		r.log.Info("bootstrap step done", "step", res.Step, "detail", res.Detail)
	}
	return res
}

func (r *runner) fail(err error) InitializationReport {
	r.setPhase(Failed)
	return r.report(false, err.Error())
}

func (r *runner) report(success bool, errMsg string) InitializationReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := nowFunc().UTC().Sub(r.now)
	warnings := make([]string, len(r.warnings))
	copy(warnings, r.warnings)
	steps := make([]StepResult, len(r.steps))
	copy(steps, r.steps)
	return InitializationReport{
		Success:      success,
		ErrorMessage: errMsg,
		DurationMs:   d.Milliseconds(),
		Warnings:     warnings,
		Steps:        steps,
		StartedAt:    r.now,
		Duration:     d,
	}
}

// markDone persists a step flag. A failed write degrades res into a warning:
// the step's work is done and will be adopted by the next run.
func (r *runner) markDone(flag state.Flag, res StepResult) StepResult {
	if err := r.tracker.SetFlag(r.ctx, flag, true); err != nil {
		msg := fmt.Sprintf("%s: saving %s flag: %v", res.Step, flag, err)
		res.Outcome = Warning
		res.Message = msg
		res.Warnings = append(res.Warnings, msg)
	}
	return res
}

// insert validates e with the catalog before writing it.
func (r *runner) insert(e entity.Entity) error {
	if res := r.catalog.Validate(e); !res.Valid {
		return core.NewValidationError(errors.Errorf("invalid %s row: %v", e.Kind(), res.Errors))
	}
	return r.remote.Insert(r.ctx, e.Kind(), e)
}

// isEmpty reports whether the table of kind has no rows.
func (r *runner) isEmpty(kind entity.Kind) (bool, error) {
	rows, err := r.remote.Query(r.ctx, kind, core.Query{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(rows) == 0, nil
}

func (r *runner) newBase() entity.Base {
	return entity.NewBase(r.opts.Actor, r.now)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
