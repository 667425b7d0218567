package bootstrap

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/core/state"
	"github.com/trezcool/masomodb/core/user"
	logsvc "github.com/trezcool/masomodb/services/logger"
	"github.com/trezcool/masomodb/storage/remote/memstore"
	"github.com/trezcool/masomodb/storage/state/inmem"
)

const testPassword = "Karibu#Shule2024"

var testCatalog = entity.NewCatalog()

func init() {
	user.HashCost = bcrypt.MinCost
}

// stubRemote is a RemoteStore over a memstore with call counters and failure injection.
type stubRemote struct {
	store *memstore.Store

	mu          sync.Mutex
	initialized bool
	initCalls   int
	initErr     error
	health      core.Health
	healthHook  func()
	queryFails  map[entity.Kind]int // remaining failures per kind, < 0 fails forever
	insertErrs  map[entity.Kind]error
	queryPanic  entity.Kind
	insertPanic entity.Kind
	queries     int
	inserts     int
	healthCalls int
}

func newStubRemote() *stubRemote {
	return &stubRemote{
		store:      memstore.New(),
		health:     core.Health{Healthy: true, Message: "ok"},
		queryFails: make(map[entity.Kind]int),
		insertErrs: make(map[entity.Kind]error),
	}
}

func (s *stubRemote) Initialize(context.Context, string, string, core.ConnectOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initCalls++
	if s.initErr != nil {
		return s.initErr
	}
	s.initialized = true
	return nil
}

func (s *stubRemote) IsInitialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *stubRemote) HealthCheck(context.Context) core.Health {
	s.mu.Lock()
	s.healthCalls++
	hook, health := s.healthHook, s.health
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return health
}

func (s *stubRemote) Query(ctx context.Context, kind entity.Kind, q core.Query) ([]core.Row, error) {
	s.mu.Lock()
	s.queries++
	if kind == s.queryPanic {
		s.mu.Unlock()
		panic("query " + kind.Table())
	}
	if n := s.queryFails[kind]; n != 0 {
		if n > 0 {
			s.queryFails[kind] = n - 1
		}
		s.mu.Unlock()
		return nil, &core.QueryError{Table: kind.Table(), Err: errors.New("connection reset")}
	}
	s.mu.Unlock()
	return s.store.Query(ctx, kind.Table(), q)
}

func (s *stubRemote) Insert(ctx context.Context, kind entity.Kind, e entity.Entity) error {
	s.mu.Lock()
	s.inserts++
	err := s.insertErrs[kind]
	panics := kind == s.insertPanic
	s.mu.Unlock()
	if panics {
		panic("insert " + kind.Table())
	}
	if err != nil {
		return &core.WriteError{Table: kind.Table(), Err: err}
	}
	return s.store.Insert(ctx, kind.Table(), e)
}

func (s *stubRemote) calls() (queries, inserts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries, s.inserts
}

func (s *stubRemote) count(kind entity.Kind) int { return s.store.Count(kind.Table()) }

func (s *stubRemote) set(fn func(s *stubRemote)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// flakyTracker fails every write of one flag.
type flakyTracker struct {
	*inmem.Tracker
	failFlag state.Flag
}

func (t flakyTracker) SetFlag(ctx context.Context, flag state.Flag, value bool) error {
	if flag == t.failFlag {
		return errors.New("disk full")
	}
	return t.Tracker.SetFlag(ctx, flag, value)
}

// valueTracker is a Tracker implemented by a plain struct value.
type valueTracker struct {
	*inmem.Tracker
}

type recordingMetrics struct {
	mu    sync.Mutex
	steps map[string]Outcome
	runs  []InitializationReport
}

func (m *recordingMetrics) ObserveStep(step string, outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.steps == nil {
		m.steps = make(map[string]Outcome)
	}
	m.steps[step] = outcome
}

func (m *recordingMetrics) ObserveRun(report InitializationReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, report)
}

func stubSleep(t *testing.T) func() []time.Duration {
	t.Helper()
	var (
		mu     sync.Mutex
		delays []time.Duration
	)
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = orig })
	return func() []time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return append([]time.Duration(nil), delays...)
	}
}

func newTestOrchestrator(t *testing.T, remote RemoteStore, tracker state.Tracker, metrics ...Metrics) *Orchestrator {
	t.Helper()
	deps := Deps{Remote: remote, Tracker: tracker, Catalog: testCatalog, Logger: logsvc.NewNop()}
	if len(metrics) > 0 {
		deps.Metrics = metrics[0]
	}
	o, err := New(deps, Options{
		RemoteURL:       "memory://",
		ProbeBaseDelay:  10 * time.Millisecond,
		DefaultPassword: testPassword,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func loadState(t *testing.T, tracker state.Tracker) state.MigrationState {
	t.Helper()
	st, err := state.Load(context.Background(), tracker)
	require.NoError(t, err)
	return st
}

func TestNew(t *testing.T) {
	deps := Deps{Remote: newStubRemote(), Tracker: inmem.NewTracker(), Catalog: testCatalog, Logger: logsvc.NewNop()}

	tests := []struct {
		name    string
		deps    func(d Deps) Deps
		url     string
		wantErr bool
	}{
		{name: "Valid", deps: func(d Deps) Deps { return d }, url: "memory://"},
		{name: "No remote", deps: func(d Deps) Deps { d.Remote = nil; return d }, url: "memory://", wantErr: true},
		{name: "No tracker", deps: func(d Deps) Deps { d.Tracker = nil; return d }, url: "memory://", wantErr: true},
		{name: "No logger", deps: func(d Deps) Deps { d.Logger = nil; return d }, url: "memory://", wantErr: true},
		{name: "Nil tracker pointer", deps: func(d Deps) Deps { d.Tracker = (*inmem.Tracker)(nil); return d }, url: "memory://", wantErr: true},
		{name: "Value tracker", deps: func(d Deps) Deps { d.Tracker = valueTracker{inmem.NewTracker()}; return d }, url: "memory://"},
		{name: "No url", deps: func(d Deps) Deps { return d }, url: "", wantErr: true},
		{name: "No scheme", deps: func(d Deps) Deps { return d }, url: "db.local/masomo", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, err := New(tc.deps(deps), Options{RemoteURL: tc.url})
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, defaultProbeAttempts, o.opts.ProbeAttempts)
			assert.Equal(t, defaultSchemaVersion, o.opts.SchemaVersion)
			assert.Len(t, o.opts.Kinds, len(entity.AllKinds()))
			assert.Equal(t, Idle, o.Phase())
		})
	}
}

func TestOptionsFromConfig(t *testing.T) {
	conf := &core.Config{
		Remote: core.RemoteConfig{URL: "postgres://db.local/masomo", Key: "s3cret", Timeout: time.Second, CacheTTL: time.Minute},
		Bootstrap: core.BootstrapConfig{
			SchemaVersion: 4, ProbeAttempts: 5, ProbeConcurrency: 2,
			Actor: "ops", DefaultPassword: testPassword,
		},
	}
	opts := OptionsFromConfig(conf)
	assert.Equal(t, "postgres://db.local/masomo", opts.RemoteURL)
	assert.Equal(t, "s3cret", opts.RemoteKey)
	assert.Equal(t, time.Second, opts.Connect.Timeout)
	assert.Equal(t, time.Minute, opts.Connect.HealthTTL)
	assert.Equal(t, 4, opts.SchemaVersion)
	assert.Equal(t, 5, opts.ProbeAttempts)
	assert.Equal(t, 2, opts.ProbeConcurrency)
	assert.Equal(t, "ops", opts.Actor)
}

func TestRun_FreshStore(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	remote := newStubRemote()
	tracker := inmem.NewTracker()
	metrics := new(recordingMetrics)
	o := newTestOrchestrator(t, remote, tracker, metrics)

	var events []ProgressEvent
	report, err := o.Run(ctx, func(ev ProgressEvent) { events = append(events, ev) })
	require.NoError(t, err)

	assert.True(t, report.Success, report.ErrorMessage)
	assert.Empty(t, report.Warnings)
	assert.Empty(t, report.ErrorMessage)
	assert.Equal(t, Done, o.Phase())
	require.Len(t, report.Steps, 6)
	for _, step := range report.Steps {
		assert.Equal(t, Success, step.Outcome, step.Step)
	}

	pcts := make([]int, 0, len(events))
	for _, ev := range events {
		pcts = append(pcts, ev.PercentComplete)
	}
	assert.Equal(t, []int{10, 20, 40, 60, 80, 100}, pcts)

	assert.Equal(t, state.MigrationState{
		TablesVerified:     true,
		GradingSeeded:      true,
		DefaultUsersSeeded: true,
		SampleDataSeeded:   true,
		SchemaVersion:      defaultSchemaVersion,
	}, loadState(t, tracker))

	counts := map[entity.Kind]int{
		entity.KindGradingBand:  12,
		entity.KindUser:         5,
		entity.KindStaff:        3,
		entity.KindTeacher:      1,
		entity.KindStudent:      1,
		entity.KindLibraryBook:  5,
		entity.KindActivity:     3,
		entity.KindFees:         3,
		entity.KindAnnouncement: 3,
	}
	for kind, want := range counts {
		assert.Equal(t, want, remote.count(kind), kind)
	}

	// profiles are linked to their accounts
	users, err := remote.store.Query(ctx, entity.KindUser.Table(), core.Query{Filters: []core.Filter{{Field: "username", Value: "student"}}})
	require.NoError(t, err)
	require.Len(t, users, 1)
	students, err := remote.store.Query(ctx, entity.KindStudent.Table(), core.Query{})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, users[0].String("id"), students[0].String("user_id"))

	fees, err := remote.store.Query(ctx, entity.KindFees.Table(), core.Query{})
	require.NoError(t, err)
	for _, f := range fees {
		assert.Equal(t, students[0].String("id"), f.String("student_id"))
	}

	assert.Len(t, metrics.runs, 1)
	assert.Len(t, metrics.steps, 6)
}

func TestRun_Idempotent(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	remote := newStubRemote()
	o := newTestOrchestrator(t, remote, inmem.NewTracker())

	first, err := o.Run(ctx, nil)
	require.NoError(t, err)
	require.True(t, first.Success)
	queries, inserts := remote.calls()

	second, err := o.Run(ctx, nil)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Empty(t, second.Warnings)
	for _, step := range second.Steps[1:5] {
		assert.Equal(t, Skipped, step.Outcome, step.Step)
	}

	q, i := remote.calls()
	assert.Equal(t, queries, q, "no table was read on the second run")
	assert.Equal(t, inserts, i, "no row was written on the second run")
	assert.Equal(t, 12, remote.count(entity.KindGradingBand))
}

func TestRun_AdoptsExistingRows(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	remote := newStubRemote()
	tracker := inmem.NewTracker()

	band := entity.DefaultGradingScale()[0]
	band.Base = entity.NewBase("legacy", time.Now())
	require.NoError(t, remote.store.Insert(ctx, entity.KindGradingBand.Table(), &band))

	acc := user.NewAccount{Name: "Legacy Admin", Username: "legacy", Email: "legacy@school.ac.ke", Password: testPassword, Roles: []string{entity.RoleAdminOwner}}
	usr, err := acc.Build(entity.NewBase("legacy", time.Now()))
	require.NoError(t, err)
	require.NoError(t, remote.store.Insert(ctx, entity.KindUser.Table(), &usr))

	book := entity.LibraryBook{Base: entity.NewBase("legacy", time.Now()), Title: "Kigogo", Author: "Pauline Kea", Category: "Literature", TotalCopies: 3, AvailableCopies: 3}
	require.NoError(t, remote.store.Insert(ctx, entity.KindLibraryBook.Table(), &book))

	o := newTestOrchestrator(t, remote, tracker)
	report, err := o.Run(ctx, nil)
	require.NoError(t, err)
	require.True(t, report.Success)

	assert.Equal(t, 1, remote.count(entity.KindGradingBand))
	assert.Equal(t, 1, remote.count(entity.KindUser))
	assert.Equal(t, 0, remote.count(entity.KindStaff))
	assert.Equal(t, 1, remote.count(entity.KindLibraryBook))
	assert.Equal(t, 3, remote.count(entity.KindActivity))

	st := loadState(t, tracker)
	assert.True(t, st.GradingSeeded)
	assert.True(t, st.DefaultUsersSeeded)
	assert.True(t, st.SampleDataSeeded)

	// no student to bill
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "seedSampleData/fees")
	assert.Equal(t, 0, remote.count(entity.KindFees))
}

func TestRun_ConnectionFailure(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(s *stubRemote)
		wantMsg string
	}{
		{
			name:    "Unhealthy",
			setup:   func(s *stubRemote) { s.health = core.Health{Message: "service unavailable (503)"} },
			wantMsg: "service unavailable (503)",
		},
		{
			name:    "Initialize error",
			setup:   func(s *stubRemote) { s.initErr = errors.New("dial tcp: connection refused") },
			wantMsg: "dial tcp: connection refused",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			remote := newStubRemote()
			remote.set(tc.setup)
			tracker := inmem.NewTracker()
			o := newTestOrchestrator(t, remote, tracker)

			report, err := o.Run(context.Background(), nil)
			require.NoError(t, err)

			assert.False(t, report.Success)
			assert.Equal(t, tc.wantMsg, report.ErrorMessage)
			assert.Equal(t, Failed, o.Phase())
			require.Len(t, report.Steps, 1)
			assert.Equal(t, Fatal, report.Steps[0].Outcome)

			queries, inserts := remote.calls()
			assert.Zero(t, queries)
			assert.Zero(t, inserts)
			assert.Equal(t, state.MigrationState{}, loadState(t, tracker))
		})
	}
}

func TestRun_TableProbeRetries(t *testing.T) {
	tests := []struct {
		name        string
		failures    int
		wantSuccess bool
		wantDelays  []time.Duration
	}{
		{name: "Recovers on the third attempt", failures: 2, wantSuccess: true, wantDelays: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}},
		{name: "Gives up after three attempts", failures: 3, wantSuccess: false, wantDelays: []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			delays := stubSleep(t)
			remote := newStubRemote()
			remote.set(func(s *stubRemote) { s.queryFails[entity.KindExam] = tc.failures })
			tracker := inmem.NewTracker()
			o := newTestOrchestrator(t, remote, tracker)

			report, err := o.Run(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, tc.wantSuccess, report.Success)
			assert.Equal(t, tc.wantDelays, delays())
			assert.Equal(t, tc.wantSuccess, loadState(t, tracker).TablesVerified)
			if !tc.wantSuccess {
				assert.Contains(t, report.ErrorMessage, "exams: connection reset")
				assert.Equal(t, Failed, o.Phase())
				_, inserts := remote.calls()
				assert.Zero(t, inserts)
			}
		})
	}
}

func TestRun_EveryFailingTableIsReported(t *testing.T) {
	stubSleep(t)
	remote := newStubRemote()
	remote.store.DropTable(entity.KindAttendance.Table())
	remote.store.DropTable(entity.KindAuditLogEntry.Table())
	o := newTestOrchestrator(t, remote, inmem.NewTracker())

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, report.Success)
	assert.Contains(t, report.ErrorMessage, "2 table(s)")
	assert.Contains(t, report.ErrorMessage, `attendance: relation "attendance" does not exist`)
	assert.Contains(t, report.ErrorMessage, `audit_logs: relation "audit_logs" does not exist`)
}

func TestRun_SeedingFailuresAreWarnings(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	remote := newStubRemote()
	remote.set(func(s *stubRemote) { s.insertErrs[entity.KindGradingBand] = errors.New("permission denied") })
	tracker := inmem.NewTracker()
	o := newTestOrchestrator(t, remote, tracker)

	report, err := o.Run(ctx, nil)
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, Done, o.Phase())
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "seedGradingScale")
	assert.Contains(t, report.Warnings[0], "permission denied")

	st := loadState(t, tracker)
	assert.False(t, st.GradingSeeded)
	assert.True(t, st.DefaultUsersSeeded)
	assert.True(t, st.SampleDataSeeded)
	assert.Equal(t, defaultSchemaVersion, st.SchemaVersion)

	// the next run retries only the failed step
	remote.set(func(s *stubRemote) { delete(s.insertErrs, entity.KindGradingBand) })
	report, err = o.Run(ctx, nil)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Empty(t, report.Warnings)
	assert.True(t, loadState(t, tracker).GradingSeeded)
	assert.Equal(t, 12, remote.count(entity.KindGradingBand))
	assert.Equal(t, 5, remote.count(entity.KindUser))
}

func TestRun_SampleSeedersAreIsolated(t *testing.T) {
	stubSleep(t)
	remote := newStubRemote()
	remote.set(func(s *stubRemote) { s.insertErrs[entity.KindAnnouncement] = errors.New("quota exceeded") })
	tracker := inmem.NewTracker()
	o := newTestOrchestrator(t, remote, tracker)

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, report.Success)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "seedSampleData/announcements")
	assert.Equal(t, 5, remote.count(entity.KindLibraryBook))
	assert.Equal(t, 3, remote.count(entity.KindActivity))
	assert.Equal(t, 3, remote.count(entity.KindFees))
	assert.True(t, loadState(t, tracker).SampleDataSeeded)
	assert.Equal(t, Warning, report.Steps[4].Outcome)
}

func TestRun_FlagWriteFailureIsWarning(t *testing.T) {
	stubSleep(t)
	remote := newStubRemote()
	tracker := flakyTracker{Tracker: inmem.NewTracker(), failFlag: state.DefaultUsersSeeded}
	o := newTestOrchestrator(t, remote, tracker)

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, report.Success)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "disk full")
	assert.False(t, loadState(t, tracker).DefaultUsersSeeded)

	// the next run adopts the accounts instead of duplicating them
	_, err = o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, remote.count(entity.KindUser))
}

func TestRun_PanicBecomesFatal(t *testing.T) {
	remote := newStubRemote()
	remote.set(func(s *stubRemote) { s.healthHook = func() { panic("boom") } })
	o := newTestOrchestrator(t, remote, inmem.NewTracker())

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Equal(t, "unexpected error: boom", report.ErrorMessage)
	assert.Equal(t, Failed, o.Phase())
	assert.False(t, o.Running())
}

func TestRun_PanicInTableProbeFailsRun(t *testing.T) {
	stubSleep(t)
	remote := newStubRemote()
	remote.set(func(s *stubRemote) { s.queryPanic = entity.KindLibraryBook })
	o := newTestOrchestrator(t, remote, inmem.NewTracker())

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, report.Success)
	assert.Contains(t, report.ErrorMessage, "1 table(s)")
	assert.Contains(t, report.ErrorMessage, "library_books: unexpected error: query library_books")
	assert.Equal(t, Failed, o.Phase())
	assert.False(t, o.Running())
}

func TestRun_PanicInSampleSeederIsWarning(t *testing.T) {
	stubSleep(t)
	remote := newStubRemote()
	remote.set(func(s *stubRemote) { s.insertPanic = entity.KindLibraryBook })
	tracker := inmem.NewTracker()
	o := newTestOrchestrator(t, remote, tracker)

	report, err := o.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, report.Success)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "seedSampleData/libraryBooks")
	assert.Contains(t, report.Warnings[0], "unexpected error: insert library_books")
	assert.Equal(t, 3, remote.count(entity.KindActivity))
	assert.Equal(t, 3, remote.count(entity.KindAnnouncement))
	assert.True(t, loadState(t, tracker).SampleDataSeeded)
}

// blockHealth makes the next health checks wait for release; entered is closed by the first one.
func blockHealth(remote *stubRemote) (entered <-chan struct{}, release func()) {
	in, out := make(chan struct{}), make(chan struct{})
	var once sync.Once
	remote.set(func(s *stubRemote) {
		s.healthHook = func() {
			once.Do(func() { close(in) })
			<-out
		}
	})
	return in, func() { close(out) }
}

func TestRun_ConcurrentCallersShareOneRun(t *testing.T) {
	stubSleep(t)
	remote := newStubRemote()
	entered, release := blockHealth(remote)
	o := newTestOrchestrator(t, remote, inmem.NewTracker())

	const callers = 5
	reports := make([]InitializationReport, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := o.Run(context.Background(), nil)
			assert.NoError(t, err)
			reports[i] = rep
		}()
	}

	<-entered
	assert.True(t, o.Running())
	assert.Equal(t, VerifyingConnection, o.Phase())
	// every caller must join the blocked run before it is released
	require.Eventually(t, func() bool { return o.callers.Load() == callers }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	for _, rep := range reports {
		assert.True(t, rep.Success)
		assert.Equal(t, reports[0].StartedAt, rep.StartedAt)
	}
	remote.mu.Lock()
	assert.Equal(t, 1, remote.initCalls)
	assert.Equal(t, 1, remote.healthCalls)
	remote.mu.Unlock()
	assert.Equal(t, 12, remote.count(entity.KindGradingBand))
	assert.Equal(t, 5, remote.count(entity.KindUser))
	assert.Equal(t, 3, remote.count(entity.KindFees))
}

func TestStart(t *testing.T) {
	stubSleep(t)
	ctx, cancel := context.WithCancel(context.Background())
	remote := newStubRemote()
	entered, release := blockHealth(remote)
	o := newTestOrchestrator(t, remote, inmem.NewTracker())

	require.NoError(t, o.Start(ctx, nil))
	<-entered
	assert.ErrorIs(t, o.Start(ctx, nil), core.ErrAlreadyRunning)

	// the background run outlives its caller's context
	cancel()
	release()
	assert.Eventually(t, func() bool { return o.Phase() == Done && !o.Running() }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 12, remote.count(entity.KindGradingBand))
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		state    state.MigrationState
		wantPct  int
		upToDate bool
	}{
		{name: "Fresh", wantPct: 0},
		{name: "Tables only", state: state.MigrationState{TablesVerified: true}, wantPct: 25},
		{name: "Sample data does not count", state: state.MigrationState{TablesVerified: true, SampleDataSeeded: true}, wantPct: 25},
		{name: "Outdated version", state: state.MigrationState{TablesVerified: true, GradingSeeded: true, DefaultUsersSeeded: true, SchemaVersion: 2}, wantPct: 75},
		{
			name:     "Complete",
			state:    state.MigrationState{TablesVerified: true, GradingSeeded: true, DefaultUsersSeeded: true, SchemaVersion: 3},
			wantPct:  100,
			upToDate: true,
		},
		{name: "Newer version", state: state.MigrationState{SchemaVersion: 4}, wantPct: 25, upToDate: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracker := inmem.NewTracker()
			for _, f := range state.Flags() {
				require.NoError(t, tracker.SetFlag(ctx, f, tc.state.Flag(f)))
			}
			require.NoError(t, tracker.SetVersion(ctx, tc.state.SchemaVersion))
			o := newTestOrchestrator(t, newStubRemote(), tracker)

			status, err := o.GetStatus(ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPct, status.CompletionPercentage)
			assert.Equal(t, tc.upToDate, status.IsUpToDate)
			assert.Equal(t, tc.state.SampleDataSeeded, status.SampleDataSeeded)
			assert.Equal(t, defaultSchemaVersion, status.CurrentVersion)
		})
	}
}

func TestResetState(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	remote := newStubRemote()
	tracker := inmem.NewTracker()
	o := newTestOrchestrator(t, remote, tracker)

	_, err := o.Run(ctx, nil)
	require.NoError(t, err)

	res, err := o.ResetState(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "migration state cleared", res.Message)
	assert.Equal(t, state.MigrationState{}, loadState(t, tracker))
	assert.Equal(t, Idle, o.Phase())

	res, err = o.ResetState(ctx, true)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Message, "not supported")
	assert.Equal(t, 5, remote.count(entity.KindUser), "remote rows are kept")

	// a run after a reset adopts the existing rows
	report, err := o.Run(ctx, nil)
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, 12, remote.count(entity.KindGradingBand))
	assert.Equal(t, 5, remote.count(entity.KindLibraryBook))
}

func TestResetState_WaitsForRun(t *testing.T) {
	stubSleep(t)
	ctx := context.Background()
	remote := newStubRemote()
	entered, release := blockHealth(remote)
	tracker := inmem.NewTracker()
	o := newTestOrchestrator(t, remote, tracker)

	require.NoError(t, o.Start(ctx, nil))
	<-entered

	done := make(chan OperationResult)
	go func() {
		res, err := o.ResetState(ctx, false)
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case <-done:
		t.Fatal("ResetState returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	res := <-done
	assert.True(t, res.Success)
	assert.Equal(t, state.MigrationState{}, loadState(t, tracker))
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(t, newStubRemote(), inmem.NewTracker())
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())

	_, err := o.Run(ctx, nil)
	assert.ErrorIs(t, err, core.ErrDisposed)
	assert.ErrorIs(t, o.Start(ctx, nil), core.ErrDisposed)
	_, err = o.GetStatus(ctx)
	assert.ErrorIs(t, err, core.ErrDisposed)
	_, err = o.ResetState(ctx, false)
	assert.ErrorIs(t, err, core.ErrDisposed)
}

func TestStart_ConcurrentClose(t *testing.T) {
	stubSleep(t)
	for i := 0; i < 50; i++ {
		o := newTestOrchestrator(t, newStubRemote(), inmem.NewTracker())

		started := make(chan error, 1)
		go func() { started <- o.Start(context.Background(), nil) }()
		require.NoError(t, o.Close())

		err := <-started
		if err != nil {
			assert.ErrorIs(t, err, core.ErrDisposed)
		}
		// a run accepted by Start has finished once Close returns
		assert.False(t, o.Running(), "iteration %d", i)
	}
}

func TestNewReportMessage(t *testing.T) {
	to := []mail.Address{{Name: "Ops", Address: "ops@school.ac.ke"}}
	report := InitializationReport{
		Success:    true,
		DurationMs: 1200,
		Warnings:   []string{"seedGradingScale: permission denied"},
		Steps: []StepResult{
			succeeded(StepVerifyConnection, "ok"),
			warned(StepSeedGrading, errors.New("seedGradingScale: permission denied")),
		},
	}

	msg := NewReportMessage(to, report)
	require.NoError(t, msg.Render())
	assert.Equal(t, "Bootstrap succeeded with warnings", msg.Subject)
	assert.True(t, msg.HasRecipients())
	assert.Contains(t, msg.TextContent, "Bootstrap succeeded in 1200ms.")
	assert.Contains(t, msg.TextContent, "  - seedGradingScale: warning (seedGradingScale: permission denied)")
	assert.True(t, strings.Contains(msg.HTMLContent, "<li>verifyConnection: success</li>"))

	report.Success = false
	report.ErrorMessage = "service unavailable"
	msg = NewReportMessage(to, report)
	require.NoError(t, msg.Render())
	assert.Equal(t, "Bootstrap failed", msg.Subject)
	assert.Contains(t, msg.TextContent, "Error: service unavailable")
}
