package remote

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	logsvc "github.com/trezcool/masomodb/services/logger"
	"github.com/trezcool/masomodb/storage/cache"
	"github.com/trezcool/masomodb/storage/remote/memstore"
)

// countingBackend wraps a memstore and counts calls.
type countingBackend struct {
	*memstore.Store
	pings   int32
	queries int32
	pingErr error
}

func (b *countingBackend) Ping(ctx context.Context) error {
	atomic.AddInt32(&b.pings, 1)
	if b.pingErr != nil {
		return b.pingErr
	}
	return b.Store.Ping(ctx)
}

func (b *countingBackend) Query(ctx context.Context, table string, q core.Query) ([]core.Row, error) {
	atomic.AddInt32(&b.queries, 1)
	return b.Store.Query(ctx, table, q)
}

func newTestGateway(t *testing.T) (*Gateway, *countingBackend, *int32) {
	t.Helper()
	backend := &countingBackend{Store: memstore.New()}
	var dials int32
	g := NewGateway(cache.NewMemory(64, time.Minute), logsvc.NewNop())
	g.RegisterDialer("test", func(context.Context, *url.URL, string, core.ConnectOptions) (Backend, error) {
		atomic.AddInt32(&dials, 1)
		return backend, nil
	})
	return g, backend, &dials
}

func testBook() *entity.LibraryBook {
	return &entity.LibraryBook{
		Base:            entity.NewBase("system", time.Now()),
		Title:           "Weep Not, Child",
		Author:          "Ngugi wa Thiong'o",
		Category:        "Literature",
		TotalCopies:     3,
		AvailableCopies: 3,
	}
}

func TestGateway_InitializeOnce(t *testing.T) {
	g, _, dials := newTestGateway(t)
	assert.False(t, g.IsInitialized())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.Initialize(context.Background(), "test://school", "", core.ConnectOptions{}))
		}()
	}
	wg.Wait()

	assert.True(t, g.IsInitialized())
	assert.Equal(t, int32(1), atomic.LoadInt32(dials))
}

func TestGateway_InitializeErrors(t *testing.T) {
	g := NewGateway(cache.NewMemory(8, time.Minute), logsvc.NewNop())
	ctx := context.Background()

	var connErr *core.ConnectionError
	err := g.Initialize(ctx, "://bad", "", core.ConnectOptions{})
	require.True(t, errors.As(err, &connErr), "got %T", err)

	err = g.Initialize(ctx, "ftp://files", "", core.ConnectOptions{})
	require.True(t, errors.As(err, &connErr))
	assert.Contains(t, err.Error(), `unsupported remote store scheme "ftp"`)

	// a failed dial is retried by the next caller
	var attempts int
	g.RegisterDialer("flaky", func(context.Context, *url.URL, string, core.ConnectOptions) (Backend, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("connection refused")
		}
		return memstore.New(), nil
	})
	err = g.Initialize(ctx, "flaky://x", "", core.ConnectOptions{})
	require.True(t, errors.As(err, &connErr))
	assert.False(t, g.IsInitialized())
	require.NoError(t, g.Initialize(ctx, "flaky://x", "", core.ConnectOptions{}))
	assert.True(t, g.IsInitialized())
	assert.Equal(t, 2, attempts)
}

func TestGateway_NotInitialized(t *testing.T) {
	g := NewGateway(cache.NewMemory(8, time.Minute), logsvc.NewNop())
	ctx := context.Background()

	h := g.HealthCheck(ctx)
	assert.False(t, h.Healthy)
	assert.Equal(t, core.ErrNotInitialized.Error(), h.Message)

	_, err := g.Query(ctx, entity.KindFees, core.Query{Limit: 1})
	var qErr *core.QueryError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, "fees", qErr.Table)
	assert.True(t, errors.Is(err, core.ErrNotInitialized))

	err = g.Insert(ctx, entity.KindLibraryBook, testBook())
	var wErr *core.WriteError
	require.True(t, errors.As(err, &wErr))
	assert.True(t, errors.Is(err, core.ErrNotInitialized))
}

func TestGateway_HealthCheckCached(t *testing.T) {
	g, backend, _ := newTestGateway(t)
	ctx := context.Background()
	require.NoError(t, g.Initialize(ctx, "test://school", "", core.ConnectOptions{HealthTTL: time.Minute}))

	for i := 0; i < 3; i++ {
		h := g.HealthCheck(ctx)
		assert.True(t, h.Healthy)
		assert.Equal(t, "ok", h.Message)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.pings))

	// unhealthy results are not cached
	require.NoError(t, g.Cache().Delete(ctx, healthCacheKey))
	backend.pingErr = errors.New("network is unreachable")
	for i := 0; i < 2; i++ {
		h := g.HealthCheck(ctx)
		assert.False(t, h.Healthy)
		assert.Equal(t, "remote store unreachable: network is unreachable", h.Message)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&backend.pings))
}

func TestGateway_QueryAndInsert(t *testing.T) {
	g, backend, _ := newTestGateway(t)
	ctx := context.Background()
	require.NoError(t, g.Initialize(ctx, "test://school", "", core.ConnectOptions{Timeout: time.Second}))

	q := core.Query{Limit: 10, CacheTTL: time.Minute}
	rows, err := g.Query(ctx, entity.KindLibraryBook, q)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// served from cache
	_, err = g.Query(ctx, entity.KindLibraryBook, q)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.queries))

	// insert invalidates cached reads of that kind
	book := testBook()
	require.NoError(t, g.Insert(ctx, entity.KindLibraryBook, book))
	rows, err = g.Query(ctx, entity.KindLibraryBook, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, book.ID, rows[0].String("id"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&backend.queries))

	// uncached reads always hit the backend
	_, _ = g.Query(ctx, entity.KindLibraryBook, core.Query{Limit: 1})
	_, _ = g.Query(ctx, entity.KindLibraryBook, core.Query{Limit: 1})
	assert.Equal(t, int32(4), atomic.LoadInt32(&backend.queries))

	// kind mismatch
	err = g.Insert(ctx, entity.KindFees, testBook())
	var wErr *core.WriteError
	require.True(t, errors.As(err, &wErr))
	assert.Equal(t, "fees", wErr.Table)

	// duplicate id surfaces as a write error
	err = g.Insert(ctx, entity.KindLibraryBook, book)
	require.True(t, errors.As(err, &wErr))

	// missing table surfaces as a query error
	backend.DropTable("exams")
	_, err = g.Query(ctx, entity.KindExam, core.Query{Limit: 1})
	var qErr *core.QueryError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, `querying exams: relation "exams" does not exist`, err.Error())

	require.NoError(t, g.Close())
	assert.False(t, g.IsInitialized())
}

func TestGateway_MemoryScheme(t *testing.T) {
	g := NewGateway(cache.NewMemory(8, time.Minute), logsvc.NewNop())
	require.NoError(t, g.Initialize(context.Background(), "memory://", "", core.ConnectOptions{}))
	_, ok := g.Backend().(*memstore.Store)
	assert.True(t, ok)
}
