// Package remote owns the single live connection to the hosted data store.
package remote

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
	"github.com/trezcool/masomodb/storage/cache"
	"github.com/trezcool/masomodb/storage/remote/memstore"
	"github.com/trezcool/masomodb/storage/remote/sqlstore"
)

const healthCacheKey = "remote:health"

var nowFunc = time.Now

// Backend is a concrete store reachable through the Gateway.
type Backend interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, table string, q core.Query) ([]core.Row, error)
	Insert(ctx context.Context, table string, e entity.Entity) error
	Close() error
}

// Dialer connects to the backend named by u.
type Dialer func(ctx context.Context, u *url.URL, key string, opts core.ConnectOptions) (Backend, error)

func dialSQL(ctx context.Context, u *url.URL, key string, opts core.ConnectOptions) (Backend, error) {
	return sqlstore.Dial(ctx, u, key, opts)
}

func dialMemory(context.Context, *url.URL, string, core.ConnectOptions) (Backend, error) {
	return memstore.New(), nil
}

// Gateway lazily connects to the remote store on first Initialize and exposes generic reads and writes per entity kind.
// It is safe for concurrent use.
type Gateway struct {
	cache cache.Cache
	log   core.Logger

	mu      sync.RWMutex // guards backend, opts & dialers
	backend Backend
	opts    core.ConnectOptions
	dialers map[string]Dialer

	genMu sync.Mutex
	gens  map[entity.Kind]uint64 // bumped on insert to invalidate cached queries
}

func NewGateway(c cache.Cache, log core.Logger) *Gateway {
	return &Gateway{
		cache: c,
		log:   log,
		dialers: map[string]Dialer{
			"postgres":   dialSQL,
			"postgresql": dialSQL,
			"mysql":      dialSQL,
			"memory":     dialMemory,
		},
		gens: make(map[entity.Kind]uint64),
	}
}

// RegisterDialer adds or replaces the dialer of a URL scheme.
func (g *Gateway) RegisterDialer(scheme string, d Dialer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dialers[scheme] = d
}

// Initialize connects to the store at rawURL. Once it succeeds, later calls are no-ops;
// after a failure the next caller tries again.
func (g *Gateway) Initialize(ctx context.Context, rawURL, key string, opts core.ConnectOptions) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backend != nil {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return &core.ConnectionError{Message: fmt.Sprintf("invalid remote store url %q", rawURL), Err: err}
	}
	dial, ok := g.dialers[u.Scheme]
	if !ok {
		return &core.ConnectionError{Message: fmt.Sprintf("unsupported remote store scheme %q", u.Scheme)}
	}

	backend, err := dial(ctx, u, key, opts)
	if err != nil {
		return &core.ConnectionError{Message: "connecting to remote store: " + err.Error(), Err: err}
	}
	g.backend = backend
	g.opts = opts
	g.log.Info("remote store connected", "scheme", u.Scheme, "host", u.Host)
	return nil
}

func (g *Gateway) IsInitialized() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.backend != nil
}

func (g *Gateway) current() (Backend, core.ConnectOptions) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.backend, g.opts
}

func withTimeout(ctx context.Context, opts core.ConnectOptions) (context.Context, context.CancelFunc) {
	if opts.Timeout > 0 {
		return context.WithTimeout(ctx, opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// HealthCheck pings the store. Healthy results are cached for the configured health TTL.
func (g *Gateway) HealthCheck(ctx context.Context) core.Health {
	backend, opts := g.current()
	if backend == nil {
		return core.Health{Message: core.ErrNotInitialized.Error(), CheckedAt: nowFunc().UTC()}
	}

	if opts.HealthTTL > 0 {
		if b, ok, err := g.cache.Get(ctx, healthCacheKey); err == nil && ok {
			var h core.Health
			if err := json.Unmarshal(b, &h); err == nil {
				return h
			}
		}
	}

	cctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	h := core.Health{Healthy: true, Message: "ok", CheckedAt: nowFunc().UTC()}
	if err := backend.Ping(cctx); err != nil {
		h.Healthy = false
		h.Message = "remote store unreachable: " + err.Error()
		return h
	}

	if opts.HealthTTL > 0 {
		if b, err := json.Marshal(h); err == nil {
			if err := g.cache.Set(ctx, healthCacheKey, b, opts.HealthTTL); err != nil {
				g.log.Warn("caching health check", err)
			}
		}
	}
	return h
}

func (g *Gateway) generation(kind entity.Kind) uint64 {
	g.genMu.Lock()
	defer g.genMu.Unlock()
	return g.gens[kind]
}

func (g *Gateway) bump(kind entity.Kind) {
	g.genMu.Lock()
	defer g.genMu.Unlock()
	g.gens[kind]++
}

func queryCacheKey(kind entity.Kind, gen uint64, q core.Query) (string, error) {
	b, err := json.Marshal(struct {
		Filters  []core.Filter
		Ordering []core.DBOrdering
		Limit    int
	}{q.Filters, q.Ordering, q.Limit})
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(b)
	return fmt.Sprintf("remote:query:%s:%d:%s", kind, gen, hex.EncodeToString(sum[:])), nil
}

// Query reads rows of kind matching q. With q.CacheTTL > 0 identical reads are served from the cache
// until the TTL elapses or a row of that kind is inserted.
func (g *Gateway) Query(ctx context.Context, kind entity.Kind, q core.Query) ([]core.Row, error) {
	backend, opts := g.current()
	if backend == nil {
		return nil, &core.QueryError{Table: kind.Table(), Err: core.ErrNotInitialized}
	}

	var cacheKey string
	if q.CacheTTL > 0 {
		if key, err := queryCacheKey(kind, g.generation(kind), q); err == nil {
			cacheKey = key
			if b, ok, err := g.cache.Get(ctx, cacheKey); err == nil && ok {
				var rows []core.Row
				if err := json.Unmarshal(b, &rows); err == nil {
					return rows, nil
				}
			}
		}
	}

	cctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	rows, err := backend.Query(cctx, kind.Table(), q)
	if err != nil {
		return nil, &core.QueryError{Table: kind.Table(), Err: err}
	}

	if cacheKey != "" {
		if b, err := json.Marshal(rows); err == nil {
			if err := g.cache.Set(ctx, cacheKey, b, q.CacheTTL); err != nil {
				g.log.Warn("caching query", "kind", kind, err)
			}
		}
	}
	return rows, nil
}

// Insert writes one entity of kind.
func (g *Gateway) Insert(ctx context.Context, kind entity.Kind, e entity.Entity) error {
	backend, opts := g.current()
	if backend == nil {
		return &core.WriteError{Table: kind.Table(), Err: core.ErrNotInitialized}
	}
	if e == nil || e.Kind() != kind {
		return &core.WriteError{Table: kind.Table(), Err: errors.Errorf("entity kind mismatch: %T", e)}
	}

	cctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	if err := backend.Insert(cctx, kind.Table(), e); err != nil {
		return &core.WriteError{Table: kind.Table(), Err: err}
	}
	g.bump(kind)
	return nil
}

func (g *Gateway) Cache() cache.Cache { return g.cache }

// Backend returns the live backend, or nil before Initialize succeeds.
func (g *Gateway) Backend() Backend {
	b, _ := g.current()
	return b
}

func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.backend == nil {
		return nil
	}
	err := g.backend.Close()
	g.backend = nil
	return errors.Wrap(err, "closing remote store")
}
