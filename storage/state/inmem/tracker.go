// Package inmem is a process-local state.Tracker, used in tests and dry runs.
package inmem

import (
	"context"
	"sync"

	"github.com/trezcool/masomodb/core/state"
)

type Tracker struct {
	mu      sync.RWMutex
	flags   map[state.Flag]bool
	version int
}

var _ state.Tracker = (*Tracker)(nil)

func NewTracker() *Tracker {
	return &Tracker{flags: make(map[state.Flag]bool)}
}

func (t *Tracker) GetFlag(_ context.Context, flag state.Flag) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flags[flag], nil
}

func (t *Tracker) SetFlag(_ context.Context, flag state.Flag, value bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flags[flag] = value
	return nil
}

func (t *Tracker) GetVersion(context.Context) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version, nil
}

func (t *Tracker) SetVersion(_ context.Context, version int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version = version
	return nil
}

func (t *Tracker) ClearAll(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flags = make(map[state.Flag]bool)
	t.version = 0
	return nil
}
