// Package memstore is an in-process remote store backend, used for tests and dry runs (memory://).
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomodb/core"
	"github.com/trezcool/masomodb/core/entity"
)

var (
	errClosed = errors.New("memstore closed")
)

type Store struct {
	mu     sync.RWMutex
	tables map[string][]core.Row
	closed bool
}

// New creates a store holding an empty table per known entity kind.
func New() *Store {
	s := &Store{tables: make(map[string][]core.Row)}
	for _, k := range entity.AllKinds() {
		s.tables[k.Table()] = nil
	}
	return s
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

func (s *Store) table(name string) ([]core.Row, error) {
	if s.closed {
		return nil, errClosed
	}
	rows, ok := s.tables[name]
	if !ok {
		return nil, errors.Errorf("relation %q does not exist", name)
	}
	return rows, nil
}

func (s *Store) Query(_ context.Context, table string, q core.Query) ([]core.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.table(table)
	if err != nil {
		return nil, err
	}

	matched := make([]core.Row, 0, len(rows))
	for _, row := range rows {
		if matches(row, q.Filters) {
			matched = append(matched, copyRow(row))
		}
	}

	if len(q.Ordering) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, ord := range q.Ordering {
				c := compare(matched[i][ord.Field], matched[j][ord.Field])
				if c == 0 {
					continue
				}
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
			return false
		})
	}

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (s *Store) Insert(_ context.Context, table string, e entity.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.table(table)
	if err != nil {
		return err
	}
	row := entity.ToRow(e)
	id := row.String("id")
	for _, existing := range rows {
		if existing.String("id") == id {
			return errors.Errorf("duplicate key value violates unique constraint %q", table+"_pkey")
		}
	}
	s.tables[table] = append(rows, row)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// CreateTable adds an empty table; existing rows are kept.
func (s *Store) CreateTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = nil
	}
}

// DropTable removes a table and its rows.
func (s *Store) DropTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tables, name)
}

// Count returns the number of rows in table, or -1 if it does not exist.
func (s *Store) Count(table string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.tables[table]
	if !ok {
		return -1
	}
	return len(rows)
}

func matches(row core.Row, filters []core.Filter) bool {
	for _, f := range filters {
		if compare(row[f.Field], f.Value) != 0 {
			return false
		}
	}
	return true
}

func copyRow(row core.Row) core.Row {
	cp := make(core.Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return cp
}

// compare orders two column values of the same Go type, falling back to their printed form.
func compare(a, b interface{}) int {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Before(bv):
				return -1
			case av.After(bv):
				return 1
			}
			return 0
		}
	case decimal.Decimal:
		if bv, ok := b.(decimal.Decimal); ok {
			return av.Cmp(bv)
		}
	case int:
		if bv, ok := b.(int); ok {
			return compareOrdered(av, bv)
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return compareOrdered(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return compareOrdered(av, bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return compareOrdered(av, bv)
		}
	}
	return compareOrdered(fmt.Sprint(a), fmt.Sprint(b))
}

func compareOrdered[T int | int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
