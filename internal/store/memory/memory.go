// Package memory is an in-process implementation of store.Store. It backs
// the test suites and single-node deployments that need no shared state.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aicare/casemgr/internal/store"
)

type sheet struct {
	header []string
	rows   [][]string
}

// Store keeps every table in memory.
type Store struct {
	mu     sync.RWMutex
	sheets map[string]*sheet
	fail   error

	listCalls atomic.Int64
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{sheets: make(map[string]*sheet)}
}

// FailWith makes every following call return err, simulating an unreachable
// store. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// ListCalls reports how many times ListRows reached the store.
func (s *Store) ListCalls() int64 {
	return s.listCalls.Load()
}

func (s *Store) EnsureTable(ctx context.Context, table string, columns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.sheets[table]; ok {
		return nil
	}
	s.sheets[table] = &sheet{header: append([]string(nil), columns...)}
	return nil
}

func (s *Store) Header(ctx context.Context, table string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	sh, ok := s.sheets[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
	}
	return append([]string(nil), sh.header...), nil
}

func (s *Store) ListRows(ctx context.Context, table string) ([]store.Row, error) {
	s.listCalls.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	sh, ok := s.sheets[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
	}
	rows := make([]store.Row, 0, len(sh.rows))
	for _, values := range sh.rows {
		rows = append(rows, store.RowFromValues(sh.header, values))
	}
	return rows, nil
}

func (s *Store) AppendRow(ctx context.Context, table string, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	sh, ok := s.sheets[table]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
	}
	sh.rows = append(sh.rows, append([]string(nil), values...))
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	sh, ok := s.sheets[table]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
	}
	if col < 1 {
		return fmt.Errorf("column %d out of range", col)
	}
	if row == 1 {
		sh.header = setCell(sh.header, col, value)
		return nil
	}
	idx := row - 2
	if idx < 0 || idx >= len(sh.rows) {
		return fmt.Errorf("%w: %s row %d", store.ErrRowOutOfRange, table, row)
	}
	sh.rows[idx] = setCell(sh.rows[idx], col, value)
	return nil
}

func setCell(cells []string, col int, value string) []string {
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	return cells
}
