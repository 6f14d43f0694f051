package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
	"github.com/aicare/casemgr/pkg/logger"
)

// Drift describes how one stored header differs from the registry.
type Drift struct {
	Table   string
	Missing []string
	Err     error
}

// CheckSchema compares every stored header with the registry without
// changing anything. Tables that do not exist yet report all columns missing.
func CheckSchema(ctx context.Context, st store.Store) ([]Drift, error) {
	var out []Drift
	for _, t := range schema.All() {
		header, err := st.Header(ctx, t.Name)
		if errors.Is(err, store.ErrTableNotFound) {
			header, err = nil, nil
		}
		if err != nil {
			return nil, err
		}
		missing, err := t.CheckHeader(header)
		if err != nil || len(missing) > 0 {
			out = append(out, Drift{Table: t.Name, Missing: missing, Err: err})
		}
	}
	return out, nil
}

// Setup creates missing tables, appends missing trailing header columns and
// fails on any header that would misdirect field-targeted writes.
func Setup(ctx context.Context, st store.Store, log *logger.Logger) error {
	for _, t := range schema.All() {
		if err := st.EnsureTable(ctx, t.Name, t.Columns); err != nil {
			return fmt.Errorf("ensure table %s: %w", t.Name, err)
		}
		header, err := st.Header(ctx, t.Name)
		if err != nil {
			return fmt.Errorf("read header of %s: %w", t.Name, err)
		}
		missing, err := t.CheckHeader(header)
		if err != nil {
			return err
		}
		start := len(t.Columns) - len(missing)
		for i, col := range missing {
			if err := st.UpdateCell(ctx, t.Name, 1, start+i+1, col); err != nil {
				return fmt.Errorf("append column %s.%s: %w", t.Name, col, err)
			}
		}
		if len(missing) > 0 {
			log.Info("appended missing columns", "table", t.Name, "columns", missing)
		}
	}
	return nil
}
