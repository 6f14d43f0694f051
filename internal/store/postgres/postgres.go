// Package postgres keeps the tabular store in PostgreSQL. Each table is a
// header array plus numbered rows of text arrays, which keeps the same row
// and column addressing as a spreadsheet while giving real durability and
// row locking on append.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aicare/casemgr/config"
	"github.com/aicare/casemgr/internal/store"
)

const migration = `
CREATE TABLE IF NOT EXISTS sheet_tables (
	name   TEXT PRIMARY KEY,
	header TEXT[] NOT NULL
);
CREATE TABLE IF NOT EXISTS sheet_rows (
	table_name TEXT NOT NULL REFERENCES sheet_tables(name),
	row_num    INT  NOT NULL,
	cells      TEXT[] NOT NULL,
	PRIMARY KEY (table_name, row_num)
);`

// Store implements store.Store on a *sqlx.DB.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the two backing tables if needed.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("failed to migrate sheet tables: %w", err)
	}
	return nil
}

// Ping is used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes a function within a transaction
func (s *Store) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func (s *Store) EnsureTable(ctx context.Context, table string, columns []string) error {
	query := `INSERT INTO sheet_tables (name, header) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, query, table, pq.StringArray(columns)); err != nil {
		return fmt.Errorf("failed to ensure table %s: %w", table, err)
	}
	return nil
}

func (s *Store) Header(ctx context.Context, table string) ([]string, error) {
	var header []sql.NullString
	query := `SELECT header FROM sheet_tables WHERE name = $1`
	err := s.db.QueryRowxContext(ctx, query, table).Scan(pq.Array(&header))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", table, err)
	}
	return flatten(header), nil
}

func (s *Store) ListRows(ctx context.Context, table string) ([]store.Row, error) {
	header, err := s.Header(ctx, table)
	if err != nil {
		return nil, err
	}

	query := `SELECT cells FROM sheet_rows WHERE table_name = $1 ORDER BY row_num`
	rows, err := s.db.QueryxContext(ctx, query, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list rows of %s: %w", table, err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		var cells []sql.NullString
		if err := rows.Scan(pq.Array(&cells)); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		out = append(out, store.RowFromValues(header, flatten(cells)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows of %s: %w", table, err)
	}
	return out, nil
}

// AppendRow locks the table's header row so concurrent appends get distinct
// row numbers.
func (s *Store) AppendRow(ctx context.Context, table string, values []string) error {
	return s.WithTx(ctx, func(tx *sqlx.Tx) error {
		var name string
		err := tx.QueryRowxContext(ctx, `SELECT name FROM sheet_tables WHERE name = $1 FOR UPDATE`, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
		}
		if err != nil {
			return fmt.Errorf("failed to lock table %s: %w", table, err)
		}

		query := `
			INSERT INTO sheet_rows (table_name, row_num, cells)
			SELECT $1, COALESCE(MAX(row_num), 1) + 1, $2
			FROM sheet_rows WHERE table_name = $1
		`
		if _, err := tx.ExecContext(ctx, query, table, pq.StringArray(values)); err != nil {
			return fmt.Errorf("failed to append row to %s: %w", table, err)
		}
		return nil
	})
}

// UpdateCell writes one cell; PostgreSQL array subscripts are 1-based like
// the column index, and assigning past the end grows the array.
func (s *Store) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	if col < 1 {
		return fmt.Errorf("column %d out of range", col)
	}

	var (
		res sql.Result
		err error
	)
	if row == 1 {
		res, err = s.db.ExecContext(ctx, `UPDATE sheet_tables SET header[$2] = $3 WHERE name = $1`, table, col, value)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE sheet_rows SET cells[$3] = $4 WHERE table_name = $1 AND row_num = $2`,
			table, row, col, value,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update %s R%dC%d: %w", table, row, col, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s R%dC%d: %w", table, row, col, err)
	}
	if n == 0 {
		if row == 1 {
			return fmt.Errorf("%w: %s", store.ErrTableNotFound, table)
		}
		return fmt.Errorf("%w: %s row %d", store.ErrRowOutOfRange, table, row)
	}
	return nil
}

func flatten(cells []sql.NullString) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.String
	}
	return out
}
