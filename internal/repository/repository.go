package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/aicare/casemgr/internal/idgen"
	"github.com/aicare/casemgr/internal/normalize"
	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/logger"
	"github.com/aicare/casemgr/pkg/messaging"
	"github.com/aicare/casemgr/pkg/metrics"
)

// DefaultTTL bounds how stale a cached table may get.
const DefaultTTL = 60 * time.Second

type Config struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// Repository is the cached RecordRepository over a store.Store.
type Repository struct {
	store   store.Store
	ids     *idgen.Generator
	pub     messaging.Publisher
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// cacheMu orders cache fills against flushes so a fetch that raced a
	// write is never stored.
	cacheMu sync.Mutex
	cache   *cache.Cache
	gen     uint64

	// writeMu serializes identifier generation with the append that uses it.
	writeMu sync.Mutex
}

var _ RecordRepository = (*Repository)(nil)

type Option func(*Repository)

func WithPublisher(p messaging.Publisher) Option {
	return func(r *Repository) { r.pub = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Repository) { r.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func WithGenerator(g *idgen.Generator) Option {
	return func(r *Repository) { r.ids = g }
}

func New(st store.Store, cfg Config, opts ...Option) *Repository {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 2 * cfg.TTL
	}
	r := &Repository{
		store: st,
		cache: cache.New(cfg.TTL, cfg.CleanupInterval),
		pub:   messaging.Nop{},
		log:   logger.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.ids == nil {
		r.ids = idgen.New(st, idgen.WithClock(r.now))
	}
	return r
}

// List returns every row of table with ingestion transforms applied and
// derived columns computed for the current day. The returned rows are
// copies and may be modified by the caller.
func (r *Repository) List(ctx context.Context, table string) []store.Row {
	t, err := schema.Lookup(table)
	if err != nil {
		r.log.Warn(err, "list on unknown table")
		return nil
	}
	cached := r.load(ctx, t)

	today := r.now()
	out := make([]store.Row, len(cached))
	for i, row := range cached {
		row = row.Clone()
		r.derive(t, row, today)
		out[i] = row
	}
	return out
}

func (r *Repository) load(ctx context.Context, t *schema.Table) []store.Row {
	r.cacheMu.Lock()
	if v, ok := r.cache.Get(t.Name); ok {
		r.cacheMu.Unlock()
		r.metrics.CacheHit(t.Name)
		return v.([]store.Row)
	}
	gen := r.gen
	r.cacheMu.Unlock()
	r.metrics.CacheMiss(t.Name)

	rows, err := r.store.ListRows(ctx, t.Name)
	if err != nil {
		r.log.Warn(err, "store read failed, serving empty table", "table", t.Name)
		return nil
	}
	for _, row := range rows {
		normalize.Row(t, row)
	}

	r.cacheMu.Lock()
	if r.gen == gen {
		r.cache.Set(t.Name, rows, cache.DefaultExpiration)
	}
	r.cacheMu.Unlock()
	return rows
}

func (r *Repository) derive(t *schema.Table, row store.Row, today time.Time) {
	if t.Name == schema.Patients {
		row["post_op_day"] = strconv.Itoa(normalize.PostOpDay(row["surgery_date"], today))
	}
}

func (r *Repository) GetByID(ctx context.Context, table, id string) (store.Row, bool) {
	t, err := schema.Lookup(table)
	if err != nil {
		return nil, false
	}
	id = normalize.Identifier(id)
	if id == "" {
		return nil, false
	}
	for _, row := range r.List(ctx, table) {
		if row[t.IDColumn] == id {
			return row, true
		}
	}
	return nil, false
}

func (r *Repository) Filter(ctx context.Context, table string, match func(store.Row) bool) []store.Row {
	var out []store.Row
	for _, row := range r.List(ctx, table) {
		if match(row) {
			out = append(out, row)
		}
	}
	return out
}

func (r *Repository) ByPatient(ctx context.Context, table, patientID string) []store.Row {
	patientID = normalize.Identifier(patientID)
	return r.Filter(ctx, table, func(row store.Row) bool {
		return row["patient_id"] == patientID
	})
}

// Create appends a row built from fields and returns its identifier. Unknown
// and derived fields are dropped, table defaults and creation stamps fill
// the gaps, and an identifier is generated unless fields carries one.
func (r *Repository) Create(ctx context.Context, table string, fields map[string]string) (string, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return "", apperrors.NewBadRequest(err.Error(), nil)
	}

	now := r.now()
	row := make(store.Row, len(t.Columns))
	for k, v := range fields {
		if t.Has(k) && !t.IsDerived(k) {
			row[k] = v
		}
	}
	for col, def := range t.Defaults {
		if row[col] == "" {
			row[col] = def
		}
	}
	for _, col := range t.Stamped {
		if row[col] == "" {
			row[col] = now.Format(time.RFC3339)
		}
	}
	for _, col := range t.Dated {
		if row[col] == "" {
			row[col] = now.Format(normalize.DateLayout)
		}
	}
	normalize.Row(t, row)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	id := row[t.IDColumn]
	if id == "" {
		id, err = r.ids.Generate(ctx, t, row[t.SeedColumn])
		if err != nil {
			return "", writeErr("generate id", err)
		}
		row[t.IDColumn] = id
	} else if err := r.ensureFree(ctx, t, id); err != nil {
		return "", err
	}

	values := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		values[i] = row[col]
	}
	if err := r.store.AppendRow(ctx, t.Name, values); err != nil {
		return "", writeErr("append row", err)
	}

	r.invalidate(ctx, t.Name)
	r.log.Debug("record created", "table", t.Name, "id", id)
	return id, nil
}

func (r *Repository) ensureFree(ctx context.Context, t *schema.Table, id string) error {
	rows, err := r.store.ListRows(ctx, t.Name)
	if err != nil {
		return writeErr("check id", err)
	}
	for _, row := range rows {
		if normalize.Identifier(row[t.IDColumn]) == id {
			return apperrors.NewConflict(fmt.Sprintf("%s %s already exists", t.IDColumn, id), nil)
		}
	}
	return nil
}

// Update writes each known, writable field of fields into the row holding
// id, one cell at a time in schema order. The row position is read from the
// store rather than the cache. A failure part way leaves earlier cells
// written; every cell write is a plain set, so retrying is safe.
func (r *Repository) Update(ctx context.Context, table, id string, fields map[string]string) (bool, error) {
	return r.UpdateWith(ctx, table, id, func(store.Row) (map[string]string, error) {
		return fields, nil
	})
}

// UpdateWith is Update with the fields computed by mutate from the row as
// the store holds it now. mutate runs under the writer lock, so a check on
// the current row and the write that depends on it cannot interleave with
// another write from this process. A nil map writes nothing; an error from
// mutate is returned as is.
func (r *Repository) UpdateWith(ctx context.Context, table, id string, mutate Mutator) (bool, error) {
	t, err := schema.Lookup(table)
	if err != nil {
		return false, apperrors.NewBadRequest(err.Error(), nil)
	}
	id = normalize.Identifier(id)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	rows, err := r.store.ListRows(ctx, t.Name)
	if err != nil {
		return false, writeErr("locate row", err)
	}
	index := -1
	for i, row := range rows {
		if normalize.Identifier(row[t.IDColumn]) == id {
			index = i
			break
		}
	}
	if index < 0 {
		return false, nil
	}

	current := rows[index]
	normalize.Row(t, current)
	fields, err := mutate(current)
	if err != nil {
		return false, err
	}

	patch := make(map[string]string, len(fields))
	for k, v := range fields {
		if t.Writable(k) {
			patch[k] = v
		} else {
			r.log.Debug("ignoring field on update", "table", t.Name, "field", k)
		}
	}
	normalize.Row(t, patch)

	written := 0
	for _, col := range t.Columns {
		v, ok := patch[col]
		if !ok {
			continue
		}
		if err := r.store.UpdateCell(ctx, t.Name, index+2, t.Index(col)+1, v); err != nil {
			if written > 0 {
				r.invalidate(ctx, t.Name)
			}
			return false, writeErr("update "+col, err)
		}
		written++
	}
	if written > 0 {
		r.invalidate(ctx, t.Name)
	}
	return true, nil
}

// Invalidate drops every cached table. origin labels the cause in metrics.
func (r *Repository) Invalidate(origin string) {
	r.cacheMu.Lock()
	r.cache.Flush()
	r.gen++
	r.cacheMu.Unlock()
	r.metrics.CacheFlushed(origin)
}

type invalidation struct {
	Table string `json:"table"`
}

func (r *Repository) invalidate(ctx context.Context, table string) {
	r.Invalidate("local")
	if err := r.pub.Publish(ctx, messaging.EventCacheInvalidated, invalidation{Table: table}); err != nil {
		r.log.Warn(err, "failed to broadcast cache invalidation", "table", table)
	}
}

// HandleMessage flushes the cache when another process reports a write.
func (r *Repository) HandleMessage(_ context.Context, msg messaging.Message) error {
	if msg.Type != messaging.EventCacheInvalidated {
		return nil
	}
	var inv invalidation
	if err := msg.Decode(&inv); err != nil {
		return err
	}
	r.Invalidate("remote")
	r.log.Debug("cache flushed by peer", "origin", msg.Origin, "table", inv.Table)
	return nil
}

func writeErr(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewUnavailable(op, err)
}
