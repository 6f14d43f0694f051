package store

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/aicare/casemgr/pkg/circuitbreaker"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/logger"
	"github.com/aicare/casemgr/pkg/metrics"
)

// GuardConfig bounds how hard the record layer may lean on the store.
type GuardConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerFailures   uint32
	BreakerTimeout    time.Duration
}

// Guarded wraps a Store with a per-call timeout, a token bucket, a circuit
// breaker and metrics. Every transport failure comes back as an
// ErrUnavailable AppError; logical errors (missing table or row) pass
// through unchanged and do not trip the breaker.
type Guarded struct {
	next    Store
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics
}

var _ Store = (*Guarded)(nil)

func NewGuarded(next Store, cfg GuardConfig, m *metrics.Metrics, log *logger.Logger) *Guarded {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	g := &Guarded{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		timeout: cfg.Timeout,
		metrics: m,
	}
	g.breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
		Name:         "backing-store",
		MaxFailures:  cfg.BreakerFailures,
		Timeout:      cfg.BreakerTimeout,
		IsSuccessful: isLogical,
		OnStateChange: func(name, from, to string) {
			log.ZL.Warn().Str("breaker", name).Str("from", from).Str("to", to).Msg("store breaker state changed")
			m.SetBreakerOpen(name, to == "open")
		},
	})
	return g
}

func isLogical(err error) bool {
	return err == nil || errors.Is(err, ErrTableNotFound) || errors.Is(err, ErrRowOutOfRange)
}

func (g *Guarded) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	err := g.limiter.Wait(ctx)
	if err == nil {
		err = g.breaker.Execute(func() error { return fn(ctx) })
	}
	g.metrics.ObserveStore(op, err, time.Since(start))

	if err == nil || isLogical(err) {
		return err
	}
	return apperrors.NewUnavailable(op, err)
}

func (g *Guarded) EnsureTable(ctx context.Context, table string, columns []string) error {
	return g.do(ctx, "ensure_table", func(ctx context.Context) error {
		return g.next.EnsureTable(ctx, table, columns)
	})
}

func (g *Guarded) Header(ctx context.Context, table string) ([]string, error) {
	var header []string
	err := g.do(ctx, "header", func(ctx context.Context) error {
		var err error
		header, err = g.next.Header(ctx, table)
		return err
	})
	return header, err
}

func (g *Guarded) ListRows(ctx context.Context, table string) ([]Row, error) {
	var rows []Row
	err := g.do(ctx, "list_rows", func(ctx context.Context) error {
		var err error
		rows, err = g.next.ListRows(ctx, table)
		return err
	})
	return rows, err
}

func (g *Guarded) AppendRow(ctx context.Context, table string, values []string) error {
	return g.do(ctx, "append_row", func(ctx context.Context) error {
		return g.next.AppendRow(ctx, table, values)
	})
}

func (g *Guarded) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	return g.do(ctx, "update_cell", func(ctx context.Context) error {
		return g.next.UpdateCell(ctx, table, row, col, value)
	})
}

// BreakerState exposes the breaker for readiness checks.
func (g *Guarded) BreakerState() string {
	return g.breaker.State()
}
