// Package idgen issues short, human readable record identifiers that do not
// collide with any identifier already present in a table.
package idgen

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/aicare/casemgr/internal/normalize"
	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
)

const (
	seedDigits   = 4
	numericTries = 9
	randomTries  = 90
	randomLen    = 6
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Lister is the part of store.Store the generator reads from.
type Lister interface {
	ListRows(ctx context.Context, table string) ([]store.Row, error)
}

type Generator struct {
	src Lister
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Generator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithRand replaces the random source used by the retry tiers.
func WithRand(src rand.Source) Option {
	return func(g *Generator) { g.rnd = rand.New(src) }
}

func New(src Lister, opts ...Option) *Generator {
	g := &Generator{
		src: src,
		now: time.Now,
		rnd: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate reads the current identifiers of table straight from the store
// and returns one that is not among them. The check and the caller's append
// are not atomic; callers that need uniqueness within a process serialize
// Generate with their append.
func (g *Generator) Generate(ctx context.Context, table *schema.Table, seed string) (string, error) {
	rows, err := g.src.ListRows(ctx, table.Name)
	if err != nil {
		return "", err
	}
	taken := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if id := normalize.Identifier(row[table.IDColumn]); id != "" {
			taken[id] = struct{}{}
		}
	}
	return g.Next(table, seed, taken), nil
}

// Next picks an identifier absent from taken without touching the store.
//
// Tiers, in order: prefix + last four seed characters + MMDDhhmm; the same
// plus three random digits; prefix + six random alphanumerics; and finally
// prefix + YYYYMMDDhhmmss with a counter appended until it is free.
// Unseeded tables start at the full timestamp form.
func (g *Generator) Next(table *schema.Table, seed string, taken map[string]struct{}) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	free := func(id string) bool {
		_, ok := taken[id]
		return !ok
	}
	now := g.now()
	stamp := table.IDPrefix + now.Format("20060102150405")

	tail := seedTail(seed)
	if table.SeedColumn == "" || tail == "" {
		if free(stamp) {
			return stamp
		}
	} else {
		base := table.IDPrefix + tail + now.Format("01021504")
		if free(base) {
			return base
		}
		for i := 0; i < numericTries; i++ {
			id := base + g.digits(3)
			if free(id) {
				return id
			}
		}
	}

	for i := 0; i < randomTries; i++ {
		id := table.IDPrefix + g.alnum(randomLen)
		if free(id) {
			return id
		}
	}

	if free(stamp) {
		return stamp
	}
	for n := 1; ; n++ {
		id := stamp + strconv.Itoa(n)
		if free(id) {
			return id
		}
	}
}

func seedTail(seed string) string {
	seed = normalize.Identifier(seed)
	if len(seed) > seedDigits {
		return seed[len(seed)-seedDigits:]
	}
	return seed
}

func (g *Generator) digits(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + g.rnd.IntN(10))
	}
	return string(b)
}

func (g *Generator) alnum(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[g.rnd.IntN(len(alphabet))]
	}
	return string(b)
}
