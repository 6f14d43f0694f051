package idgen

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store/memory"
)

// fixedSource makes every bounded draw return 0, so retries collide.
type fixedSource struct{}

func (fixedSource) Uint64() uint64 { return 1 }

var frozen = time.Date(2026, 3, 15, 9, 30, 45, 0, time.Local)

func clock() time.Time { return frozen }

func TestNextFirstTier(t *testing.T) {
	g := New(nil, WithClock(clock))
	patients := schema.MustLookup(schema.Patients)

	assert.Equal(t, "P56780315"+"0930", g.Next(patients, "0912345678", nil))
	assert.Equal(t, "P56780315"+"0930", g.Next(patients, "912345678.0", nil))

	reports := schema.MustLookup(schema.Reports)
	assert.Equal(t, "R20260315093045", g.Next(reports, "", nil))
}

func TestNextNeverCollides(t *testing.T) {
	g := New(nil, WithClock(clock))
	patients := schema.MustLookup(schema.Patients)

	taken := map[string]struct{}{}
	for i := 0; i < 1500; i++ {
		id := g.Next(patients, "0912345678", taken)
		_, dup := taken[id]
		require.False(t, dup, "generation %d returned taken id %s", i, id)
		require.True(t, strings.HasPrefix(id, "P"))
		taken[id] = struct{}{}
	}
}

func TestNextFallsBackToTimestamp(t *testing.T) {
	g := New(nil, WithClock(clock), WithRand(fixedSource{}))
	patients := schema.MustLookup(schema.Patients)

	taken := map[string]struct{}{}
	seen := []string{}
	for i := 0; i < 20; i++ {
		id := g.Next(patients, "5678", taken)
		_, dup := taken[id]
		require.False(t, dup)
		taken[id] = struct{}{}
		seen = append(seen, id)
	}
	assert.Equal(t, "P567803150930", seen[0])
	assert.Equal(t, "P567803150930000", seen[1])
	assert.Equal(t, "PAAAAAA", seen[2])
	assert.Equal(t, "P20260315093045", seen[3])
	assert.Equal(t, "P202603150930451", seen[4])
	assert.Equal(t, "P202603150930452", seen[5])
}

func TestGenerateReadsStore(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	reports := schema.MustLookup(schema.Reports)
	require.NoError(t, mem.EnsureTable(ctx, reports.Name, reports.Columns))
	require.NoError(t, mem.AppendRow(ctx, reports.Name, []string{"R20260315093045"}))

	g := New(mem, WithClock(clock))
	id, err := g.Generate(ctx, reports, "")
	require.NoError(t, err)
	assert.NotEqual(t, "R20260315093045", id)
	assert.True(t, strings.HasPrefix(id, "R"))

	_, err = g.Generate(ctx, schema.MustLookup(schema.Problems), "")
	assert.Error(t, err, "table was never ensured")
}
