package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicare/casemgr/internal/store"
)

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.EnsureTable(ctx, "T", []string{"id", "name", "note"}))
	require.NoError(t, s.EnsureTable(ctx, "T", []string{"ignored"}))

	header, err := s.Header(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "note"}, header)

	require.NoError(t, s.AppendRow(ctx, "T", []string{"1", "a"}))
	require.NoError(t, s.AppendRow(ctx, "T", []string{"2", "b", "x"}))

	rows, err := s.ListRows(ctx, "T")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, store.Row{"id": "1", "name": "a", "note": ""}, rows[0])

	require.NoError(t, s.UpdateCell(ctx, "T", 2, 3, "hello"))
	rows, _ = s.ListRows(ctx, "T")
	assert.Equal(t, "hello", rows[0]["note"])

	err = s.UpdateCell(ctx, "T", 9, 1, "x")
	assert.True(t, errors.Is(err, store.ErrRowOutOfRange))

	require.NoError(t, s.UpdateCell(ctx, "T", 1, 4, "extra"))
	header, _ = s.Header(ctx, "T")
	assert.Equal(t, []string{"id", "name", "note", "extra"}, header)
	assert.EqualValues(t, 3, s.ListCalls())
}

func TestStoreMissingTable(t *testing.T) {
	_, err := New().ListRows(context.Background(), "nope")
	assert.True(t, errors.Is(err, store.ErrTableNotFound))
}

func TestStoreFailure(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.EnsureTable(ctx, "T", []string{"id"}))

	boom := errors.New("offline")
	s.FailWith(boom)
	_, err := s.ListRows(ctx, "T")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.AppendRow(ctx, "T", []string{"1"}), boom)

	s.FailWith(nil)
	assert.NoError(t, s.AppendRow(ctx, "T", []string{"1"}))
}
