package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
	"github.com/aicare/casemgr/internal/store/memory"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/logger"
	"github.com/aicare/casemgr/pkg/messaging"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

type RepositorySuite struct {
	suite.Suite
	ctx   context.Context
	mem   *memory.Store
	repo  *Repository
	pub   *recordingPublisher
	clock time.Time
}

func (s *RepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.mem = memory.New()
	s.pub = &recordingPublisher{}
	s.clock = time.Date(2026, 3, 15, 9, 30, 0, 0, time.Local)
	require.NoError(s.T(), Setup(s.ctx, s.mem, logger.Nop()))
	s.repo = New(s.mem, Config{TTL: time.Minute},
		WithPublisher(s.pub),
		WithClock(func() time.Time { return s.clock }),
	)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) TestPatientRoundTrip() {
	id, err := s.repo.Create(s.ctx, schema.Patients, map[string]string{
		"name":  "Test",
		"phone": "0912345678",
	})
	s.Require().NoError(err)
	s.NotEmpty(id)

	row, ok := s.repo.GetByID(s.ctx, schema.Patients, id)
	s.Require().True(ok)
	s.Equal("0912345678", row["phone"])
	s.Equal("pending_setup", row["status"])
	s.Equal("Y", row["consent_agreed"])
	s.NotEmpty(row["registered_at"])
	s.Equal("0", row["post_op_day"])
	s.Equal([]string{messaging.EventCacheInvalidated}, s.pub.events)
}

func (s *RepositorySuite) TestPhoneStoredAsNumberIsNormalized() {
	_, err := s.repo.Create(s.ctx, schema.Patients, map[string]string{
		"patient_id": "P001",
		"name":       "Legacy",
		"phone":      "912345678.0",
	})
	s.Require().NoError(err)

	row, ok := s.repo.GetByID(s.ctx, schema.Patients, "P001")
	s.Require().True(ok)
	s.Equal("0912345678", row["phone"])
}

func (s *RepositorySuite) TestPostOpDayIsDerivedOnRead() {
	_, err := s.repo.Create(s.ctx, schema.Patients, map[string]string{
		"patient_id":   "P002",
		"name":         "Ten Days",
		"surgery_date": "2026-03-05",
		"post_op_day":  "999",
	})
	s.Require().NoError(err)

	row, _ := s.repo.GetByID(s.ctx, schema.Patients, "P002")
	s.Equal("10", row["post_op_day"])

	// the cached rows do not pin the derived value to the fetch day
	s.clock = s.clock.Add(24 * time.Hour)
	row, _ = s.repo.GetByID(s.ctx, schema.Patients, "P002")
	s.Equal("11", row["post_op_day"])

	raw, err := s.mem.ListRows(s.ctx, schema.Patients)
	s.Require().NoError(err)
	s.Equal("", raw[0]["post_op_day"], "derived column is never written")
}

func (s *RepositorySuite) TestReadYourWrites() {
	s.Empty(s.repo.List(s.ctx, schema.Reports))

	id, err := s.repo.Create(s.ctx, schema.Reports, map[string]string{"patient_id": "P001", "overall_score": "3"})
	s.Require().NoError(err)
	rows := s.repo.List(s.ctx, schema.Reports)
	s.Require().Len(rows, 1)
	s.Equal(id, rows[0]["report_id"])
	s.Equal("2026-03-15", rows[0]["date"])
	s.Equal("N", rows[0]["alert_handled"])

	ok, err := s.repo.Update(s.ctx, schema.Reports, id, map[string]string{"ai_summary": "stable"})
	s.Require().NoError(err)
	s.True(ok)
	row, _ := s.repo.GetByID(s.ctx, schema.Reports, id)
	s.Equal("stable", row["ai_summary"])
}

func (s *RepositorySuite) TestCacheServesWithinTTL() {
	s.repo.List(s.ctx, schema.Patients)
	calls := s.mem.ListCalls()
	s.repo.List(s.ctx, schema.Patients)
	s.repo.GetByID(s.ctx, schema.Patients, "nope")
	s.Equal(calls, s.mem.ListCalls())

	// out-of-band write is invisible until the cache is dropped
	s.Require().NoError(s.mem.AppendRow(s.ctx, schema.Patients, []string{"P900", "Out of band"}))
	s.Empty(s.repo.List(s.ctx, schema.Patients))
	s.repo.Invalidate("test")
	s.Len(s.repo.List(s.ctx, schema.Patients), 1)
}

func (s *RepositorySuite) TestUpdateWithSeesCurrentRow() {
	_, err := s.repo.Create(s.ctx, schema.Patients, map[string]string{"patient_id": "P010", "name": "A", "notes": "first"})
	s.Require().NoError(err)
	s.repo.List(s.ctx, schema.Patients)

	// the cached copy still says "first"; the mutator must see "second"
	s.Require().NoError(s.mem.UpdateCell(s.ctx, schema.Patients, 2, schema.MustLookup(schema.Patients).Index("notes")+1, "second"))
	var seen string
	ok, err := s.repo.UpdateWith(s.ctx, schema.Patients, "P010", func(current store.Row) (map[string]string, error) {
		seen = current["notes"]
		return map[string]string{"notes": current["notes"] + "+third"}, nil
	})
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("second", seen)
	row, _ := s.repo.GetByID(s.ctx, schema.Patients, "P010")
	s.Equal("second+third", row["notes"])

	refused := apperrors.NewConflict("no", nil)
	_, err = s.repo.UpdateWith(s.ctx, schema.Patients, "P010", func(store.Row) (map[string]string, error) {
		return nil, refused
	})
	s.ErrorIs(err, refused)

	ok, err = s.repo.UpdateWith(s.ctx, schema.Patients, "P010", func(store.Row) (map[string]string, error) {
		return nil, nil
	})
	s.NoError(err)
	s.True(ok)
}

func (s *RepositorySuite) TestUpdateIgnoresUnknownAndProtectedFields() {
	_, err := s.repo.Create(s.ctx, schema.Patients, map[string]string{"patient_id": "P003", "name": "A"})
	s.Require().NoError(err)

	ok, err := s.repo.Update(s.ctx, schema.Patients, "P003", map[string]string{
		"status":      "active",
		"patient_id":  "HIJACK",
		"post_op_day": "42",
		"favourite":   "blue",
	})
	s.Require().NoError(err)
	s.True(ok)

	row, ok := s.repo.GetByID(s.ctx, schema.Patients, "P003")
	s.Require().True(ok)
	s.Equal("active", row["status"])
	_, has := row["favourite"]
	s.False(has)
	_, ok = s.repo.GetByID(s.ctx, schema.Patients, "HIJACK")
	s.False(ok)
}

func (s *RepositorySuite) TestUpdateMissingRecord() {
	ok, err := s.repo.Update(s.ctx, schema.Patients, "P404", map[string]string{"status": "active"})
	s.NoError(err)
	s.False(ok)
}

func (s *RepositorySuite) TestDuplicateExplicitIDConflicts() {
	_, err := s.repo.Create(s.ctx, schema.Problems, map[string]string{"problem_id": "PR1"})
	s.Require().NoError(err)
	_, err = s.repo.Create(s.ctx, schema.Problems, map[string]string{"problem_id": "PR1"})
	s.True(errors.Is(err, apperrors.ConflictError))
}

func (s *RepositorySuite) TestReadFailOpenWriteFailClosed() {
	_, err := s.repo.Create(s.ctx, schema.Patients, map[string]string{"patient_id": "P005", "name": "A"})
	s.Require().NoError(err)
	s.repo.Invalidate("test")

	s.mem.FailWith(errors.New("quota exceeded"))
	s.Empty(s.repo.List(s.ctx, schema.Patients))
	_, ok := s.repo.GetByID(s.ctx, schema.Patients, "P005")
	s.False(ok)

	_, err = s.repo.Create(s.ctx, schema.Patients, map[string]string{"name": "B"})
	s.True(errors.Is(err, apperrors.UnavailableError))
	_, err = s.repo.Update(s.ctx, schema.Patients, "P005", map[string]string{"name": "C"})
	s.True(errors.Is(err, apperrors.UnavailableError))

	s.mem.FailWith(nil)
	s.Len(s.repo.List(s.ctx, schema.Patients), 1, "a failed read is not cached")
}

func (s *RepositorySuite) TestByPatient() {
	for _, pid := range []string{"P001", "P002", "P001"} {
		_, err := s.repo.Create(s.ctx, schema.Interventions, map[string]string{"patient_id": pid})
		s.Require().NoError(err)
		s.clock = s.clock.Add(time.Second)
	}
	s.Len(s.repo.ByPatient(s.ctx, schema.Interventions, "P001"), 2)
	s.Len(s.repo.ByPatient(s.ctx, schema.Interventions, "P001.0"), 2)
	s.Empty(s.repo.ByPatient(s.ctx, schema.Interventions, "P404"))
}

func (s *RepositorySuite) TestRemoteInvalidation() {
	s.repo.List(s.ctx, schema.Patients)
	s.Require().NoError(s.mem.AppendRow(s.ctx, schema.Patients, []string{"P777"}))

	msg := messaging.Message{Type: messaging.EventCacheInvalidated, Payload: []byte(`{"table":"Patients"}`)}
	s.Require().NoError(s.repo.HandleMessage(s.ctx, msg))
	s.Len(s.repo.List(s.ctx, schema.Patients), 1)
}

func TestListUnknownTable(t *testing.T) {
	repo := New(memory.New(), Config{})
	assert.Nil(t, repo.List(context.Background(), "Nope"))
	_, err := repo.Create(context.Background(), "Nope", nil)
	assert.True(t, errors.Is(err, apperrors.BadRequestError))
}

func TestSetupRepairsPrefixHeader(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	patients := schema.MustLookup(schema.Patients)
	require.NoError(t, mem.EnsureTable(ctx, patients.Name, patients.Columns[:5]))

	drift, err := CheckSchema(ctx, mem)
	require.NoError(t, err)
	require.NotEmpty(t, drift)
	assert.Equal(t, schema.Patients, drift[0].Table)
	assert.Equal(t, patients.Columns[5:], drift[0].Missing)

	require.NoError(t, Setup(ctx, mem, logger.Nop()))
	header, err := mem.Header(ctx, patients.Name)
	require.NoError(t, err)
	assert.Equal(t, patients.Columns, header)

	drift, err = CheckSchema(ctx, mem)
	require.NoError(t, err)
	assert.Empty(t, drift)
}

func TestSetupRejectsReorderedHeader(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	require.NoError(t, mem.EnsureTable(ctx, schema.Patients, []string{"name", "patient_id"}))

	err := Setup(ctx, mem, logger.Nop())
	assert.True(t, errors.Is(err, apperrors.ConflictError))
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	require.NoError(t, Setup(ctx, mem, logger.Nop()))
	fixed := time.Date(2026, 3, 15, 9, 30, 0, 0, time.Local)
	repo := New(mem, Config{}, WithClock(func() time.Time { return fixed }))

	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := repo.Create(ctx, schema.Patients, map[string]string{"phone": "0912345678"})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	rows, err := mem.ListRows(ctx, schema.Patients)
	require.NoError(t, err)
	assert.Len(t, rows, 50)
}

func TestCacheRefetchesAfterTTL(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	require.NoError(t, Setup(ctx, mem, logger.Nop()))
	repo := New(mem, Config{TTL: 50 * time.Millisecond, CleanupInterval: time.Minute})

	assert.Empty(t, repo.List(ctx, schema.Patients))
	calls := mem.ListCalls()

	require.NoError(t, mem.AppendRow(ctx, schema.Patients, []string{"P901", "Late"}))
	assert.Empty(t, repo.List(ctx, schema.Patients), "still within TTL")
	assert.Equal(t, calls, mem.ListCalls())

	time.Sleep(80 * time.Millisecond)
	rows := repo.List(ctx, schema.Patients)
	require.Len(t, rows, 1)
	assert.Equal(t, "P901", rows[0]["patient_id"])
	assert.Greater(t, mem.ListCalls(), calls)
}
