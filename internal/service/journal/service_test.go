package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store/memory"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/logger"
)

func setup(t *testing.T) (*Service, context.Context) {
	t.Helper()
	ctx := identity.WithUser(context.Background(), identity.User{ID: "nurse01"})
	mem := memory.New()
	require.NoError(t, repository.Setup(ctx, mem, logger.Nop()))
	repo := repository.New(mem, repository.Config{})
	_, err := repo.Create(ctx, schema.Patients, map[string]string{"patient_id": "P001", "name": "Wang", "phone": "0912345678"})
	require.NoError(t, err)
	return NewService(repo, logger.Nop()), ctx
}

func TestInterventionLifecycle(t *testing.T) {
	svc, ctx := setup(t)

	rec, err := svc.Create(ctx, schema.Interventions, "P001", map[string]string{
		"intervention_type": "phone",
		"duration":          "15",
		"content":           "breathing coaching",
	})
	require.NoError(t, err)
	iv, ok := rec.(*model.Intervention)
	require.True(t, ok)
	assert.Equal(t, "Wang", iv.PatientName)
	assert.Equal(t, "nurse01", iv.CreatedBy)
	require.NotNil(t, iv.Duration)
	assert.Equal(t, 15, *iv.Duration)
	assert.NotEmpty(t, iv.Date)

	rec, err = svc.Update(ctx, schema.Interventions, iv.InterventionID, map[string]string{
		"outcome":    "improved",
		"patient_id": "P999",
	})
	require.NoError(t, err)
	iv = rec.(*model.Intervention)
	assert.Equal(t, "improved", iv.Outcome)
	assert.Equal(t, "P001", iv.PatientID)

	all, err := svc.List(ctx, schema.Interventions)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	mine, err := svc.ByPatient(ctx, schema.Interventions, "P001")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestProblemDefaults(t *testing.T) {
	svc, ctx := setup(t)

	rec, err := svc.Create(ctx, schema.Problems, "", map[string]string{
		"patient_id":          "P001",
		"problem_category":    "pain",
		"problem_description": "incision pain at night",
	})
	require.NoError(t, err)
	p := rec.(*model.Problem)
	assert.Equal(t, "active", p.Status)
	assert.NotEmpty(t, p.IdentifiedDate)
}

func TestJournalErrors(t *testing.T) {
	svc, ctx := setup(t)

	_, err := svc.Create(ctx, schema.Reports, "P001", map[string]string{"x": "y"})
	assert.True(t, errors.Is(err, apperrors.BadRequestError))

	_, err = svc.List(ctx, schema.Patients)
	assert.True(t, errors.Is(err, apperrors.BadRequestError))

	_, err = svc.Create(ctx, schema.Schedules, "P404", map[string]string{"schedule_type": "clinic"})
	assert.True(t, errors.Is(err, apperrors.NotFoundError))

	_, err = svc.Update(ctx, schema.Schedules, "SCH404", map[string]string{"status": "done"})
	assert.True(t, errors.Is(err, apperrors.NotFoundError))
}
