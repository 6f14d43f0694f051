// Package journal serves the care-journal tables (interventions, schedules,
// lab results, functional assessments and problems). They share one shape:
// rows hang off a patient, are appended and then patched field by field.
package journal

import (
	"context"
	"fmt"

	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/logger"
)

type Service struct {
	repo repository.RecordRepository
	log  *logger.Logger
}

func NewService(repo repository.RecordRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

func table(name string) (*schema.Table, error) {
	if !schema.Journal(name) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("%q is not a journal table", name), nil)
	}
	return schema.Lookup(name)
}

// Create appends an entry for patientID. patient_name and created_by are
// filled in when the caller leaves them empty.
func (s *Service) Create(ctx context.Context, name, patientID string, fields map[string]string) (model.Record, error) {
	t, err := table(name)
	if err != nil {
		return nil, err
	}
	if patientID == "" {
		patientID = fields["patient_id"]
	}
	patient, ok := s.repo.GetByID(ctx, schema.Patients, patientID)
	if !ok {
		return nil, apperrors.NewNotFound("patient "+patientID, nil)
	}

	row := make(map[string]string, len(fields)+3)
	for k, v := range fields {
		row[k] = v
	}
	row["patient_id"] = patient["patient_id"]
	if row["patient_name"] == "" {
		row["patient_name"] = patient["name"]
	}
	if t.Has("created_by") && row["created_by"] == "" {
		row["created_by"] = identity.Actor(ctx, "")
	}

	id, err := s.repo.Create(ctx, t.Name, row)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s entry: %w", t.Name, err)
	}
	s.log.Info("journal entry created", "table", t.Name, "id", id, "patient_id", patientID)
	return s.Get(ctx, t.Name, id)
}

func (s *Service) Get(ctx context.Context, name, id string) (model.Record, error) {
	t, err := table(name)
	if err != nil {
		return nil, err
	}
	row, ok := s.repo.GetByID(ctx, t.Name, id)
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("%s %s", t.Name, id), nil)
	}
	rec, err := model.Decode(t.Name, row)
	if err != nil {
		return nil, apperrors.NewMalformed(t.Name, err)
	}
	return rec, nil
}

// Update patches an entry. patient_id is not reassignable.
func (s *Service) Update(ctx context.Context, name, id string, fields map[string]string) (model.Record, error) {
	t, err := table(name)
	if err != nil {
		return nil, err
	}
	patch := make(map[string]string, len(fields))
	for k, v := range fields {
		if k != "patient_id" {
			patch[k] = v
		}
	}

	ok, err := s.repo.Update(ctx, t.Name, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s entry: %w", t.Name, err)
	}
	if !ok {
		return nil, apperrors.NewNotFound(fmt.Sprintf("%s %s", t.Name, id), nil)
	}
	return s.Get(ctx, t.Name, id)
}

// List returns every entry of the table in storage order.
func (s *Service) List(ctx context.Context, name string) ([]model.Record, error) {
	t, err := table(name)
	if err != nil {
		return nil, err
	}
	return s.decodeAll(t, s.repo.List(ctx, t.Name)), nil
}

func (s *Service) ByPatient(ctx context.Context, name, patientID string) ([]model.Record, error) {
	t, err := table(name)
	if err != nil {
		return nil, err
	}
	return s.decodeAll(t, s.repo.ByPatient(ctx, t.Name, patientID)), nil
}

func (s *Service) decodeAll(t *schema.Table, rows []store.Row) []model.Record {
	out := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := model.Decode(t.Name, row)
		if err != nil {
			s.log.Warn(err, "skipping undecodable journal entry", "table", t.Name, "id", row[t.IDColumn])
			continue
		}
		out = append(out, rec)
	}
	return out
}
