package education

import (
	"context"
	"fmt"
	"sort"
	"time"

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
	now  func() time.Time
}

func NewService(repo repository.RecordRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// Push records that a material was sent to a patient. The patient must exist;
// the pusher is the caller in ctx.
func (s *Service) Push(ctx context.Context, req *model.PushEducationRequest) (*model.EducationPush, error) {
	patient, ok := s.repo.GetByID(ctx, schema.Patients, req.PatientID)
	if !ok {
		return nil, apperrors.NewNotFound("patient "+req.PatientID, nil)
	}

	title := req.MaterialTitle
	if title == "" {
		title = req.MaterialID
	}
	rec := &model.EducationPush{
		PatientID:     patient["patient_id"],
		PatientName:   patient["name"],
		MaterialID:    req.MaterialID,
		MaterialTitle: title,
		Category:      req.Category,
		PushType:      req.PushType,
		PushedBy:      identity.Actor(ctx, "system"),
		Status:        model.EducationSent,
	}
	row, err := model.ToRow(rec)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	id, err := s.repo.Create(ctx, schema.Education, row)
	if err != nil {
		return nil, fmt.Errorf("failed to push education: %w", err)
	}
	s.log.Info("education pushed", "push_id", id, "patient_id", rec.PatientID, "material_id", rec.MaterialID)
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id string) (*model.EducationPush, error) {
	row, ok := s.repo.GetByID(ctx, schema.Education, id)
	if !ok {
		return nil, apperrors.NewNotFound("education push "+id, nil)
	}
	return decode(row)
}

// MarkRead stamps read_at and flips the status. Marking an already read push
// again leaves the first read time in place.
func (s *Service) MarkRead(ctx context.Context, id string) (*model.EducationPush, error) {
	push, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if push.Status == model.EducationRead {
		return push, nil
	}

	ok, err := s.repo.Update(ctx, schema.Education, id, map[string]string{
		"read_at": s.now().Format(time.RFC3339),
		"status":  string(model.EducationRead),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark education read: %w", err)
	}
	if !ok {
		return nil, apperrors.NewNotFound("education push "+id, nil)
	}
	return s.Get(ctx, id)
}

// ForPatient returns a patient's pushes, newest first.
func (s *Service) ForPatient(ctx context.Context, patientID string) []*model.EducationPush {
	return s.collect(s.repo.ByPatient(ctx, schema.Education, patientID))
}

// List returns every push, newest first.
func (s *Service) List(ctx context.Context) []*model.EducationPush {
	return s.collect(s.repo.List(ctx, schema.Education))
}

func (s *Service) collect(rows []store.Row) []*model.EducationPush {
	out := make([]*model.EducationPush, 0, len(rows))
	for _, row := range rows {
		p, err := decode(row)
		if err != nil {
			s.log.Warn(err, "skipping undecodable education push", "push_id", row["push_id"])
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PushedAt > out[j].PushedAt })
	return out
}

func decode(row store.Row) (*model.EducationPush, error) {
	var p model.EducationPush
	if err := model.FromRow(row, &p); err != nil {
		return nil, apperrors.NewMalformed("education", err)
	}
	return &p, nil
}
