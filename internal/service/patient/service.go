package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/normalize"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/logger"
	"github.com/aicare/casemgr/pkg/security"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error)
	GetPatient(ctx context.Context, id string) (*model.Patient, error)
	GetPatientByPhone(ctx context.Context, phone string) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id string, fields map[string]string) (*model.Patient, error)
	ListPatients(ctx context.Context, filters *model.PatientFilters) []*model.Patient
	Authenticate(ctx context.Context, phone, password string) (*model.Patient, error)
}

type Config struct {
	// HashPasswords stores new and changed passwords as bcrypt hashes.
	// Legacy plaintext rows keep working either way.
	HashPasswords bool
}

type Service struct {
	repo   repository.RecordRepository
	hasher security.PasswordHasher
	cfg    Config
	log    *logger.Logger
}

var _ PatientService = (*Service)(nil)

func NewService(repo repository.RecordRepository, hasher security.PasswordHasher, cfg Config, log *logger.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, cfg: cfg, log: log}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.NewBadRequest("name is required", nil)
	}
	rec := req.Record()
	rec.Phone = normalize.Phone(rec.Phone)
	if rec.Phone == "" {
		return nil, apperrors.NewBadRequest("phone is required", nil)
	}
	if existing, err := s.GetPatientByPhone(ctx, rec.Phone); err == nil {
		return nil, apperrors.NewConflict(fmt.Sprintf("phone already registered to %s", existing.PatientID), nil)
	}

	row, err := model.ToRow(rec)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if err := s.protectPassword(row); err != nil {
		return nil, err
	}

	id, err := s.repo.Create(ctx, schema.Patients, row)
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	s.log.Info("patient registered", "patient_id", id)
	return s.GetPatient(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*model.Patient, error) {
	row, ok := s.repo.GetByID(ctx, schema.Patients, id)
	if !ok {
		return nil, apperrors.NewNotFound("patient "+id, nil)
	}
	return decode(row)
}

// GetPatientByPhone tolerates a missing leading zero on either side.
func (s *Service) GetPatientByPhone(ctx context.Context, phone string) (*model.Patient, error) {
	rows := s.repo.Filter(ctx, schema.Patients, func(row store.Row) bool {
		return normalize.PhonesEqual(row["phone"], phone)
	})
	if len(rows) == 0 {
		return nil, apperrors.NewNotFound("patient with phone "+phone, nil)
	}
	return decode(rows[0])
}

// UpdatePatient applies a partial update. Fields outside the schema are
// ignored; a status outside the known lifecycle is rejected.
func (s *Service) UpdatePatient(ctx context.Context, id string, fields map[string]string) (*model.Patient, error) {
	patch := make(map[string]string, len(fields))
	for k, v := range fields {
		patch[k] = v
	}
	if status, ok := patch["status"]; ok && !model.PatientStatus(status).Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("invalid status %q", status), nil)
	}
	if phone, ok := patch["phone"]; ok {
		patch["phone"] = normalize.Phone(phone)
	}
	if err := s.protectPassword(patch); err != nil {
		return nil, err
	}

	ok, err := s.repo.Update(ctx, schema.Patients, id, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	if !ok {
		return nil, apperrors.NewNotFound("patient "+id+" (it may have been modified concurrently)", nil)
	}
	return s.GetPatient(ctx, id)
}

// ListPatients returns patients in storage order, filtered.
func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) []*model.Patient {
	if filters == nil {
		filters = &model.PatientFilters{}
	}
	term := strings.ToLower(strings.TrimSpace(filters.SearchTerm))

	var out []*model.Patient
	for _, row := range s.repo.List(ctx, schema.Patients) {
		p, err := decode(row)
		if err != nil {
			s.log.Warn(err, "skipping undecodable patient", "patient_id", row["patient_id"])
			continue
		}
		if filters.Status != "" && p.Status != filters.Status {
			continue
		}
		if filters.ActiveOnly && p.Status.Closed() {
			continue
		}
		if term != "" && !matches(p, term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p *model.Patient, term string) bool {
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.PatientID), term) ||
		normalize.PhonesEqual(p.Phone, term)
}

// Authenticate finds the patient by phone and checks the password.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (*model.Patient, error) {
	p, err := s.GetPatientByPhone(ctx, phone)
	if err != nil {
		return nil, apperrors.Unauthorized(nil)
	}
	if !security.Verify(s.hasher, p.Password, normalize.Password(password)) {
		return nil, apperrors.Unauthorized(nil)
	}
	return p, nil
}

func (s *Service) protectPassword(row map[string]string) error {
	pwd, ok := row["password"]
	if !ok || pwd == "" {
		return nil
	}
	pwd = normalize.Password(pwd)
	if !s.cfg.HashPasswords || security.IsHash(pwd) {
		row["password"] = pwd
		return nil
	}
	hash, err := s.hasher.Hash(pwd)
	if err != nil {
		return apperrors.NewBadRequest("unusable password", err)
	}
	row["password"] = hash
	return nil
}

func decode(row store.Row) (*model.Patient, error) {
	var p model.Patient
	if err := model.FromRow(row, &p); err != nil {
		return nil, apperrors.NewMalformed("patient", err)
	}
	return &p, nil
}
