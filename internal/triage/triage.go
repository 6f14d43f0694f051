// Package triage classifies symptom reports and moves actionable alerts
// through their one-way pending -> handled lifecycle.
package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/normalize"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/logger"
	"github.com/aicare/casemgr/pkg/messaging"
	"github.com/aicare/casemgr/pkg/metrics"
)

const (
	RedThreshold    = 7.0
	YellowThreshold = 4.0
	MaxScore        = 10.0
)

// ErrNotActionable is returned when handling a green report.
var ErrNotActionable = apperrors.NewConflict("green reports have no alert to handle", nil)

// ErrNotHandled is returned when adding notes to an alert still pending.
var ErrNotHandled = apperrors.NewConflict("alert has not been handled yet", nil)

// Classify maps an overall score to its alert level.
func Classify(score float64) model.AlertLevel {
	switch {
	case score >= RedThreshold:
		return model.AlertRed
	case score >= YellowThreshold:
		return model.AlertYellow
	default:
		return model.AlertGreen
	}
}

// Notifier is told about every red alert. Failures are logged, never fatal.
type Notifier interface {
	NotifyRedAlert(ctx context.Context, r *model.Report) error
}

type Submission struct {
	PatientID     string
	OverallScore  float64
	Symptoms      map[string]interface{}
	MessagesCount int
	Conversation  string
	AISummary     string
}

type Engine struct {
	repo     repository.RecordRepository
	notifier Notifier
	pub      messaging.Publisher
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

func WithPublisher(p messaging.Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(repo repository.RecordRepository, opts ...Option) *Engine {
	e := &Engine{
		repo: repo,
		pub:  messaging.Nop{},
		log:  logger.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit stores a new report with its level fixed from the score.
func (e *Engine) Submit(ctx context.Context, s Submission) (*model.Report, error) {
	if s.OverallScore < 0 || s.OverallScore > MaxScore {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("overall_score must be between 0 and %g", MaxScore), nil)
	}
	patient, ok := e.repo.GetByID(ctx, schema.Patients, s.PatientID)
	if !ok {
		return nil, apperrors.NewNotFound("patient "+s.PatientID, nil)
	}
	if s.Symptoms == nil {
		s.Symptoms = map[string]interface{}{}
	}

	level := Classify(s.OverallScore)
	rec := &model.Report{
		PatientID:     patient["patient_id"],
		PatientName:   patient["name"],
		OverallScore:  s.OverallScore,
		Symptoms:      s.Symptoms,
		MessagesCount: s.MessagesCount,
		Conversation:  s.Conversation,
		AISummary:     s.AISummary,
		AlertLevel:    level,
		AlertHandled:  model.NotHandled,
	}
	row, err := model.ToRow(rec)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	id, err := e.repo.Create(ctx, schema.Reports, row)
	if err != nil {
		return nil, err
	}

	saved, err := e.Get(ctx, id)
	if err != nil {
		// the write went through; the read path is degraded
		rec.ReportID = id
		saved = rec
	}

	if level.Actionable() {
		e.metrics.AlertRaised(string(level))
	}
	if level == model.AlertRed {
		e.raise(ctx, saved)
	}
	return saved, nil
}

func (e *Engine) raise(ctx context.Context, r *model.Report) {
	if e.notifier != nil {
		if err := e.notifier.NotifyRedAlert(ctx, r); err != nil {
			e.log.Warn(err, "red alert notification failed", "report_id", r.ReportID)
		}
	}
	if err := e.pub.Publish(ctx, messaging.EventAlertRaised, r); err != nil {
		e.log.Warn(err, "failed to publish alert", "report_id", r.ReportID)
	}
}

// Get returns one report.
func (e *Engine) Get(ctx context.Context, reportID string) (*model.Report, error) {
	row, ok := e.repo.GetByID(ctx, schema.Reports, reportID)
	if !ok {
		return nil, apperrors.NewNotFound("report "+reportID, nil)
	}
	return decode(row)
}

// Handle marks an actionable alert as handled by handler. Handling an alert
// that is already handled succeeds without touching it, so of several
// concurrent callers exactly one stamps the report.
func (e *Engine) Handle(ctx context.Context, reportID, handler, action, notes string) (*model.Report, error) {
	handler = strings.TrimSpace(handler)
	if handler == "" {
		handler = identity.Actor(ctx, "")
	}
	if handler == "" {
		return nil, apperrors.NewBadRequest("handler is required", nil)
	}

	r, err := e.Get(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !r.AlertLevel.Actionable() {
		return nil, ErrNotActionable
	}
	if r.IsHandled() {
		return r, nil
	}

	fields := map[string]string{
		"alert_handled": model.Handled,
		"handled_by":    handler,
		"handled_time":  e.now().Format(time.RFC3339),
	}
	if action != "" {
		fields["handling_action"] = action
	}
	if notes != "" {
		fields["handling_notes"] = notes
	}
	stamped := false
	ok, err := e.repo.UpdateWith(ctx, schema.Reports, r.ReportID, func(current store.Row) (map[string]string, error) {
		if current["alert_handled"] == model.Handled {
			return nil, nil
		}
		stamped = true
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound("report "+reportID, nil)
	}

	updated, err := e.Get(ctx, r.ReportID)
	if err != nil {
		return nil, err
	}
	if !stamped {
		return updated, nil
	}

	e.metrics.AlertHandled(string(r.AlertLevel))
	e.log.Info("alert handled", "report_id", r.ReportID, "level", string(r.AlertLevel), "handled_by", handler)
	if err := e.pub.Publish(ctx, messaging.EventAlertHandled, updated); err != nil {
		e.log.Warn(err, "failed to publish alert handling", "report_id", r.ReportID)
	}
	return updated, nil
}

// AddNote appends a supplementary note to a handled alert, the only change
// a handled report still accepts.
func (e *Engine) AddNote(ctx context.Context, reportID, note string) (*model.Report, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, apperrors.NewBadRequest("note is required", nil)
	}
	entry := fmt.Sprintf("[%s %s] %s", e.now().Format("2006-01-02 15:04"), identity.Actor(ctx, "unknown"), note)

	ok, err := e.repo.UpdateWith(ctx, schema.Reports, reportID, func(current store.Row) (map[string]string, error) {
		if current["alert_handled"] != model.Handled {
			return nil, ErrNotHandled
		}
		notes := entry
		if prev := current["handling_notes"]; prev != "" {
			notes = prev + "\n" + entry
		}
		return map[string]string{"handling_notes": notes}, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNotFound("report "+reportID, nil)
	}
	return e.Get(ctx, reportID)
}

// PendingAlerts is the case-manager queue: actionable, unhandled reports,
// red before yellow and oldest first within a level.
func (e *Engine) PendingAlerts(ctx context.Context) []*model.Report {
	rows := e.repo.Filter(ctx, schema.Reports, func(row store.Row) bool {
		return model.AlertLevel(row["alert_level"]).Actionable() && row["alert_handled"] != model.Handled
	})
	out := e.decodeAll(rows)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AlertLevel != out[j].AlertLevel {
			return out[i].AlertLevel == model.AlertRed
		}
		return out[i].Timestamp < out[j].Timestamp
	})

	counts := map[model.AlertLevel]int{model.AlertRed: 0, model.AlertYellow: 0}
	for _, r := range out {
		counts[r.AlertLevel]++
	}
	for level, n := range counts {
		e.metrics.SetPending(string(level), n)
	}
	return out
}

func (e *Engine) PatientReports(ctx context.Context, patientID string) []*model.Report {
	return e.decodeAll(e.repo.ByPatient(ctx, schema.Reports, patientID))
}

func (e *Engine) TodayReports(ctx context.Context) []*model.Report {
	return e.ReportsOn(ctx, e.now().Format(normalize.DateLayout))
}

// ReportsOn returns every report filed on date (YYYY-MM-DD).
func (e *Engine) ReportsOn(ctx context.Context, date string) []*model.Report {
	return e.decodeAll(e.repo.Filter(ctx, schema.Reports, func(row store.Row) bool {
		return row["date"] == date
	}))
}

// ReportedToday reports whether the patient already checked in today.
func (e *Engine) ReportedToday(ctx context.Context, patientID string) bool {
	today := e.now().Format(normalize.DateLayout)
	for _, r := range e.PatientReports(ctx, patientID) {
		if r.Date == today {
			return true
		}
	}
	return false
}

func (e *Engine) decodeAll(rows []store.Row) []*model.Report {
	out := make([]*model.Report, 0, len(rows))
	for _, row := range rows {
		r, err := decode(row)
		if err != nil {
			e.log.Warn(err, "skipping undecodable report", "report_id", row["report_id"])
			continue
		}
		out = append(out, r)
	}
	return out
}

func decode(row store.Row) (*model.Report, error) {
	var r model.Report
	if err := model.FromRow(row, &r); err != nil {
		return nil, apperrors.NewMalformed("report", err)
	}
	return &r, nil
}
