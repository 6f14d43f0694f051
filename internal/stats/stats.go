// Package stats computes the dashboard aggregates. Everything is recomputed
// from repository snapshots on each call; nothing here is cached or stored.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/normalize"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/schema"
	"github.com/aicare/casemgr/internal/store"
	"github.com/aicare/casemgr/pkg/logger"
)

// AdherenceTarget is the reporting rate a patient is expected to reach.
const AdherenceTarget = 0.75

type Dashboard struct {
	TotalPatients  int     `json:"total_patients"`
	ActivePatients int     `json:"active_patients"`
	TodayReports   int     `json:"today_reports"`
	PendingAlerts  int     `json:"pending_alerts"`
	RedAlerts      int     `json:"red_alerts"`
	YellowAlerts   int     `json:"yellow_alerts"`
	Compliance     float64 `json:"compliance"`
}

type Adherence struct {
	PatientID  string  `json:"patient_id"`
	Name       string  `json:"name"`
	PostOpDay  int     `json:"post_op_day"`
	ReportDays int     `json:"report_days"`
	Rate       float64 `json:"rate"`
	OnTarget   bool    `json:"on_target"`
}

type Workload struct {
	Manager       string `json:"manager"`
	HandledAlerts int    `json:"handled_alerts"`
	Interventions int    `json:"interventions"`
	Total         int    `json:"total"`
}

// Active excludes patients whose monitoring has closed.
func Active(p *model.Patient) bool {
	return !p.Status.Closed()
}

// ComputeDashboard summarizes one snapshot. Compliance is the number of
// reports from active patients over the days they have been expected to
// report, capped at 1. The denominator never drops below 1.
func ComputeDashboard(patients []*model.Patient, reports []*model.Report, today time.Time) Dashboard {
	d := Dashboard{TotalPatients: len(patients)}
	day := today.Format(normalize.DateLayout)

	active := make(map[string]bool, len(patients))
	expected := 0
	for _, p := range patients {
		if !Active(p) {
			continue
		}
		d.ActivePatients++
		active[p.PatientID] = true
		if p.PostOpDay > 0 {
			expected += p.PostOpDay
		}
	}

	submitted := 0
	for _, r := range reports {
		if r.Date == day {
			d.TodayReports++
		}
		if r.Pending() {
			d.PendingAlerts++
			switch r.AlertLevel {
			case model.AlertRed:
				d.RedAlerts++
			case model.AlertYellow:
				d.YellowAlerts++
			}
		}
		if active[r.PatientID] {
			submitted++
		}
	}

	d.Compliance = ratio(submitted, expected)
	return d
}

// ComputeAdherence rates each patient past surgery by distinct report days
// over post-operative days. Patients on or before their surgery day are
// skipped. The result is ordered lowest rate first.
func ComputeAdherence(patients []*model.Patient, reports []*model.Report) []Adherence {
	days := make(map[string]map[string]struct{})
	for _, r := range reports {
		if r.Date == "" {
			continue
		}
		if days[r.PatientID] == nil {
			days[r.PatientID] = make(map[string]struct{})
		}
		days[r.PatientID][r.Date] = struct{}{}
	}

	out := make([]Adherence, 0, len(patients))
	for _, p := range patients {
		if p.PostOpDay <= 0 {
			continue
		}
		n := len(days[p.PatientID])
		rate := ratio(n, p.PostOpDay)
		out = append(out, Adherence{
			PatientID:  p.PatientID,
			Name:       p.Name,
			PostOpDay:  p.PostOpDay,
			ReportDays: n,
			Rate:       rate,
			OnTarget:   rate >= AdherenceTarget,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rate < out[j].Rate })
	return out
}

// ComputeWorkload counts handled alerts by handler and interventions by
// author, busiest manager first.
func ComputeWorkload(reports []*model.Report, interventions []*model.Intervention) []Workload {
	byManager := map[string]*Workload{}
	get := func(name string) *Workload {
		w, ok := byManager[name]
		if !ok {
			w = &Workload{Manager: name}
			byManager[name] = w
		}
		return w
	}
	for _, r := range reports {
		if r.HandledBy != "" && r.IsHandled() {
			get(r.HandledBy).HandledAlerts++
		}
	}
	for _, i := range interventions {
		if i.CreatedBy != "" {
			get(i.CreatedBy).Interventions++
		}
	}

	out := make([]Workload, 0, len(byManager))
	for _, w := range byManager {
		w.Total = w.HandledAlerts + w.Interventions
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Manager < out[j].Manager
	})
	return out
}

func ratio(n, d int) float64 {
	if d < 1 {
		d = 1
	}
	r := float64(n) / float64(d)
	if r > 1 {
		return 1
	}
	return r
}

// Service loads snapshots from the repository and runs the computations.
type Service struct {
	repo repository.RecordRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo repository.RecordRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

func (s *Service) Dashboard(ctx context.Context) Dashboard {
	return ComputeDashboard(s.patients(ctx), s.reports(ctx), s.now())
}

func (s *Service) Adherence(ctx context.Context) []Adherence {
	return ComputeAdherence(s.patients(ctx), s.reports(ctx))
}

func (s *Service) Workload(ctx context.Context) []Workload {
	var interventions []*model.Intervention
	for _, row := range s.repo.List(ctx, schema.Interventions) {
		var i model.Intervention
		if s.decode(row, &i) {
			interventions = append(interventions, &i)
		}
	}
	return ComputeWorkload(s.reports(ctx), interventions)
}

func (s *Service) patients(ctx context.Context) []*model.Patient {
	var out []*model.Patient
	for _, row := range s.repo.List(ctx, schema.Patients) {
		var p model.Patient
		if s.decode(row, &p) {
			out = append(out, &p)
		}
	}
	return out
}

func (s *Service) reports(ctx context.Context) []*model.Report {
	var out []*model.Report
	for _, row := range s.repo.List(ctx, schema.Reports) {
		var r model.Report
		if s.decode(row, &r) {
			out = append(out, &r)
		}
	}
	return out
}

func (s *Service) decode(row store.Row, rec model.Record) bool {
	if err := model.FromRow(row, rec); err != nil {
		s.log.Warn(err, "skipping undecodable row", "table", rec.TableName())
		return false
	}
	return true
}
