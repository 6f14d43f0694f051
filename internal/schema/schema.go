// Package schema is the static registry of tables and their ordered columns.
// Column order is the mapping from field name to backing-store column, so
// entries here must only ever be appended to.
package schema

import (
	"fmt"
	"slices"
)

// Table names as they appear in the backing store.
const (
	Patients              = "Patients"
	Reports               = "Reports"
	Education             = "Education"
	Interventions         = "Interventions"
	Schedules             = "Schedules"
	LabResults            = "LabResults"
	FunctionalAssessments = "FunctionalAssessments"
	Problems              = "Problems"
)

// Table describes one entity table.
type Table struct {
	Name    string
	Columns []string
	// IDColumn holds the record identifier and is never rewritten after create.
	IDColumn string
	// IDPrefix starts every generated identifier.
	IDPrefix string
	// SeedColumn, when set, feeds the identifier generator a human meaningful seed.
	SeedColumn string
	// Derived columns are computed on read and never written.
	Derived []string
	// Defaults fill empty columns on create.
	Defaults map[string]string
	// Stamped columns receive the creation time (RFC 3339) when empty.
	Stamped []string
	// Dated columns receive the creation date (YYYY-MM-DD) when empty.
	Dated []string
}

// Index returns the 0-based position of column, or -1.
func (t *Table) Index(column string) int {
	return slices.Index(t.Columns, column)
}

// Has reports whether column belongs to the table.
func (t *Table) Has(column string) bool {
	return t.Index(column) >= 0
}

// IsDerived reports whether column is computed at read time.
func (t *Table) IsDerived(column string) bool {
	return slices.Contains(t.Derived, column)
}

// Writable reports whether a targeted update may touch column.
func (t *Table) Writable(column string) bool {
	return t.Has(column) && column != t.IDColumn && !t.IsDerived(column)
}

var registry = map[string]*Table{
	Patients: {
		Name: Patients,
		Columns: []string{
			"patient_id", "name", "phone", "password", "birth_date", "age", "gender",
			"id_number", "emergency_contact", "emergency_phone",
			"diagnosis", "pathology", "clinical_stage", "pathological_stage",
			"tumor_location", "tumor_size", "histology_type",
			"surgery_type", "surgery_date", "surgery_approach", "resection_extent",
			"lymph_node_dissection", "surgical_margin", "complications",
			"adjuvant_chemo", "adjuvant_radio", "target_therapy", "immunotherapy",
			"treatment_status", "treatment_notes",
			"comorbidities", "smoking_history", "risk_level",
			"ecog_ps", "kps_score",
			"status", "post_op_day", "consent_agreed", "consent_time", "registered_at",
			"notes",
		},
		IDColumn:   "patient_id",
		IDPrefix:   "P",
		SeedColumn: "phone",
		Derived:    []string{"post_op_day"},
		Defaults: map[string]string{
			"status":         "pending_setup",
			"consent_agreed": "Y",
		},
		Stamped: []string{"consent_time", "registered_at"},
	},
	Reports: {
		Name: Reports,
		Columns: []string{
			"report_id", "patient_id", "patient_name", "date", "timestamp",
			"overall_score", "symptoms", "messages_count",
			"conversation", "ai_summary",
			"alert_level", "alert_handled", "handled_by", "handled_time",
			"handling_action", "handling_notes",
		},
		IDColumn: "report_id",
		IDPrefix: "R",
		Defaults: map[string]string{
			"alert_handled":  "N",
			"overall_score":  "0",
			"messages_count": "0",
			"symptoms":       "{}",
		},
		Stamped: []string{"timestamp"},
		Dated:   []string{"date"},
	},
	Education: {
		Name: Education,
		Columns: []string{
			"push_id", "patient_id", "patient_name", "material_id", "material_title",
			"category", "push_type", "pushed_by", "pushed_at",
			"read_at", "status",
		},
		IDColumn: "push_id",
		IDPrefix: "E",
		Defaults: map[string]string{
			"push_type": "manual",
			"status":    "sent",
		},
		Stamped: []string{"pushed_at"},
	},
	Interventions: {
		Name: Interventions,
		Columns: []string{
			"intervention_id", "patient_id", "patient_name", "date", "timestamp",
			"intervention_type", "intervention_category", "method", "duration",
			"problem_addressed", "content", "pre_symptom_score", "post_symptom_score",
			"outcome", "satisfaction", "referral", "referral_status", "follow_up_date",
			"created_by", "notes",
		},
		IDColumn: "intervention_id",
		IDPrefix: "I",
		Stamped:  []string{"timestamp"},
		Dated:    []string{"date"},
	},
	Schedules: {
		Name: Schedules,
		Columns: []string{
			"schedule_id", "patient_id", "patient_name", "schedule_type",
			"scheduled_date", "scheduled_time", "location", "provider",
			"reminder_sent", "status", "result", "notes", "created_by", "created_at",
		},
		IDColumn: "schedule_id",
		IDPrefix: "SCH",
		Defaults: map[string]string{
			"reminder_sent": "N",
			"status":        "scheduled",
		},
		Stamped: []string{"created_at"},
	},
	LabResults: {
		Name: LabResults,
		Columns: []string{
			"lab_id", "patient_id", "patient_name", "test_date", "test_type",
			"cea", "cyfra211", "scc", "nse", "other_markers",
			"wbc", "hgb", "plt", "creatinine", "ast", "alt",
			"imaging_type", "imaging_result", "imaging_comparison",
			"notes", "created_by",
		},
		IDColumn: "lab_id",
		IDPrefix: "LAB",
	},
	FunctionalAssessments: {
		Name: FunctionalAssessments,
		Columns: []string{
			"assessment_id", "patient_id", "patient_name", "assessment_date",
			"ecog_ps", "kps_score",
			"physical_function", "role_function", "emotional_function",
			"cognitive_function", "social_function", "global_qol",
			"notes", "created_by",
		},
		IDColumn: "assessment_id",
		IDPrefix: "FA",
		Dated:    []string{"assessment_date"},
	},
	Problems: {
		Name: Problems,
		Columns: []string{
			"problem_id", "patient_id", "patient_name", "identified_date",
			"problem_category", "problem_description", "severity", "status",
			"goal", "target_date", "resolved_date", "created_by", "notes",
		},
		IDColumn: "problem_id",
		IDPrefix: "PR",
		Defaults: map[string]string{"status": "active"},
		Dated:    []string{"identified_date"},
	},
}

// order is the setup order; Patients first since everything references it.
var order = []string{
	Patients, Reports, Education, Interventions,
	Schedules, LabResults, FunctionalAssessments, Problems,
}

// Lookup returns the table definition for name.
func Lookup(name string) (*Table, error) {
	t, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", name)
	}
	return t, nil
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) *Table {
	t, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return t
}

// All returns every registered table in setup order.
func All() []*Table {
	out := make([]*Table, 0, len(order))
	for _, name := range order {
		out = append(out, registry[name])
	}
	return out
}

// Journal reports whether name is one of the uniform patient journal tables
// (everything except patients, reports and education pushes).
func Journal(name string) bool {
	switch name {
	case Interventions, Schedules, LabResults, FunctionalAssessments, Problems:
		return true
	}
	return false
}
