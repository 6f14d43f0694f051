package model

import (
	"github.com/aicare/casemgr/internal/schema"
)

type PatientStatus string

const (
	PatientStatusPendingSetup PatientStatus = "pending_setup"
	PatientStatusNormal       PatientStatus = "normal"
	PatientStatusActive       PatientStatus = "active"
	PatientStatusDischarged   PatientStatus = "discharged"
	PatientStatusCompleted    PatientStatus = "completed"
	// PatientStatusHospitalized only appears on legacy rows.
	PatientStatusHospitalized PatientStatus = "hospitalized"
)

// Closed reports whether monitoring of the patient has ended.
func (s PatientStatus) Closed() bool {
	return s == PatientStatusDischarged || s == PatientStatusCompleted
}

// Valid reports whether s may be written by a case manager.
func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStatusPendingSetup, PatientStatusNormal, PatientStatusActive,
		PatientStatusDischarged, PatientStatusCompleted:
		return true
	}
	return false
}

type Patient struct {
	PatientID        string `mapstructure:"patient_id" json:"patient_id"`
	Name             string `mapstructure:"name" json:"name"`
	Phone            string `mapstructure:"phone" json:"phone"`
	Password         string `mapstructure:"password" json:"-"`
	BirthDate        string `mapstructure:"birth_date" json:"birth_date,omitempty"`
	Age              *int   `mapstructure:"age" json:"age,omitempty"`
	Gender           string `mapstructure:"gender" json:"gender,omitempty"`
	IDNumber         string `mapstructure:"id_number" json:"id_number,omitempty"`
	EmergencyContact string `mapstructure:"emergency_contact" json:"emergency_contact,omitempty"`
	EmergencyPhone   string `mapstructure:"emergency_phone" json:"emergency_phone,omitempty"`

	Diagnosis         string `mapstructure:"diagnosis" json:"diagnosis,omitempty"`
	Pathology         string `mapstructure:"pathology" json:"pathology,omitempty"`
	ClinicalStage     string `mapstructure:"clinical_stage" json:"clinical_stage,omitempty"`
	PathologicalStage string `mapstructure:"pathological_stage" json:"pathological_stage,omitempty"`
	TumorLocation     string `mapstructure:"tumor_location" json:"tumor_location,omitempty"`
	TumorSize         string `mapstructure:"tumor_size" json:"tumor_size,omitempty"`
	HistologyType     string `mapstructure:"histology_type" json:"histology_type,omitempty"`

	SurgeryType         string `mapstructure:"surgery_type" json:"surgery_type,omitempty"`
	SurgeryDate         string `mapstructure:"surgery_date" json:"surgery_date,omitempty"`
	SurgeryApproach     string `mapstructure:"surgery_approach" json:"surgery_approach,omitempty"`
	ResectionExtent     string `mapstructure:"resection_extent" json:"resection_extent,omitempty"`
	LymphNodeDissection string `mapstructure:"lymph_node_dissection" json:"lymph_node_dissection,omitempty"`
	SurgicalMargin      string `mapstructure:"surgical_margin" json:"surgical_margin,omitempty"`
	Complications       string `mapstructure:"complications" json:"complications,omitempty"`

	AdjuvantChemo   string `mapstructure:"adjuvant_chemo" json:"adjuvant_chemo,omitempty"`
	AdjuvantRadio   string `mapstructure:"adjuvant_radio" json:"adjuvant_radio,omitempty"`
	TargetTherapy   string `mapstructure:"target_therapy" json:"target_therapy,omitempty"`
	Immunotherapy   string `mapstructure:"immunotherapy" json:"immunotherapy,omitempty"`
	TreatmentStatus string `mapstructure:"treatment_status" json:"treatment_status,omitempty"`
	TreatmentNotes  string `mapstructure:"treatment_notes" json:"treatment_notes,omitempty"`

	Comorbidities  string `mapstructure:"comorbidities" json:"comorbidities,omitempty"`
	SmokingHistory string `mapstructure:"smoking_history" json:"smoking_history,omitempty"`
	RiskLevel      string `mapstructure:"risk_level" json:"risk_level,omitempty"`
	EcogPS         string `mapstructure:"ecog_ps" json:"ecog_ps,omitempty"`
	KPSScore       string `mapstructure:"kps_score" json:"kps_score,omitempty"`

	Status        PatientStatus `mapstructure:"status" json:"status"`
	PostOpDay     int           `mapstructure:"post_op_day" json:"post_op_day"`
	ConsentAgreed string        `mapstructure:"consent_agreed" json:"consent_agreed"`
	ConsentTime   string        `mapstructure:"consent_time" json:"consent_time,omitempty"`
	RegisteredAt  string        `mapstructure:"registered_at" json:"registered_at,omitempty"`
	Notes         string        `mapstructure:"notes" json:"notes,omitempty"`
}

func (*Patient) TableName() string { return schema.Patients }

type CreatePatientRequest struct {
	Name           string `json:"name" binding:"required"`
	Phone          string `json:"phone" binding:"required,twphone"`
	Password       string `json:"password"`
	BirthDate      string `json:"birth_date" binding:"omitempty,datefield"`
	Age            *int   `json:"age" binding:"omitempty,min=0,max=130"`
	Gender         string `json:"gender"`
	EmergencyPhone string `json:"emergency_phone" binding:"omitempty,twphone"`
	Diagnosis      string `json:"diagnosis"`
	SurgeryType    string `json:"surgery_type"`
	SurgeryDate    string `json:"surgery_date" binding:"omitempty,datefield"`
	Notes          string `json:"notes"`
}

// Record converts the request into a record ready for create.
func (r *CreatePatientRequest) Record() *Patient {
	return &Patient{
		Name:           r.Name,
		Phone:          r.Phone,
		Password:       r.Password,
		BirthDate:      r.BirthDate,
		Age:            r.Age,
		Gender:         r.Gender,
		EmergencyPhone: r.EmergencyPhone,
		Diagnosis:      r.Diagnosis,
		SurgeryType:    r.SurgeryType,
		SurgeryDate:    r.SurgeryDate,
		Notes:          r.Notes,
	}
}

// UpdatePatientRequest is a partial update keyed by column name. Unknown
// columns are ignored by the repository.
type UpdatePatientRequest struct {
	Fields map[string]string `json:"fields" binding:"required,min=1"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}
