package model

import (
	"github.com/aicare/casemgr/internal/schema"
)

type EducationStatus string

const (
	EducationSent EducationStatus = "sent"
	EducationRead EducationStatus = "read"
)

type EducationPush struct {
	PushID        string          `mapstructure:"push_id" json:"push_id"`
	PatientID     string          `mapstructure:"patient_id" json:"patient_id"`
	PatientName   string          `mapstructure:"patient_name" json:"patient_name"`
	MaterialID    string          `mapstructure:"material_id" json:"material_id"`
	MaterialTitle string          `mapstructure:"material_title" json:"material_title"`
	Category      string          `mapstructure:"category" json:"category,omitempty"`
	PushType      string          `mapstructure:"push_type" json:"push_type"`
	PushedBy      string          `mapstructure:"pushed_by" json:"pushed_by"`
	PushedAt      string          `mapstructure:"pushed_at" json:"pushed_at"`
	ReadAt        string          `mapstructure:"read_at" json:"read_at,omitempty"`
	Status        EducationStatus `mapstructure:"status" json:"status"`
}

func (*EducationPush) TableName() string { return schema.Education }

type PushEducationRequest struct {
	PatientID     string `json:"patient_id" binding:"required"`
	MaterialID    string `json:"material_id" binding:"required"`
	MaterialTitle string `json:"material_title"`
	Category      string `json:"category"`
	PushType      string `json:"push_type" binding:"omitempty,oneof=manual auto"`
}

type Intervention struct {
	InterventionID       string `mapstructure:"intervention_id" json:"intervention_id"`
	PatientID            string `mapstructure:"patient_id" json:"patient_id"`
	PatientName          string `mapstructure:"patient_name" json:"patient_name"`
	Date                 string `mapstructure:"date" json:"date"`
	Timestamp            string `mapstructure:"timestamp" json:"timestamp"`
	InterventionType     string `mapstructure:"intervention_type" json:"intervention_type"`
	InterventionCategory string `mapstructure:"intervention_category" json:"intervention_category,omitempty"`
	Method               string `mapstructure:"method" json:"method,omitempty"`
	Duration             *int   `mapstructure:"duration" json:"duration,omitempty"`
	ProblemAddressed     string `mapstructure:"problem_addressed" json:"problem_addressed,omitempty"`
	Content              string `mapstructure:"content" json:"content,omitempty"`
	PreSymptomScore      *int   `mapstructure:"pre_symptom_score" json:"pre_symptom_score,omitempty"`
	PostSymptomScore     *int   `mapstructure:"post_symptom_score" json:"post_symptom_score,omitempty"`
	Outcome              string `mapstructure:"outcome" json:"outcome,omitempty"`
	Satisfaction         *int   `mapstructure:"satisfaction" json:"satisfaction,omitempty"`
	Referral             string `mapstructure:"referral" json:"referral,omitempty"`
	ReferralStatus       string `mapstructure:"referral_status" json:"referral_status,omitempty"`
	FollowUpDate         string `mapstructure:"follow_up_date" json:"follow_up_date,omitempty"`
	CreatedBy            string `mapstructure:"created_by" json:"created_by"`
	Notes                string `mapstructure:"notes" json:"notes,omitempty"`
}

func (*Intervention) TableName() string { return schema.Interventions }

type Schedule struct {
	ScheduleID    string `mapstructure:"schedule_id" json:"schedule_id"`
	PatientID     string `mapstructure:"patient_id" json:"patient_id"`
	PatientName   string `mapstructure:"patient_name" json:"patient_name"`
	ScheduleType  string `mapstructure:"schedule_type" json:"schedule_type"`
	ScheduledDate string `mapstructure:"scheduled_date" json:"scheduled_date"`
	ScheduledTime string `mapstructure:"scheduled_time" json:"scheduled_time,omitempty"`
	Location      string `mapstructure:"location" json:"location,omitempty"`
	Provider      string `mapstructure:"provider" json:"provider,omitempty"`
	ReminderSent  string `mapstructure:"reminder_sent" json:"reminder_sent"`
	Status        string `mapstructure:"status" json:"status"`
	Result        string `mapstructure:"result" json:"result,omitempty"`
	Notes         string `mapstructure:"notes" json:"notes,omitempty"`
	CreatedBy     string `mapstructure:"created_by" json:"created_by"`
	CreatedAt     string `mapstructure:"created_at" json:"created_at"`
}

func (*Schedule) TableName() string { return schema.Schedules }

type LabResult struct {
	LabID             string   `mapstructure:"lab_id" json:"lab_id"`
	PatientID         string   `mapstructure:"patient_id" json:"patient_id"`
	PatientName       string   `mapstructure:"patient_name" json:"patient_name"`
	TestDate          string   `mapstructure:"test_date" json:"test_date"`
	TestType          string   `mapstructure:"test_type" json:"test_type"`
	CEA               *float64 `mapstructure:"cea" json:"cea,omitempty"`
	Cyfra211          *float64 `mapstructure:"cyfra211" json:"cyfra211,omitempty"`
	SCC               *float64 `mapstructure:"scc" json:"scc,omitempty"`
	NSE               *float64 `mapstructure:"nse" json:"nse,omitempty"`
	OtherMarkers      string   `mapstructure:"other_markers" json:"other_markers,omitempty"`
	WBC               *float64 `mapstructure:"wbc" json:"wbc,omitempty"`
	HGB               *float64 `mapstructure:"hgb" json:"hgb,omitempty"`
	PLT               *float64 `mapstructure:"plt" json:"plt,omitempty"`
	Creatinine        *float64 `mapstructure:"creatinine" json:"creatinine,omitempty"`
	AST               *float64 `mapstructure:"ast" json:"ast,omitempty"`
	ALT               *float64 `mapstructure:"alt" json:"alt,omitempty"`
	ImagingType       string   `mapstructure:"imaging_type" json:"imaging_type,omitempty"`
	ImagingResult     string   `mapstructure:"imaging_result" json:"imaging_result,omitempty"`
	ImagingComparison string   `mapstructure:"imaging_comparison" json:"imaging_comparison,omitempty"`
	Notes             string   `mapstructure:"notes" json:"notes,omitempty"`
	CreatedBy         string   `mapstructure:"created_by" json:"created_by"`
}

func (*LabResult) TableName() string { return schema.LabResults }

type FunctionalAssessment struct {
	AssessmentID      string `mapstructure:"assessment_id" json:"assessment_id"`
	PatientID         string `mapstructure:"patient_id" json:"patient_id"`
	PatientName       string `mapstructure:"patient_name" json:"patient_name"`
	AssessmentDate    string `mapstructure:"assessment_date" json:"assessment_date"`
	EcogPS            *int   `mapstructure:"ecog_ps" json:"ecog_ps,omitempty"`
	KPSScore          *int   `mapstructure:"kps_score" json:"kps_score,omitempty"`
	PhysicalFunction  *int   `mapstructure:"physical_function" json:"physical_function,omitempty"`
	RoleFunction      *int   `mapstructure:"role_function" json:"role_function,omitempty"`
	EmotionalFunction *int   `mapstructure:"emotional_function" json:"emotional_function,omitempty"`
	CognitiveFunction *int   `mapstructure:"cognitive_function" json:"cognitive_function,omitempty"`
	SocialFunction    *int   `mapstructure:"social_function" json:"social_function,omitempty"`
	GlobalQOL         *int   `mapstructure:"global_qol" json:"global_qol,omitempty"`
	Notes             string `mapstructure:"notes" json:"notes,omitempty"`
	CreatedBy         string `mapstructure:"created_by" json:"created_by"`
}

func (*FunctionalAssessment) TableName() string { return schema.FunctionalAssessments }

type Problem struct {
	ProblemID          string `mapstructure:"problem_id" json:"problem_id"`
	PatientID          string `mapstructure:"patient_id" json:"patient_id"`
	PatientName        string `mapstructure:"patient_name" json:"patient_name"`
	IdentifiedDate     string `mapstructure:"identified_date" json:"identified_date"`
	ProblemCategory    string `mapstructure:"problem_category" json:"problem_category"`
	ProblemDescription string `mapstructure:"problem_description" json:"problem_description"`
	Severity           string `mapstructure:"severity" json:"severity,omitempty"`
	Status             string `mapstructure:"status" json:"status"`
	Goal               string `mapstructure:"goal" json:"goal,omitempty"`
	TargetDate         string `mapstructure:"target_date" json:"target_date,omitempty"`
	ResolvedDate       string `mapstructure:"resolved_date" json:"resolved_date,omitempty"`
	CreatedBy          string `mapstructure:"created_by" json:"created_by"`
	Notes              string `mapstructure:"notes" json:"notes,omitempty"`
}

func (*Problem) TableName() string { return schema.Problems }

// JournalEntryRequest creates or patches a row in one of the journal tables.
type JournalEntryRequest struct {
	PatientID string            `json:"patient_id"`
	Fields    map[string]string `json:"fields" binding:"required,min=1"`
}
