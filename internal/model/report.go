package model

import (
	"github.com/aicare/casemgr/internal/schema"
)

type AlertLevel string

const (
	AlertGreen  AlertLevel = "green"
	AlertYellow AlertLevel = "yellow"
	AlertRed    AlertLevel = "red"
)

// Actionable levels enter the pending/handled lifecycle.
func (l AlertLevel) Actionable() bool {
	return l == AlertYellow || l == AlertRed
}

const (
	Handled    = "Y"
	NotHandled = "N"
)

type Report struct {
	ReportID      string                 `mapstructure:"report_id" json:"report_id"`
	PatientID     string                 `mapstructure:"patient_id" json:"patient_id"`
	PatientName   string                 `mapstructure:"patient_name" json:"patient_name"`
	Date          string                 `mapstructure:"date" json:"date"`
	Timestamp     string                 `mapstructure:"timestamp" json:"timestamp"`
	OverallScore  float64                `mapstructure:"overall_score" json:"overall_score"`
	Symptoms      map[string]interface{} `mapstructure:"symptoms" json:"symptoms"`
	MessagesCount int                    `mapstructure:"messages_count" json:"messages_count"`
	Conversation  string                 `mapstructure:"conversation" json:"conversation,omitempty"`
	AISummary     string                 `mapstructure:"ai_summary" json:"ai_summary,omitempty"`

	AlertLevel     AlertLevel `mapstructure:"alert_level" json:"alert_level"`
	AlertHandled   string     `mapstructure:"alert_handled" json:"alert_handled"`
	HandledBy      string     `mapstructure:"handled_by" json:"handled_by,omitempty"`
	HandledTime    string     `mapstructure:"handled_time" json:"handled_time,omitempty"`
	HandlingAction string     `mapstructure:"handling_action" json:"handling_action,omitempty"`
	HandlingNotes  string     `mapstructure:"handling_notes" json:"handling_notes,omitempty"`
}

func (*Report) TableName() string { return schema.Reports }

// IsHandled reports whether the alert left the pending state.
func (r *Report) IsHandled() bool {
	return r.AlertHandled == Handled
}

// Pending reports whether the report belongs in the case-manager queue.
func (r *Report) Pending() bool {
	return r.AlertLevel.Actionable() && !r.IsHandled()
}

type SubmitReportRequest struct {
	PatientID     string                 `json:"patient_id" binding:"required"`
	OverallScore  *float64               `json:"overall_score" binding:"required,min=0,max=10"`
	Symptoms      map[string]interface{} `json:"symptoms"`
	MessagesCount int                    `json:"messages_count" binding:"min=0"`
	Conversation  string                 `json:"conversation"`
	AISummary     string                 `json:"ai_summary"`
}

type HandleAlertRequest struct {
	Action string `json:"action"`
	Notes  string `json:"notes"`
}

type AddNoteRequest struct {
	Note string `json:"note" binding:"required"`
}
