package report

import (
	"github.com/gin-gonic/gin"

	"github.com/aicare/casemgr/internal/handler"
	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/normalize"
	"github.com/aicare/casemgr/internal/triage"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/httputil"
)

type Handler struct {
	engine *triage.Engine
}

func NewHandler(engine *triage.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes mounts the case-manager routes: report queries and the
// alert queue.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports")
	{
		reports.GET("", h.ListReports)
		reports.GET("/:id", h.GetReport)
	}

	alerts := r.Group("/alerts")
	{
		alerts.GET("", h.PendingAlerts)
		alerts.POST("/:id/handle", h.HandleAlert)
		alerts.POST("/:id/notes", h.AddNote)
	}
}

// RegisterSelfRoutes mounts the routes patients use as well. Submitting is
// checked against the caller in SubmitReport.
func (h *Handler) RegisterSelfRoutes(r *gin.RouterGroup, self gin.HandlerFunc) {
	r.POST("/reports", h.SubmitReport)
	r.GET("/patients/:id/reports", self, h.PatientReports)
}

// SubmitReport files a report. A patient may only file for themselves.
func (h *Handler) SubmitReport(c *gin.Context) {
	var req model.SubmitReportRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if u, ok := identity.FromContext(c.Request.Context()); ok && u.IsPatient() && normalize.Identifier(req.PatientID) != u.ID {
		httputil.RespondWithError(c, apperrors.Forbidden("patients may only report for themselves"))
		return
	}

	r, err := h.engine.Submit(c.Request.Context(), triage.Submission{
		PatientID:     req.PatientID,
		OverallScore:  *req.OverallScore,
		Symptoms:      req.Symptoms,
		MessagesCount: req.MessagesCount,
		Conversation:  req.Conversation,
		AISummary:     req.AISummary,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, r)
}

// ListReports returns one patient's reports with ?patient_id=, the reports
// of ?date=, or today's reports. Both filters may be combined.
func (h *Handler) ListReports(c *gin.Context) {
	var filters model.RecordFilters
	if !handler.BindQuery(c, &filters) {
		return
	}

	ctx := c.Request.Context()
	var reports []*model.Report
	switch {
	case filters.PatientID != "":
		reports = h.engine.PatientReports(ctx, filters.PatientID)
		if filters.Date != "" {
			reports = byDate(reports, filters.Date)
		}
	case filters.Date != "":
		reports = h.engine.ReportsOn(ctx, filters.Date)
	default:
		reports = h.engine.TodayReports(ctx)
	}
	httputil.RespondWithSuccess(c, reports)
}

func byDate(reports []*model.Report, date string) []*model.Report {
	out := reports[:0:0]
	for _, r := range reports {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out
}

func (h *Handler) GetReport(c *gin.Context) {
	r, err := h.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}

func (h *Handler) PatientReports(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.engine.PatientReports(c.Request.Context(), c.Param("id")))
}

func (h *Handler) PendingAlerts(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.engine.PendingAlerts(c.Request.Context()))
}

// HandleAlert marks an alert handled by the authenticated caller.
func (h *Handler) HandleAlert(c *gin.Context) {
	var req model.HandleAlertRequest
	if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
		return
	}

	r, err := h.engine.Handle(c.Request.Context(), c.Param("id"), "", req.Action, req.Notes)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}

func (h *Handler) AddNote(c *gin.Context) {
	var req model.AddNoteRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	r, err := h.engine.AddNote(c.Request.Context(), c.Param("id"), req.Note)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, r)
}
