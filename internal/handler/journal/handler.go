package journal

import (
	"github.com/gin-gonic/gin"

	"github.com/aicare/casemgr/internal/handler"
	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/service/journal"
	"github.com/aicare/casemgr/pkg/httputil"
)

type Handler struct {
	service *journal.Service
}

func NewHandler(service *journal.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	j := r.Group("/journal/:table")
	{
		j.POST("", h.Create)
		j.GET("", h.List)
		j.GET("/:id", h.Get)
		j.PATCH("/:id", h.Update)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.JournalEntryRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	rec, err := h.service.Create(c.Request.Context(), c.Param("table"), req.PatientID, req.Fields)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, rec)
}

// List returns the whole table, or one patient's entries with ?patient_id=.
func (h *Handler) List(c *gin.Context) {
	var (
		recs []model.Record
		err  error
	)
	if pid := c.Query("patient_id"); pid != "" {
		recs, err = h.service.ByPatient(c.Request.Context(), c.Param("table"), pid)
	} else {
		recs, err = h.service.List(c.Request.Context(), c.Param("table"))
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, recs)
}

func (h *Handler) Get(c *gin.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("table"), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rec)
}

func (h *Handler) Update(c *gin.Context) {
	var req model.JournalEntryRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	rec, err := h.service.Update(c.Request.Context(), c.Param("table"), c.Param("id"), req.Fields)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rec)
}
