package stats

import (
	"github.com/gin-gonic/gin"

	"github.com/aicare/casemgr/internal/stats"
	"github.com/aicare/casemgr/pkg/httputil"
)

type Handler struct {
	service *stats.Service
}

func NewHandler(service *stats.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	s := r.Group("/stats")
	{
		s.GET("/dashboard", h.Dashboard)
		s.GET("/adherence", h.Adherence)
		s.GET("/workload", h.Workload)
	}
}

func (h *Handler) Dashboard(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.Dashboard(c.Request.Context()))
}

// Adherence lists patients lowest rate first.
func (h *Handler) Adherence(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.Adherence(c.Request.Context()))
}

func (h *Handler) Workload(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.Workload(c.Request.Context()))
}
