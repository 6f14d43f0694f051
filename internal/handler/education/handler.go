package education

import (
	"github.com/gin-gonic/gin"

	"github.com/aicare/casemgr/internal/handler"
	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/service/education"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/httputil"
)

type Handler struct {
	service *education.Service
}

func NewHandler(service *education.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	edu := r.Group("/education")
	{
		edu.POST("", h.Push)
		edu.GET("", h.List)
	}
}

// RegisterSelfRoutes mounts the routes a patient uses to see and acknowledge
// their own material.
func (h *Handler) RegisterSelfRoutes(r *gin.RouterGroup, self gin.HandlerFunc) {
	r.GET("/patients/:id/education", self, h.PatientPushes)
	r.POST("/education/:id/read", h.MarkRead)
}

func (h *Handler) Push(c *gin.Context) {
	var req model.PushEducationRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	p, err := h.service.Push(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, p)
}

func (h *Handler) List(c *gin.Context) {
	if pid := c.Query("patient_id"); pid != "" {
		httputil.RespondWithSuccess(c, h.service.ForPatient(c.Request.Context(), pid))
		return
	}
	httputil.RespondWithSuccess(c, h.service.List(c.Request.Context()))
}

func (h *Handler) PatientPushes(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.ForPatient(c.Request.Context(), c.Param("id")))
}

// MarkRead acknowledges a push. A patient may only acknowledge their own.
func (h *Handler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	if u, ok := identity.FromContext(ctx); ok && u.IsPatient() {
		push, err := h.service.Get(ctx, c.Param("id"))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		if push.PatientID != u.ID {
			httputil.RespondWithError(c, apperrors.Forbidden("education push belongs to another patient"))
			return
		}
	}

	p, err := h.service.MarkRead(ctx, c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}
