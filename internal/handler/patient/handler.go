package patient

import (
	"github.com/gin-gonic/gin"

	"github.com/aicare/casemgr/internal/handler"
	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/internal/model"
	"github.com/aicare/casemgr/internal/service/patient"
	"github.com/aicare/casemgr/pkg/auth"
	"github.com/aicare/casemgr/pkg/httputil"
)

type Handler struct {
	service patient.PatientService
	jwt     auth.JWTService
}

func NewHandler(service patient.PatientService, jwt auth.JWTService) *Handler {
	return &Handler{service: service, jwt: jwt}
}

// RegisterRoutes mounts the case-manager routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("", h.ListPatients)
		patients.PATCH("/:id", h.UpdatePatient)
	}
}

// RegisterSelfRoutes mounts what a patient may read about themselves; self
// guards the :id parameter.
func (h *Handler) RegisterSelfRoutes(r *gin.RouterGroup, self gin.HandlerFunc) {
	r.GET("/patients/:id", self, h.GetPatient)
}

// RegisterPublicRoutes exposes patient login, which needs no token.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/patient-login", h.Login)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.CreatePatient(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondCreated(c, p)
}

func (h *Handler) ListPatients(c *gin.Context) {
	var filters model.PatientFilters
	if !handler.BindQuery(c, &filters) {
		return
	}
	httputil.RespondWithSuccess(c, h.service.ListPatients(c.Request.Context(), &filters))
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req model.UpdatePatientRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.UpdatePatient(c.Request.Context(), c.Param("id"), req.Fields)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

type loginResponse struct {
	Token   string         `json:"token"`
	Patient *model.Patient `json:"patient"`
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	p, err := h.service.Authenticate(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	token, err := h.jwt.GenerateAccessToken(p.PatientID, p.Name, identity.RolePatient)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, loginResponse{Token: token, Patient: p})
}
