package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/aicare/casemgr/internal/handler/education"
	"github.com/aicare/casemgr/internal/handler/health"
	"github.com/aicare/casemgr/internal/handler/journal"
	"github.com/aicare/casemgr/internal/handler/patient"
	"github.com/aicare/casemgr/internal/handler/prometheus"
	"github.com/aicare/casemgr/internal/handler/report"
	"github.com/aicare/casemgr/internal/handler/stats"
	"github.com/aicare/casemgr/internal/middleware"
	"github.com/aicare/casemgr/pkg/metrics"
)

// ManagerRoles may reach every staff route. Patient tokens only get the self
// routes, scoped to their own patient id.
var ManagerRoles = []string{"case_manager", "admin"}

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// SelfHandler mounts routes a patient may call about their own records.
type SelfHandler interface {
	RegisterSelfRoutes(r *gin.RouterGroup, self gin.HandlerFunc)
}

type Handlers struct {
	Patient   *patient.Handler
	Report    *report.Handler
	Education *education.Handler
	Journal   *journal.Handler
	Stats     *stats.Handler
	Health    *health.Handler
	Metrics   *prometheus.Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	Debug            bool
}

type Router struct {
	engine *gin.Engine
	auth   *middleware.AuthMiddleware
	h      Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, h Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.RegisterValidators()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(m),
	)
	if config.RateLimitEnabled {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rl.RateLimit())
	}

	r := &Router{engine: engine, auth: auth, h: h}
	r.setup()
	return r
}

func (r *Router) setup() {
	if r.h.Metrics != nil {
		r.h.Metrics.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")
	r.h.Health.RegisterRoutes(api)
	r.h.Patient.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	self := r.auth.SelfOrRole("id", ManagerRoles...)
	for _, h := range []SelfHandler{r.h.Patient, r.h.Report, r.h.Education} {
		h.RegisterSelfRoutes(protected, self)
	}

	staff := protected.Group("")
	staff.Use(r.auth.RequireRole(ManagerRoles...))
	for _, h := range []Handler{r.h.Patient, r.h.Report, r.h.Education, r.h.Journal, r.h.Stats} {
		h.RegisterRoutes(staff)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
