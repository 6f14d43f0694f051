package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	educationh "github.com/aicare/casemgr/internal/handler/education"
	"github.com/aicare/casemgr/internal/handler/health"
	journalh "github.com/aicare/casemgr/internal/handler/journal"
	patienth "github.com/aicare/casemgr/internal/handler/patient"
	"github.com/aicare/casemgr/internal/handler/prometheus"
	"github.com/aicare/casemgr/internal/handler/report"
	statsh "github.com/aicare/casemgr/internal/handler/stats"
	"github.com/aicare/casemgr/internal/middleware"
	"github.com/aicare/casemgr/internal/repository"
	"github.com/aicare/casemgr/internal/service/education"
	"github.com/aicare/casemgr/internal/service/journal"
	"github.com/aicare/casemgr/internal/service/patient"
	"github.com/aicare/casemgr/internal/stats"
	"github.com/aicare/casemgr/internal/store/memory"
	"github.com/aicare/casemgr/internal/triage"
	"github.com/aicare/casemgr/pkg/auth"
	"github.com/aicare/casemgr/pkg/logger"
	"github.com/aicare/casemgr/pkg/metrics"
	"github.com/aicare/casemgr/pkg/security"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type APISuite struct {
	suite.Suite
	engine *gin.Engine
	jwt    auth.JWTService
	repo   *repository.Repository
	token  string
}

func (s *APISuite) SetupTest() {
	ctx := context.Background()
	log := logger.Nop()
	mem := memory.New()
	s.Require().NoError(repository.Setup(ctx, mem, log))

	prom := prometheus.New()
	m := metrics.New("casemgr", prom.Registry())
	repo := repository.New(mem, repository.Config{}, repository.WithMetrics(m))
	s.repo = repo
	s.jwt = auth.NewJWTService("test-secret", "casemgr", time.Hour)

	patients := patient.NewService(repo, security.NewBcryptHasher(bcrypt.MinCost), patient.Config{}, log)
	engine := triage.NewEngine(repo, triage.WithMetrics(m))
	r := NewRouter(middleware.NewAuthMiddleware(s.jwt), Handlers{
		Patient:   patienth.NewHandler(patients, s.jwt),
		Report:    report.NewHandler(engine),
		Education: educationh.NewHandler(education.NewService(repo, log)),
		Journal:   journalh.NewHandler(journal.NewService(repo, log)),
		Stats:     statsh.NewHandler(stats.NewService(repo, log)),
		Health:    health.NewHandler(map[string]health.Check{}),
		Metrics:   prom,
	}, m, RouterConfig{})
	s.engine = r.Engine()

	token, err := s.jwt.GenerateAccessToken("nurse01", "Nurse Lin", "case_manager")
	s.Require().NoError(err)
	s.token = token
}

func (s *APISuite) do(method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (s *APISuite) TestAlertWorkflow() {
	w, env := s.do(http.MethodPost, "/api/v1/patients", map[string]interface{}{
		"name": "Wang", "phone": "912345678", "password": "0101", "surgery_date": "2026-01-01",
	}, s.token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		PatientID string `json:"patient_id"`
		Phone     string `json:"phone"`
		Status    string `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &p))
	s.Equal("0912345678", p.Phone)
	s.Equal("pending_setup", p.Status)

	w, env = s.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"patient_id": p.PatientID, "overall_score": 8, "symptoms": map[string]int{"pain": 8},
	}, s.token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var r struct {
		ReportID   string `json:"report_id"`
		AlertLevel string `json:"alert_level"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &r))
	s.Equal("red", r.AlertLevel)

	_, env = s.do(http.MethodGet, "/api/v1/alerts", nil, s.token)
	var pending []map[string]interface{}
	s.Require().NoError(json.Unmarshal(env.Data, &pending))
	s.Len(pending, 1)

	w, env = s.do(http.MethodPost, "/api/v1/alerts/"+r.ReportID+"/handle", map[string]string{"action": "called patient"}, s.token)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var handled struct {
		AlertHandled string `json:"alert_handled"`
		HandledBy    string `json:"handled_by"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &handled))
	s.Equal("Y", handled.AlertHandled)
	s.Equal("nurse01", handled.HandledBy)

	w, _ = s.do(http.MethodPost, "/api/v1/alerts/"+r.ReportID+"/notes", map[string]string{"note": "follow-up ok"}, s.token)
	s.Equal(http.StatusOK, w.Code)

	_, env = s.do(http.MethodGet, "/api/v1/alerts", nil, s.token)
	s.Require().NoError(json.Unmarshal(env.Data, &pending))
	s.Empty(pending)

	w, env = s.do(http.MethodGet, "/api/v1/stats/dashboard", nil, s.token)
	s.Require().Equal(http.StatusOK, w.Code)
	var d stats.Dashboard
	s.Require().NoError(json.Unmarshal(env.Data, &d))
	s.Equal(1, d.TotalPatients)
	s.Equal(1, d.TodayReports)
}

func (s *APISuite) TestGreenAlertIsNotActionable() {
	_, env := s.do(http.MethodPost, "/api/v1/patients", map[string]string{"name": "A", "phone": "0911222333"}, s.token)
	var p struct {
		PatientID string `json:"patient_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &p))

	_, env = s.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{"patient_id": p.PatientID, "overall_score": 2}, s.token)
	var r struct {
		ReportID string `json:"report_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &r))

	w, _ := s.do(http.MethodPost, "/api/v1/alerts/"+r.ReportID+"/handle", nil, s.token)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *APISuite) TestValidationAndErrors() {
	w, _ := s.do(http.MethodPost, "/api/v1/patients", map[string]string{"name": "A", "phone": "12"}, s.token)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), `"field":"phone"`)

	w, _ = s.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{"patient_id": "P1", "overall_score": 11}, s.token)
	s.Equal(http.StatusBadRequest, w.Code)

	w, env := s.do(http.MethodGet, "/api/v1/patients/P404", nil, s.token)
	s.Equal(http.StatusNotFound, w.Code)
	s.Require().NotNil(env.Error)
	s.False(env.Success)

	w, _ = s.do(http.MethodGet, "/api/v1/journal/Patients", nil, s.token)
	s.Equal(http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/patients", nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *APISuite) TestPatientLoginAndRoles() {
	_, _ = s.do(http.MethodPost, "/api/v1/patients", map[string]string{"name": "A", "phone": "0911222333", "password": "4321"}, s.token)

	w, env := s.do(http.MethodPost, "/api/v1/auth/patient-login", map[string]string{"phone": "911222333", "password": "4321"}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &login))
	s.NotEmpty(login.Token)

	w, _ = s.do(http.MethodGet, "/api/v1/stats/dashboard", nil, login.Token)
	s.Equal(http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/auth/patient-login", map[string]string{"phone": "0911222333", "password": "0000"}, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

// createPatient registers a patient with a password and returns its id and a
// token from patient login.
func (s *APISuite) createPatient(phone string) (string, string) {
	w, env := s.do(http.MethodPost, "/api/v1/patients", map[string]string{"name": "A", "phone": phone, "password": "4321"}, s.token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var p struct {
		PatientID string `json:"patient_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &p))

	w, env = s.do(http.MethodPost, "/api/v1/auth/patient-login", map[string]string{"phone": phone, "password": "4321"}, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &login))
	return p.PatientID, login.Token
}

func (s *APISuite) TestPatientTokenCannotReachStaffRoutes() {
	self, token := s.createPatient("0911222333")
	other, _ := s.createPatient("0922333444")

	w, env := s.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{
		"patient_id": other, "overall_score": 9,
	}, s.token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var r struct {
		ReportID string `json:"report_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &r))

	forbidden := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodPost, "/api/v1/alerts/" + r.ReportID + "/handle", map[string]string{"action": "called"}},
		{http.MethodPost, "/api/v1/alerts/" + r.ReportID + "/notes", map[string]string{"note": "x"}},
		{http.MethodGet, "/api/v1/alerts", nil},
		{http.MethodPatch, "/api/v1/patients/" + self, map[string]string{"status": "closed"}},
		{http.MethodGet, "/api/v1/patients", nil},
		{http.MethodPost, "/api/v1/patients", map[string]string{"name": "B", "phone": "0933444555"}},
		{http.MethodGet, "/api/v1/patients/" + other, nil},
		{http.MethodGet, "/api/v1/patients/" + other + "/reports", nil},
		{http.MethodGet, "/api/v1/reports", nil},
		{http.MethodGet, "/api/v1/reports/" + r.ReportID, nil},
		{http.MethodPost, "/api/v1/education", map[string]string{"patient_id": self, "material_id": "M1"}},
		{http.MethodGet, "/api/v1/journal/Interventions", nil},
		{http.MethodPost, "/api/v1/reports", map[string]interface{}{"patient_id": other, "overall_score": 1}},
	}
	for _, tc := range forbidden {
		w, _ := s.do(tc.method, tc.path, tc.body, token)
		s.Equal(http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}

	_, env = s.do(http.MethodGet, "/api/v1/alerts", nil, s.token)
	s.Contains(string(env.Data), r.ReportID, "alert stays pending")

	w, _ = s.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{"patient_id": self, "overall_score": 3}, token)
	s.Equal(http.StatusCreated, w.Code, w.Body.String())

	w, _ = s.do(http.MethodGet, "/api/v1/patients/"+self, nil, token)
	s.Equal(http.StatusOK, w.Code)

	w, env = s.do(http.MethodGet, "/api/v1/patients/"+self+"/reports", nil, token)
	s.Require().Equal(http.StatusOK, w.Code)
	var own []map[string]interface{}
	s.Require().NoError(json.Unmarshal(env.Data, &own))
	s.Len(own, 1)
}

func (s *APISuite) TestPatientMarksOnlyOwnEducationRead() {
	self, token := s.createPatient("0911222333")
	other, _ := s.createPatient("0922333444")

	pushFor := func(pid string) string {
		w, env := s.do(http.MethodPost, "/api/v1/education", map[string]string{"patient_id": pid, "material_id": "M1"}, s.token)
		s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
		var push struct {
			PushID string `json:"push_id"`
		}
		s.Require().NoError(json.Unmarshal(env.Data, &push))
		return push.PushID
	}
	mine, theirs := pushFor(self), pushFor(other)

	w, _ := s.do(http.MethodPost, "/api/v1/education/"+theirs+"/read", nil, token)
	s.Equal(http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/education/"+mine+"/read", nil, token)
	s.Equal(http.StatusOK, w.Code, w.Body.String())
	s.Contains(string(env.Data), `"status":"read"`)

	w, _ = s.do(http.MethodGet, "/api/v1/patients/"+other+"/education", nil, token)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *APISuite) TestListReportsByPastDate() {
	_, env := s.do(http.MethodPost, "/api/v1/patients", map[string]string{"name": "A", "phone": "0911222333"}, s.token)
	var p struct {
		PatientID string `json:"patient_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &p))

	old, err := s.repo.Create(context.Background(), "Reports", map[string]string{
		"patient_id": p.PatientID, "date": "2026-01-05", "overall_score": "4", "alert_level": "green",
	})
	s.Require().NoError(err)
	w, _ := s.do(http.MethodPost, "/api/v1/reports", map[string]interface{}{"patient_id": p.PatientID, "overall_score": 2}, s.token)
	s.Require().Equal(http.StatusCreated, w.Code)

	ids := func(path string) []string {
		w, env := s.do(http.MethodGet, path, nil, s.token)
		s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		var reports []struct {
			ReportID string `json:"report_id"`
		}
		s.Require().NoError(json.Unmarshal(env.Data, &reports))
		out := make([]string, 0, len(reports))
		for _, r := range reports {
			out = append(out, r.ReportID)
		}
		return out
	}

	s.Equal([]string{old}, ids("/api/v1/reports?date=2026-01-05"))
	s.Equal([]string{old}, ids("/api/v1/reports?date=2026-01-05&patient_id="+p.PatientID))
	s.Empty(ids("/api/v1/reports?date=2025-12-31"))
	s.Len(ids("/api/v1/reports"), 1)
	s.NotContains(ids("/api/v1/reports"), old)
}

func (s *APISuite) TestJournalAndEducation() {
	_, env := s.do(http.MethodPost, "/api/v1/patients", map[string]string{"name": "A", "phone": "0911222333"}, s.token)
	var p struct {
		PatientID string `json:"patient_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &p))

	w, _ := s.do(http.MethodPost, "/api/v1/journal/Interventions", map[string]interface{}{
		"patient_id": p.PatientID, "fields": map[string]string{"intervention_type": "phone"},
	}, s.token)
	s.Equal(http.StatusCreated, w.Code, w.Body.String())

	_, env = s.do(http.MethodGet, "/api/v1/stats/workload", nil, s.token)
	s.Contains(string(env.Data), "nurse01")

	w, env = s.do(http.MethodPost, "/api/v1/education", map[string]string{"patient_id": p.PatientID, "material_id": "M1"}, s.token)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var push struct {
		PushID string `json:"push_id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &push))

	w, env = s.do(http.MethodPost, "/api/v1/education/"+push.PushID+"/read", nil, s.token)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), `"status":"read"`)
}

func (s *APISuite) TestMetricsEndpoint() {
	_, _ = s.do(http.MethodGet, "/api/v1/health/live", nil, "")
	w, _ := s.do(http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "casemgr_http")
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func TestRouterRegistersHealthWithoutAuth(t *testing.T) {
	jwt := auth.NewJWTService("x", "casemgr", time.Hour)
	log := logger.Nop()
	repo := repository.New(memory.New(), repository.Config{})
	r := NewRouter(middleware.NewAuthMiddleware(jwt), Handlers{
		Patient:   patienth.NewHandler(patient.NewService(repo, security.NewBcryptHasher(bcrypt.MinCost), patient.Config{}, log), jwt),
		Report:    report.NewHandler(triage.NewEngine(repo)),
		Education: educationh.NewHandler(education.NewService(repo, log)),
		Journal:   journalh.NewHandler(journal.NewService(repo, log)),
		Stats:     statsh.NewHandler(stats.NewService(repo, log)),
		Health:    health.NewHandler(nil),
	}, nil, RouterConfig{})

	w := httptest.NewRecorder()
	r.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "UP")
}
