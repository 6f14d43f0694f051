package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicare/casemgr/internal/identity"
	"github.com/aicare/casemgr/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuthenticate(t *testing.T) {
	jwt := auth.NewJWTService("secret", "casemgr", time.Hour)
	m := NewAuthMiddleware(jwt)

	r := gin.New()
	r.Use(RequestID(), m.Authenticate())
	r.GET("/me", func(c *gin.Context) {
		u, ok := identity.FromContext(c.Request.Context())
		require.True(t, ok)
		c.String(http.StatusOK, u.ID+"/"+u.Role)
	})
	r.GET("/admin", m.RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	token, err := jwt.GenerateAccessToken("nurse01", "Nurse", "case_manager")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nurse01/case_manager", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	for _, header := range []string{"", "Token abc", "Bearer nope"} {
		w = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestSelfOrRole(t *testing.T) {
	jwt := auth.NewJWTService("secret", "casemgr", time.Hour)
	m := NewAuthMiddleware(jwt)

	r := gin.New()
	r.Use(m.Authenticate())
	r.GET("/patients/:id", m.SelfOrRole("id", "case_manager"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	patient, err := jwt.GenerateAccessToken("P001", "Wang", identity.RolePatient)
	require.NoError(t, err)
	nurse, err := jwt.GenerateAccessToken("nurse01", "Nurse", "case_manager")
	require.NoError(t, err)

	cases := []struct {
		token, path string
		want        int
	}{
		{patient, "/patients/P001", http.StatusNoContent},
		{patient, "/patients/P001.0", http.StatusNoContent},
		{patient, "/patients/P002", http.StatusForbidden},
		{nurse, "/patients/P002", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, tc.path)
	}
}

func TestRateLimitPerClient(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 2})
	r := gin.New()
	r.Use(rl.RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "internal server error"))
}

func TestCustomValidators(t *testing.T) {
	RegisterValidators()

	type payload struct {
		Phone string `json:"phone" binding:"required,twphone"`
		Date  string `json:"date" binding:"omitempty,datefield"`
	}
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var p payload
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, BindingErrors(err))
			return
		}
		c.Status(http.StatusOK)
	})

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		return w
	}
	assert.Equal(t, http.StatusOK, post(`{"phone":"912345678","date":"2026/3/15"}`).Code)

	w := post(`{"phone":"12345","date":"yesterday"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"phone"`)
	assert.Contains(t, w.Body.String(), `"field":"date"`)
}

func TestValidPhone(t *testing.T) {
	assert.True(t, ValidPhone("0912345678"))
	assert.True(t, ValidPhone("912345678.0"))
	assert.False(t, ValidPhone("0212345678"))
	assert.False(t, ValidPhone("09123x5678"))
}
