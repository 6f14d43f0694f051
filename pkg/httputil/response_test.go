package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aicare/casemgr/pkg/errors"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.NewNotFound("patient", nil), http.StatusNotFound},
		{apperrors.NewBadRequest("bad", nil), http.StatusBadRequest},
		{apperrors.NewMalformed("symptoms", nil), http.StatusBadRequest},
		{apperrors.Unauthorized(nil), http.StatusUnauthorized},
		{apperrors.Forbidden("not yours"), http.StatusForbidden},
		{apperrors.NewConflict("dup", nil), http.StatusConflict},
		{apperrors.NewUnavailable("append row", errors.New("timeout")), http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", apperrors.NewNotFound("report", nil)), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(tc.err), tc.err.Error())
	}
}

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(ContextRequestID, "req-1")
	RespondWithError(c, errors.New("secret detail"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "internal server error", body.Error.Message)
	assert.Equal(t, "req-1", body.Error.TraceID)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	RespondWithError(c, apperrors.NewConflict("alert is not actionable", nil))
	require.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "alert is not actionable", body.Error.Message)
}
