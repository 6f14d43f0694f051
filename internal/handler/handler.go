// Package handler holds the helpers shared by the HTTP handlers in its
// subpackages.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aicare/casemgr/internal/middleware"
	apperrors "github.com/aicare/casemgr/pkg/errors"
	"github.com/aicare/casemgr/pkg/httputil"
)

// BindJSON decodes and validates the body into v. On failure it has already
// answered 400 and the caller should return.
func BindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		fail(c, err)
		return false
	}
	return true
}

// BindQuery is BindJSON for query strings.
func BindQuery(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindQuery(v); err != nil {
		fail(c, err)
		return false
	}
	return true
}

func fail(c *gin.Context, err error) {
	if fields := middleware.BindingErrors(err); len(fields) > 0 {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   httputil.Error{Code: http.StatusBadRequest, Message: "validation failed", TraceID: c.GetString(httputil.ContextRequestID)},
			"fields":  fields,
		})
		return
	}
	httputil.RespondWithError(c, apperrors.NewBadRequest("invalid request body", err))
}
