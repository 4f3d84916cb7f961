package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sfd-aulas-api/internal/middleware"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/response"
)

func actorID(c *gin.Context) string {
	if claims := middleware.Claims(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// expectedRevision prefers the revision in the body and falls back to If-Match.
func expectedRevision(c *gin.Context, fromBody *int) *int {
	if fromBody != nil {
		return fromBody
	}
	if rev, ok := response.IfMatchRevision(c); ok {
		return &rev
	}
	return nil
}

// bindOptionalJSON binds the body when one was sent.
func bindOptionalJSON(c *gin.Context, dest interface{}, message string) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
