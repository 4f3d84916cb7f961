package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
)

func TestErrorRendersEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, appErrors.Clone(appErrors.ErrStaleRevision, "revision 2 is stale"))

	assert.Equal(t, http.StatusConflict, w.Code)
	var env struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "STALE_REVISION", env.Error.Code)
	assert.Equal(t, "revision 2 is stale", env.Error.Message)
	assert.Empty(t, c.Errors)
}

func TestRevisionHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPut, "/aulas/a-1", nil)

	_, ok := IfMatchRevision(c)
	assert.False(t, ok)

	SetRevision(c, 7)
	assert.Equal(t, `W/"7"`, w.Header().Get("ETag"))

	c.Request.Header.Set("If-Match", `W/"7"`)
	rev, ok := IfMatchRevision(c)
	assert.True(t, ok)
	assert.Equal(t, 7, rev)

	c.Request.Header.Set("If-Match", "*")
	_, ok = IfMatchRevision(c)
	assert.False(t, ok)
}
