package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("loading aula: %w", Clone(ErrNotFound, "aula not found"))

	got := FromError(wrapped)
	assert.Equal(t, "NOT_FOUND", got.Code)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "aula not found", got.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.True(t, errors.Is(got, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrStaleRevision, "revision 3 is stale")
	assert.Equal(t, "revision 3 is stale", clone.Message)
	assert.NotEqual(t, clone.Message, ErrStaleRevision.Message)
	assert.Equal(t, http.StatusConflict, clone.Status)

	wrapped := Wrap(sql.ErrTxDone, ErrInternal.Code, ErrInternal.Status, "commit aula batch")
	assert.Equal(t, "commit aula batch: sql: transaction has already been committed or rolled back", wrapped.Error())
}
