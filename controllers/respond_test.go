package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"alforge/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failBody(t *testing.T, err error) (int, map[string]string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/equipment", nil)
	fail(c, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func TestFailHidesWrappedCause(t *testing.T) {
	cause := errors.New(`ERROR: duplicate key value violates unique constraint "alf_equipment_pkey"`)
	code, body := failBody(t, apperr.Wrap(apperr.KindConflict, cause, "equipment %s already exists", "0201001"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "equipment 0201001 already exists", body["error"])
	assert.Equal(t, string(apperr.KindConflict), body["code"])
	assert.NotContains(t, body["error"], "duplicate key")
}

func TestFailStatusMapping(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want int
	}{
		{apperr.PermissionDenied("no"), http.StatusForbidden},
		{apperr.InvalidArgument("bad"), http.StatusBadRequest},
		{apperr.NotFound("gone"), http.StatusNotFound},
		{apperr.Unavailable("held"), http.StatusConflict},
		{apperr.InvalidTransition("late"), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	} {
		code, body := failBody(t, tc.err)
		assert.Equal(t, tc.want, code, tc.err.Error())
		assert.NotEmpty(t, body["error"])
	}

	_, body := failBody(t, errors.New("dial tcp 10.0.0.1:5432: connection refused"))
	assert.Equal(t, "internal error", body["error"])
}
