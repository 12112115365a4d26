package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"alforge/access"
	"alforge/app"
	"alforge/config"
	"alforge/controllers"
	"alforge/db"
	"alforge/models"
	"alforge/notify"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var callers = map[string]access.Caller{
	"admin":  {Authenticated: true, UserID: "a1", Name: "Admin", Email: "admin@example.org", Role: models.RoleAdmin, Active: true},
	"gestor": {Authenticated: true, UserID: "g1", Name: "Gestor", Email: "gestor@example.org", Role: models.RoleGestor, Active: true},
	"member": {Authenticated: true, UserID: "u1", Name: "Rui", Email: "rui@example.org", Role: models.RoleUser, Active: true},
}

// fakeAuth 用 X-Test-User 头代替会话 Cookie
func fakeAuth(c *gin.Context) {
	caller, ok := callers[c.GetHeader("X-Test-User")]
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	app.SetCaller(c, caller, "sid-"+caller.UserID)
	c.Next()
}

type server struct {
	t *testing.T
	r *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gdb, err := db.Connect(config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "routes.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repo := db.NewRepo(gdb)
	s := controllers.NewSrv(config.Config{WebOrigin: "http://localhost:3000"}, repo, repo, notify.Multi{}, nil)

	r := gin.New()
	Mount(r, s, fakeAuth, func(c *gin.Context) { c.Next() })
	return &server{t: t, r: r}
}

func (s *server) do(who, method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != "" {
		req.Header.Set("X-Test-User", who)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type reqResp struct {
	Requisition models.Requisition `json:"requisition"`
}

func TestHealthAndAuth(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusOK, s.do("", "GET", "/healthz", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do("", "GET", "/api/equipment", nil).Code)
	assert.Equal(t, http.StatusOK, s.do("member", "GET", "/api/equipment", nil).Code)

	assert.Equal(t, http.StatusForbidden, s.do("gestor", "GET", "/api/users", nil).Code)
	assert.Equal(t, http.StatusOK, s.do("admin", "GET", "/api/users", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do("gestor", "GET", "/admin/invites", nil).Code)
}

func TestEquipmentRoutes(t *testing.T) {
	s := newServer(t)

	cats := app.H{"categories": []app.H{
		{"kind": "USAGE", "code": "02", "name": "Camping"},
		{"kind": "TYPE", "code": "01", "name": "Tent"},
	}}
	assert.Equal(t, http.StatusForbidden, s.do("member", "PUT", "/api/categories", cats).Code)
	require.Equal(t, http.StatusOK, s.do("gestor", "PUT", "/api/categories", cats).Code)

	w := s.do("gestor", "POST", "/api/equipment/next-code", app.H{"usageCode": "2", "typeCode": "1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0201001", decode[map[string]string](t, w)["code"])

	w = s.do("gestor", "POST", "/api/equipment", app.H{"usageCode": "02", "typeCode": "01", "name": "Tent 2p"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Item models.Equipment `json:"item"`
	}](t, w)
	assert.Equal(t, "0201001", created.Item.Code)

	w = s.do("gestor", "POST", "/api/equipment", app.H{"code": "0201001", "name": "Tent again"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "equipment 0201001 already exists", decode[map[string]string](t, w)["error"])

	assert.Equal(t, http.StatusForbidden, s.do("member", "POST", "/api/equipment", app.H{"code": "0201002", "name": "x"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do("gestor", "POST", "/api/equipment", app.H{"code": "02010", "name": "x"}).Code)
	assert.Equal(t, http.StatusNotFound, s.do("member", "GET", "/api/equipment/0209999", nil).Code)

	w = s.do("gestor", "POST", "/api/equipment/0201001/hold", app.H{"reason": "torn floor"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	// 已经 HELD，再 hold 是非法迁移
	assert.Equal(t, http.StatusConflict, s.do("gestor", "POST", "/api/equipment/0201001/hold", nil).Code)
	assert.Equal(t, http.StatusOK, s.do("gestor", "POST", "/api/equipment/0201001/release", nil).Code)

	w = s.do("gestor", "GET", "/api/equipment/0201001/overrides", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(models.OverrideHold))

	w = s.do("member", "GET", "/api/equipment/available?q=tent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "0201001")
}

func TestRequisitionFlow(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do("gestor", "POST", "/api/equipment", app.H{"code": "0201001", "name": "Tent"}).Code)

	assert.Equal(t, http.StatusBadRequest, s.do("member", "POST", "/api/requisitions", app.H{"startDate": "01/03/2026", "endDate": "2026-03-03"}).Code)

	w := s.do("member", "POST", "/api/requisitions", app.H{"startDate": "2026-03-01", "endDate": "2026-03-03", "notes": "weekend camp"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	r := decode[reqResp](t, w).Requisition
	assert.Equal(t, models.StateSubmitted, r.State)
	base := "/api/requisitions/" + r.ID

	assert.Equal(t, http.StatusForbidden, s.do("member", "POST", base+"/items", app.H{"code": "0201001"}).Code)
	require.Equal(t, http.StatusCreated, s.do("gestor", "POST", base+"/items", app.H{"code": "0201001"}).Code)

	w = s.do("gestor", "PATCH", base+"/items/0201001?propagate=1", app.H{"notes": "check pegs"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do("member", "GET", base+"/items", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "check pegs")

	assert.Equal(t, http.StatusForbidden, s.do("member", "POST", base+"/prepare", nil).Code)
	for _, step := range []struct {
		action string
		want   models.RequisitionState
	}{
		{"prepare", models.StateInPreparation},
		{"ready", models.StateReady},
		{"deliver", models.StateDelivered},
		{"return", models.StateReturned},
	} {
		w := s.do("gestor", "POST", base+"/"+step.action, nil)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", step.action, w.Body.String())
		assert.Equal(t, step.want, decode[reqResp](t, w).Requisition.State)
	}

	w = s.do("gestor", "POST", base+"/cancel", app.H{"reason": "too late"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do("member", "GET", "/api/requisitions?state=returned", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[struct {
		Total int64 `json:"total"`
	}](t, w)
	assert.EqualValues(t, 1, page.Total)

	w = s.do("gestor", "GET", "/api/requisitions/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"RETURNED":1`)
}

func TestCancelNeedsReason(t *testing.T) {
	s := newServer(t)
	w := s.do("member", "POST", "/api/requisitions", app.H{"startDate": "2026-03-01", "endDate": "2026-03-01"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[reqResp](t, w).Requisition.ID

	assert.Equal(t, http.StatusBadRequest, s.do("gestor", "POST", "/api/requisitions/"+id+"/cancel", nil).Code)
	w = s.do("gestor", "POST", "/api/requisitions/"+id+"/cancel", app.H{"reason": "no transport"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StateCancelled, decode[reqResp](t, w).Requisition.State)
}

func TestExportRoute(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do("gestor", "POST", "/api/equipment", app.H{"code": "0201001", "name": "Tent"}).Code)

	w := s.do("gestor", "GET", "/api/export/equipment.csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="equipment.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "\uFEFFcode,"), w.Body.String())
	assert.Contains(t, w.Body.String(), "0201001")

	assert.Equal(t, http.StatusForbidden, s.do("member", "GET", "/api/export/equipment.csv", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do("gestor", "GET", "/api/export/equipment.pdf", nil).Code)
}

func TestMailSettingsRoutes(t *testing.T) {
	s := newServer(t)
	w := s.do("admin", "PUT", "/admin/settings/mail", app.H{"host": "smtp.example.org", "port": "465", "username": "bot", "password": "secret", "enabled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")

	w = s.do("admin", "GET", "/admin/settings/mail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "smtp.example.org")
}
