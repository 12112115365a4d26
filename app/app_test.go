package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"alforge/access"
	"alforge/apperr"
	"alforge/config"
	"alforge/db"
	"alforge/models"
	"alforge/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeSessions map[string]*session.AppSession

func (f fakeSessions) Get(_ context.Context, id string) (*session.AppSession, error) {
	if s, ok := f[id]; ok {
		return s, nil
	}
	return nil, session.ErrNoSession
}

type fakeUsers map[string]*models.User

func (f fakeUsers) FindUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user not found")
}

func newGate() *Gate {
	return &Gate{
		Sessions: fakeSessions{
			"s-rui":  {ID: "s-rui", UserID: "u1"},
			"s-boss": {ID: "s-boss", UserID: "u2"},
			"s-gone": {ID: "s-gone", UserID: "deleted"},
		},
		Users: fakeUsers{
			"u1": {ID: "u1", Username: "rui@example.org", DisplayName: "Rui", Role: models.RoleUser, Active: true},
			"u2": {ID: "u2", Username: "Boss@Example.org", DisplayName: "Boss", Role: models.RoleUser, Active: true},
		},
		Tokens: NewTokens([]byte("test-secret"), time.Hour),
		Config: config.Config{AdminEmails: []string{"boss@example.org"}},
	}
}

func withCookie(sid string) *http.Request { return get("/", sid) }

func get(path, sid string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	r.AddCookie(&http.Cookie{Name: AppSessionCookie, Value: sid})
	return r
}

func TestGateCookie(t *testing.T) {
	g := newGate()
	res, err := g.Resolve(context.Background(), withCookie("s-rui"))
	require.NoError(t, err)
	assert.Equal(t, access.Caller{Authenticated: true, UserID: "u1", Name: "Rui", Email: "rui@example.org", Role: models.RoleUser, Active: true}, res.Caller)
	assert.False(t, res.Bearer)

	// ADMIN_EMAILS promotes
	res, err = g.Resolve(context.Background(), withCookie("s-boss"))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.Caller.Role)

	for _, sid := range []string{"nope", "s-gone"} {
		_, err = g.Resolve(context.Background(), withCookie(sid))
		assert.ErrorIs(t, err, ErrUnauthenticated, sid)
	}
	_, err = g.Resolve(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGateBearer(t *testing.T) {
	g := newGate()
	tok, exp, err := g.Tokens.Issue("u1", "s-rui")
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	res, err := g.Resolve(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "u1", res.Caller.UserID)
	assert.True(t, res.Bearer)

	// token for a session that belongs to someone else
	forged, _, err := g.Tokens.Issue("u1", "s-boss")
	require.NoError(t, err)
	r.Header.Set("Authorization", "Bearer "+forged)
	_, err = g.Resolve(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	r.Header.Set("Authorization", "Bearer garbage")
	_, err = g.Resolve(context.Background(), r)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestTokens(t *testing.T) {
	now := time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
	tk := NewTokens([]byte("k"), time.Hour)
	tk.now = func() time.Time { return now }

	raw, _, err := tk.Issue("u1", "s1")
	require.NoError(t, err)
	c, err := tk.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)
	assert.Equal(t, "s1", c.SessionID)

	tk.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = tk.Parse(raw)
	assert.Error(t, err)

	other := NewTokens([]byte("other"), time.Hour)
	other.now = func() time.Time { return now }
	_, err = other.Parse(raw)
	assert.Error(t, err)

	off := NewTokens(nil, 0)
	assert.False(t, off.Enabled())
	_, _, err = off.Issue("u1", "s1")
	assert.ErrorIs(t, err, ErrTokensDisabled)
}

func TestAuthMiddleware(t *testing.T) {
	g := newGate()
	r := gin.New()
	r.GET("/me", AuthRequired(g), func(c *gin.Context) {
		c.JSON(http.StatusOK, H{"id": CallerFrom(c).UserID, "sid": SessionIDFrom(c)})
	})
	r.GET("/staff", AuthRequired(g), RequireRole(models.RoleGestor), func(c *gin.Context) {
		c.JSON(http.StatusOK, H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, get("/me", "s-rui"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sid":"s-rui"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, get("/staff", "s-rui"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(apperr.KindPermissionDenied))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, get("/staff", "s-boss"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type seenSpy struct {
	allow   bool
	touched []string
}

func (s *seenSpy) ShouldTouchSeen(context.Context, string, time.Duration) (bool, error) {
	return s.allow, nil
}

func (s *seenSpy) TouchUserSeen(_ context.Context, id string) error {
	s.touched = append(s.touched, id)
	return nil
}

func TestTouchLastSeenThrottled(t *testing.T) {
	g := newGate()
	spy := &seenSpy{allow: true}
	r := gin.New()
	r.GET("/ping", AuthRequired(g), TouchLastSeen(spy, spy, time.Minute), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), get("/ping", "s-rui"))
	spy.allow = false
	r.ServeHTTP(httptest.NewRecorder(), get("/ping", "s-rui"))
	assert.Equal(t, []string{"u1"}, spy.touched)
}

func TestBootstrapFirstAdmin(t *testing.T) {
	gdb, err := db.Connect(config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "app.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repo := db.NewRepo(gdb)
	ctx := context.Background()
	cfg := config.Config{BootstrapEmail: "first@example.org", WebOrigin: "https://alforge.example/"}

	link, err := BootstrapFirstAdmin(ctx, cfg, repo)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "https://alforge.example/login?inviteToken="))

	inv, err := repo.GetInviteByToken(ctx, strings.TrimPrefix(link, "https://alforge.example/login?inviteToken="))
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, inv.Role)
	assert.Equal(t, "first@example.org", inv.Email)

	_, err = repo.FindOrCreateUser(ctx, "first@example.org", NewUserID(), models.RoleAdmin)
	require.NoError(t, err)
	link, err = BootstrapFirstAdmin(ctx, cfg, repo)
	require.NoError(t, err)
	assert.Empty(t, link)

	link, err = BootstrapFirstAdmin(ctx, config.Config{}, repo)
	require.NoError(t, err)
	assert.Empty(t, link)
}
