package app

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"alforge/access"
	"alforge/config"
	"alforge/models"
	"alforge/session"
)

const AppSessionCookie = "app_session"

var ErrUnauthenticated = errors.New("unauthenticated")

type SessionLookup interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
}

type UserLookup interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// Gate resolves the request credential (session cookie or bearer JWT) into a Caller.
// Bearer tokens carry a session id; the session must still exist in Redis.
type Gate struct {
	Sessions SessionLookup
	Users    UserLookup
	Tokens   *Tokens
	Config   config.Config
}

// Resolved is the outcome of a successful Resolve.
type Resolved struct {
	Caller    access.Caller
	SessionID string
	Bearer    bool
}

func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (g *Gate) Resolve(ctx context.Context, r *http.Request) (*Resolved, error) {
	var (
		sid     string
		subject string
		isJWT   bool
	)
	if raw := bearer(r); raw != "" {
		claims, err := g.Tokens.Parse(raw)
		if err != nil {
			return nil, ErrUnauthenticated
		}
		sid, subject, isJWT = claims.SessionID, claims.Subject, true
	} else if ck, err := r.Cookie(AppSessionCookie); err == nil && ck.Value != "" {
		sid = ck.Value
	} else {
		return nil, ErrUnauthenticated
	}

	as, err := g.Sessions.Get(ctx, sid)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	if isJWT && as.UserID != subject {
		return nil, ErrUnauthenticated
	}

	// 确认用户仍存在
	u, err := g.Users.FindUserByID(ctx, as.UserID)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	return &Resolved{Caller: g.callerFor(u), SessionID: sid, Bearer: isJWT}, nil
}

func (g *Gate) callerFor(u *models.User) access.Caller {
	email := u.Email
	if email == "" {
		email = u.Username
	}
	role := u.Role
	// ADMIN_EMAILS 中的账号始终是管理员
	if g.Config.IsAdminEmail(u.Username) {
		role = models.RoleAdmin
	}
	return access.Caller{
		Authenticated: true,
		UserID:        u.ID,
		Name:          u.DisplayName,
		Email:         strings.ToLower(email),
		Role:          role,
		Active:        u.Active,
	}
}
