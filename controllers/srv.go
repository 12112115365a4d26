// controllers/srv.go
package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"alforge/app"
	"alforge/config"
	"alforge/db"
	"alforge/models"
	"alforge/notify"
	"alforge/services"
	"alforge/session"
	"alforge/store"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
)

type Srv struct {
	WA        *webauthn.WebAuthn
	Repo      *db.Repo
	Sess      *session.Store
	AppSess   *session.AppSessionStore
	Tokens    *app.Tokens
	Hub       *notify.Hub
	WebOrigin string
	Cfg       config.Config

	Equipment *services.EquipmentService
	Lifecycle *services.LifecycleService
	Users     *services.UserService
	Catalog   *services.CatalogService
	Export    *services.ExportService
}

// wire builds the service layer over the account repo and the lending store.
func (s *Srv) wire(lending store.LendingStore, notifier notify.Notifier, mailer services.InviteMailer) {
	s.Equipment = &services.EquipmentService{
		Store: lending,
		Codes: &services.CodeGenerator{Codes: lending},
		Audit: s.Repo,
	}
	s.Lifecycle = &services.LifecycleService{
		Store:      lending,
		Notifier:   notifier,
		Staff:      s.Repo,
		StaffEmail: s.Cfg.StaffEmail,
	}
	var revoker services.SessionRevoker
	if s.AppSess != nil {
		revoker = s.AppSess
	}
	s.Users = &services.UserService{
		Accounts:  s.Repo,
		Sessions:  revoker,
		Mailer:    mailer,
		WebOrigin: s.WebOrigin,
	}
	s.Catalog = &services.CatalogService{Categories: s.Repo, Settings: s.Repo}
	s.Export = &services.ExportService{Store: lending}
}

// NewSrv 只带业务服务，不含 WebAuthn / Redis（命令行与测试用）
func NewSrv(cfg config.Config, repo *db.Repo, lending store.LendingStore, notifier notify.Notifier, mailer services.InviteMailer) *Srv {
	s := &Srv{Repo: repo, WebOrigin: cfg.WebOrigin, Cfg: cfg}
	s.wire(lending, notifier, mailer)
	return s
}

func GetSrv(a *app.App) *Srv {
	s := &Srv{
		WA:        a.WA,
		Repo:      a.Repo,
		Sess:      a.Ceremonies(),
		AppSess:   a.AppSessions(),
		Tokens:    a.Tokens(),
		Hub:       a.Hub,
		WebOrigin: a.Config.WebOrigin,
		Cfg:       a.Config,
	}
	mailer := &notify.Mailer{Settings: a.Repo, Env: a.Config.SMTP, AppName: a.Config.AppName}
	s.wire(a.Lending, notify.Multi{mailer, a.Hub}, mailer)
	return s
}

// --- helpers ---

// 统一设置业务会话 Cookie
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	secure := strings.HasPrefix(s.WebOrigin, "https://")
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
		MaxAge:   int(maxAge / time.Second),
	})
}

// 登录成功：创建会话 + 触发登录快照
func (s *Srv) issueSession(ctx context.Context, w http.ResponseWriter, userID string, ip, ua string) error {
	_ = s.Repo.TouchUserLogin(ctx, userID, ip, ua) // 不阻塞
	as, err := s.AppSess.Create(ctx, uuid.NewString(), userID)
	if err != nil {
		return err
	}
	s.setAppCookie(w, as.ID, s.AppSess.TTL())
	return nil
}

// WebAuthn: DB user -> waUser
type waUser struct {
	user  models.User
	creds []webauthn.Credential
}

func (u *waUser) WebAuthnID() []byte                         { id, _ := uuid.Parse(u.user.ID); return id[:] }
func (u *waUser) WebAuthnName() string                       { return u.user.Username }
func (u *waUser) WebAuthnDisplayName() string                { return u.user.DisplayName }
func (u *waUser) WebAuthnIcon() string                       { return "" }
func (u *waUser) WebAuthnCredentials() []webauthn.Credential { return u.creds }

func toWaCred(c models.Credential) webauthn.Credential {
	return webauthn.Credential{
		ID:              c.CredentialID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Authenticator: webauthn.Authenticator{
			AAGUID:       c.AAGUID,
			SignCount:    c.SignCount,
			CloneWarning: c.CloneWarning,
		},
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
	}
}

func fromWaCred(userID string, cred *webauthn.Credential) *models.Credential {
	return &models.Credential{
		UserID:          userID,
		CredentialID:    cred.ID,
		PublicKey:       cred.PublicKey,
		AttestationType: cred.AttestationType,
		AAGUID:          cred.Authenticator.AAGUID,
		SignCount:       cred.Authenticator.SignCount,
		CloneWarning:    cred.Authenticator.CloneWarning,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}
}

func (s *Srv) waUserFor(ctx context.Context, u *models.User) *waUser {
	cs, _ := s.Repo.LoadUserCredentials(ctx, u.ID)
	ws := make([]webauthn.Credential, 0, len(cs))
	for _, c := range cs {
		ws = append(ws, toWaCred(c))
	}
	return &waUser{user: *u, creds: ws}
}

func (s *Srv) loadWAUserByID(ctx context.Context, id string) (*waUser, error) {
	u, err := s.Repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u), nil
}

func (s *Srv) loadWAUserByUsername(ctx context.Context, username string) (*waUser, error) {
	u, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.waUserFor(ctx, u), nil
}
