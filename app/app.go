// Package app wires the process-wide dependencies (databases, Redis, WebAuthn, router) and
// the access gate middleware that turns a request credential into an access.Caller.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"alforge/config"
	"alforge/db"
	"alforge/docstore"
	"alforge/notify"
	"alforge/session"
	"alforge/store"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	Repo    *db.Repo
	Lending store.LendingStore
	RDB     *redis.Client
	WA      *webauthn.WebAuthn
	Hub     *notify.Hub
	Config  config.Config

	appSess    *session.AppSessionStore
	ceremonies *session.Store
	tokens     *Tokens
	closers    []func()
}

func (a *App) AppSessions() *session.AppSessionStore { return a.appSess }
func (a *App) Ceremonies() *session.Store           { return a.ceremonies }
func (a *App) Tokens() *Tokens                      { return a.tokens }

func (a *App) Gate() *Gate {
	return &Gate{Sessions: a.appSess, Users: a.Repo, Tokens: a.tokens, Config: a.Config}
}

// OpenLending returns the store that keeps equipment and requisitions. With postgres it is
// the same gorm repo that holds the accounts.
func OpenLending(ctx context.Context, cfg config.Config, repo *db.Repo) (store.LendingStore, func(), error) {
	switch cfg.StoreDriver {
	case "mongo":
		ds, err := docstore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		return ds, func() { _ = ds.Close(context.Background()) }, nil
	case "postgres", "":
		return repo, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	// --- DB ---
	dbConn, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = dbConn
	a.Repo = db.NewRepo(dbConn)
	a.closers = append(a.closers, func() {
		if sqlDB, err := dbConn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	lending, closeLending, err := OpenLending(ctx, cfg, a.Repo)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Lending = lending
	a.closers = append(a.closers, closeLending)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.RDB = rdb
	a.closers = append(a.closers, func() { _ = rdb.Close() })

	// --- WebAuthn RP ---
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.AppName + " Passkeys",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("webauthn: %w", err)
	}
	a.WA = wa

	a.appSess = session.NewAppSessionStore(rdb, cfg.AppTTL)
	a.ceremonies = session.NewStore(rdb, cfg.SessionTTL)
	a.tokens = NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	if !a.tokens.Enabled() {
		log.Printf("JWT_SECRET not set: bearer tokens disabled, cookie sessions only")
	}

	// --- Gin ---
	r := gin.Default()
	useCORS(r, append([]string{cfg.WebOrigin}, cfg.RPOrigins...))
	a.Router = r
	a.Hub = notify.NewHub(sameOrigin(cfg))
	return a, nil
}

// MustNew 启动失败直接退出
func MustNew(ctx context.Context, cfg config.Config) *App {
	a, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("app: %v", err)
	}
	return a
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// sameOrigin lets the websocket upgrade through for the web app and the passkey origins.
func sameOrigin(cfg config.Config) func(r *http.Request) bool {
	allowed := map[string]bool{cfg.WebOrigin: true}
	for _, o := range cfg.RPOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		o := r.Header.Get("Origin")
		return o == "" || allowed[o]
	}
}

// NewUserID 新用户 ID；WebAuthn userHandle 取其 16 字节
func NewUserID() string { return uuid.NewString() }
