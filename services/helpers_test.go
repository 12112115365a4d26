package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"alforge/access"
	"alforge/config"
	"alforge/db"
	"alforge/models"
	"alforge/notify"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

var (
	admin  = access.Caller{Authenticated: true, UserID: "a1", Name: "Admin", Email: "admin@example.org", Role: models.RoleAdmin, Active: true}
	gestor = access.Caller{Authenticated: true, UserID: "g1", Name: "Gestor", Email: "gestor@example.org", Role: models.RoleGestor, Active: true}
	member = access.Caller{Authenticated: true, UserID: "u1", Name: "Rui", Email: "rui@example.org", Role: models.RoleUser, Active: true}
	other  = access.Caller{Authenticated: true, UserID: "u2", Name: "Ana", Email: "ana@example.org", Role: models.RoleUser, Active: true}
)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recorder) Send(_ context.Context, m notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Kind
	for _, m := range r.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type env struct {
	gdb       *gorm.DB
	repo      *db.Repo
	equipment *EquipmentService
	lifecycle *LifecycleService
	sent      *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb, err := db.Connect(config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "services.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repo := db.NewRepo(gdb)
	rec := &recorder{}
	return &env{
		gdb:  gdb,
		repo: repo,
		equipment: &EquipmentService{
			Store: repo,
			Codes: &CodeGenerator{Codes: repo},
			Audit: repo,
			Clock: fixedClock,
		},
		lifecycle: &LifecycleService{
			Store:      repo,
			Notifier:   rec,
			Staff:      repo,
			StaffEmail: "geral@example.org",
			Clock:      fixedClock,
		},
		sent: rec,
	}
}

func (e *env) addItem(t *testing.T, code string, status models.EquipmentStatus, oper models.OperationalCondition) *models.Equipment {
	t.Helper()
	ctx := context.Background()
	it, err := e.equipment.Create(ctx, gestor, NewEquipment{Code: code, Name: "Item " + code})
	require.NoError(t, err)
	if status == "" && oper == "" {
		return it
	}
	// 直接写库，测试需要任意的 (status, operational) 组合
	fields := models.Fields{}
	if status != "" {
		fields[models.ColStatus] = status
	}
	if oper != "" {
		fields[models.ColOperational] = oper
	}
	require.NoError(t, e.repo.UpdateEquipment(ctx, code, it.Version, fields))
	return e.item(t, code)
}

func (e *env) submit(t *testing.T, c access.Caller) *models.Requisition {
	t.Helper()
	r, err := e.lifecycle.Submit(context.Background(), c, SubmitInput{
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		Notes:     "weekend camp",
	})
	require.NoError(t, err)
	return r
}

// forceState moves a requisition without going through the lifecycle.
func (e *env) forceState(t *testing.T, id string, to models.RequisitionState) {
	t.Helper()
	r, err := e.repo.GetRequisition(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, e.repo.UpdateRequisition(context.Background(), id, r.State, models.Fields{models.ColState: to}))
}

func (e *env) state(t *testing.T, id string) models.RequisitionState {
	t.Helper()
	r, err := e.repo.GetRequisition(context.Background(), id)
	require.NoError(t, err)
	return r.State
}

func (e *env) item(t *testing.T, code string) *models.Equipment {
	t.Helper()
	it, err := e.repo.GetEquipment(context.Background(), code)
	require.NoError(t, err)
	return it
}

// deliver walks a submitted requisition with the given items up to DELIVERED.
func (e *env) deliver(t *testing.T, id string, codes ...string) {
	t.Helper()
	ctx := context.Background()
	for _, code := range codes {
		_, err := e.lifecycle.AllocateItem(ctx, gestor, id, code)
		require.NoError(t, err)
	}
	_, err := e.lifecycle.BeginPreparation(ctx, gestor, id)
	require.NoError(t, err)
	_, err = e.lifecycle.MarkReady(ctx, gestor, id)
	require.NoError(t, err)
	_, err = e.lifecycle.Deliver(ctx, gestor, id)
	require.NoError(t, err)
}
