package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"alforge/apperr"
	"alforge/config"
	"alforge/models"
	"alforge/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	conn, err := Connect(config.Database{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewRepo(conn)
}

func addEquipment(t *testing.T, r *Repo, code string, mut func(*models.Equipment)) *models.Equipment {
	t.Helper()
	e := &models.Equipment{
		Code:        code,
		UsageCode:   code[:2],
		TypeCode:    code[2:4],
		Name:        "item " + code,
		Status:      models.StatusAvailable,
		Operational: models.OperOperational,
		Condition:   models.GradeGood,
	}
	if mut != nil {
		mut(e)
	}
	require.NoError(t, r.CreateEquipment(context.Background(), e))
	return e
}

func addRequisition(t *testing.T, r *Repo, requester string, state models.RequisitionState) *models.Requisition {
	t.Helper()
	req := &models.Requisition{
		ID:          uuid.NewString(),
		RequesterID: requester,
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
		State:       state,
	}
	require.NoError(t, r.CreateRequisition(context.Background(), req))
	return req
}

func TestCreateEquipmentDuplicate(t *testing.T) {
	r := newTestRepo(t)
	addEquipment(t, r, "0201001", nil)

	err := r.CreateEquipment(context.Background(), &models.Equipment{Code: "0201001", UsageCode: "02", TypeCode: "01", Name: "dup"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestGetEquipmentNotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.GetEquipment(context.Background(), "9999999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateEquipmentVersion(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	addEquipment(t, r, "0201001", nil)

	e, err := r.GetEquipment(ctx, "0201001")
	require.NoError(t, err)
	require.EqualValues(t, 1, e.Version)

	require.NoError(t, r.UpdateEquipment(ctx, e.Code, e.Version, models.Fields{models.ColStatus: models.StatusInUse}))

	// the version read earlier is now stale
	err = r.UpdateEquipment(ctx, e.Code, e.Version, models.Fields{models.ColStatus: models.StatusAvailable})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	err = r.UpdateEquipment(ctx, "0000000", 1, models.Fields{models.ColStatus: models.StatusAvailable})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := r.GetEquipment(ctx, e.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInUse, got.Status)
	assert.EqualValues(t, 2, got.Version)
}

func TestFindEquipmentFiltersAndOrder(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	addEquipment(t, r, "0201001", func(e *models.Equipment) { e.LastRequisitionedAt = &recent })
	addEquipment(t, r, "0201002", func(e *models.Equipment) { e.LastRequisitionedAt = &old })
	addEquipment(t, r, "0201003", nil)
	addEquipment(t, r, "0201004", func(e *models.Equipment) { e.Operational = models.OperHeld })
	addEquipment(t, r, "0201005", func(e *models.Equipment) { e.Status = models.StatusInRepair })
	addEquipment(t, r, "0202001", nil)
	addEquipment(t, r, "0201006", nil)

	req := addRequisition(t, r, "u1", models.StateSubmitted)
	require.NoError(t, r.CreateAllocation(ctx, &models.Allocation{RequisitionID: req.ID, EquipmentCode: "0201006", Active: true}))

	got, err := r.FindEquipment(ctx, store.EquipmentQuery{
		UsageCode:           "02",
		TypeCode:            "01",
		Statuses:            []models.EquipmentStatus{models.StatusAvailable},
		ExcludeOperational:  []models.OperationalCondition{models.OperHeld, models.OperDecommissioned},
		ExcludeReserved:     true,
		ByLastRequisitioned: true,
	})
	require.NoError(t, err)

	var codes []string
	for _, e := range got {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{"0201003", "0201002", "0201001"}, codes)

	got, err = r.FindEquipment(ctx, store.EquipmentQuery{UsageCode: "02", ExcludeCodes: []string{"0201001"}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "0201002", got[0].Code)
}

func TestEquipmentCodesWithPrefix(t *testing.T) {
	r := newTestRepo(t)
	addEquipment(t, r, "0201002", nil)
	addEquipment(t, r, "0201001", nil)
	addEquipment(t, r, "0202001", nil)

	codes, err := r.EquipmentCodesWithPrefix(context.Background(), "0201")
	require.NoError(t, err)
	assert.Equal(t, []string{"0201001", "0201002"}, codes)
}

func TestOneActiveAllocationPerItem(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	addEquipment(t, r, "0201001", nil)
	a := addRequisition(t, r, "u1", models.StateSubmitted)
	b := addRequisition(t, r, "u2", models.StateSubmitted)

	require.NoError(t, r.CreateAllocation(ctx, &models.Allocation{RequisitionID: a.ID, EquipmentCode: "0201001", Active: true}))
	err := r.CreateAllocation(ctx, &models.Allocation{RequisitionID: b.ID, EquipmentCode: "0201001", Active: true})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	held, err := r.FindActiveAllocation(ctx, "0201001")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, a.ID, held.RequisitionID)

	// closed allocations free the item
	require.NoError(t, r.CloseAllocations(ctx, a.ID))
	held, err = r.FindActiveAllocation(ctx, "0201001")
	require.NoError(t, err)
	assert.Nil(t, held)
	require.NoError(t, r.CreateAllocation(ctx, &models.Allocation{RequisitionID: b.ID, EquipmentCode: "0201001", Active: true}))
}

func TestAllocationUpdateAndDelete(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	addEquipment(t, r, "0201001", nil)
	req := addRequisition(t, r, "u1", models.StateSubmitted)
	require.NoError(t, r.CreateAllocation(ctx, &models.Allocation{RequisitionID: req.ID, EquipmentCode: "0201001", Active: true}))

	require.NoError(t, r.UpdateAllocation(ctx, req.ID, "0201001", models.Fields{models.ColNotes: "strap missing"}))
	a, err := r.GetAllocation(ctx, req.ID, "0201001")
	require.NoError(t, err)
	assert.Equal(t, "strap missing", a.Notes)

	require.NoError(t, r.DeleteAllocation(ctx, req.ID, "0201001"))
	assert.ErrorIs(t, r.DeleteAllocation(ctx, req.ID, "0201001"), apperr.ErrNotFound)
	assert.ErrorIs(t, r.UpdateAllocation(ctx, req.ID, "0201001", models.Fields{models.ColNotes: "x"}), apperr.ErrNotFound)

	list, err := r.ListAllocations(ctx, req.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateRequisitionConditional(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	req := addRequisition(t, r, "u1", models.StateSubmitted)

	require.NoError(t, r.UpdateRequisition(ctx, req.ID, models.StateSubmitted, models.Fields{models.ColState: models.StateInPreparation}))
	err := r.UpdateRequisition(ctx, req.ID, models.StateSubmitted, models.Fields{models.ColState: models.StateCancelled})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	err = r.UpdateRequisition(ctx, "missing", models.StateSubmitted, models.Fields{models.ColState: models.StateCancelled})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := r.GetRequisition(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateInPreparation, got.State)
}

func TestListAndCountRequisitions(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	addRequisition(t, r, "u1", models.StateSubmitted)
	addRequisition(t, r, "u1", models.StateDelivered)
	addRequisition(t, r, "u2", models.StateSubmitted)

	page, err := r.ListRequisitions(ctx, store.RequisitionQuery{RequesterID: "u1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Items, 2)

	page, err = r.ListRequisitions(ctx, store.RequisitionQuery{States: []models.RequisitionState{models.StateSubmitted}, Page: 1, Size: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Items, 1)

	counts, err := r.CountRequisitionsByState(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[models.StateSubmitted])
	assert.EqualValues(t, 1, counts[models.StateDelivered])
	assert.EqualValues(t, 0, counts[models.StateReturned])

	counts, err = r.CountRequisitionsByState(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.StateSubmitted])
	assert.EqualValues(t, 0, counts[models.StateDelivered])
}

func TestAtomicRollsBack(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	addEquipment(t, r, "0201001", nil)
	boom := errors.New("boom")

	err := r.Atomic(ctx, func(ctx context.Context, tx store.LendingStore) error {
		if err := tx.UpdateEquipment(ctx, "0201001", 1, models.Fields{models.ColStatus: models.StatusInUse}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	e, err := r.GetEquipment(ctx, "0201001")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, e.Status)
	assert.EqualValues(t, 1, e.Version)
}

func TestUsersAndInvites(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	inv, err := r.CreateInvite(ctx, " New@Example.org ", "tok", models.RoleGestor, time.Now().Add(time.Hour), "admin")
	require.NoError(t, err)
	assert.Equal(t, "new@example.org", inv.Email)

	got, err := r.GetInviteByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, models.RoleGestor, got.Role)
	require.NoError(t, r.MarkInviteUsed(ctx, "tok"))
	assert.ErrorIs(t, r.MarkInviteUsed(ctx, "tok"), apperr.ErrConflict)

	u, err := r.FindOrCreateUser(ctx, "New@Example.org", uuid.NewString(), got.Role)
	require.NoError(t, err)
	assert.Equal(t, models.RoleGestor, u.Role)
	assert.True(t, u.Active)

	again, err := r.FindOrCreateUser(ctx, "new@example.org", uuid.NewString(), models.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	inactive := false
	name := "Nova"
	updated, err := r.UpdateUser(ctx, u.ID, UserPatch{DisplayName: &name, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Nova", updated.DisplayName)
	assert.False(t, updated.Active)

	emails, err := r.ListStaffEmails(ctx)
	require.NoError(t, err)
	assert.Empty(t, emails)

	list, err := r.ListUsers(ctx, "nov", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)

	require.NoError(t, r.DeleteUserByID(ctx, u.ID))
	assert.ErrorIs(t, r.DeleteUserByID(ctx, u.ID), apperr.ErrNotFound)
}

func TestCategoriesSettingsAndOverrides(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, r.UpsertCategories(ctx, []models.Category{
		{Kind: models.CategoryUsage, Code: "02", Name: "Camping"},
		{Kind: models.CategoryType, Code: "01", Name: "Tent"},
	}))
	require.NoError(t, r.UpsertCategories(ctx, []models.Category{{Kind: models.CategoryUsage, Code: "02", Name: "Acampamento"}}))

	usage, err := r.ListCategories(ctx, models.CategoryUsage)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, "Acampamento", usage[0].Name)

	s, err := r.GetMailSettings(ctx)
	require.NoError(t, err)
	assert.Nil(t, s)
	require.NoError(t, r.SaveMailSettings(ctx, &models.MailSettings{Host: "smtp.example.org", Port: "587", Enabled: true}))
	s, err = r.GetMailSettings(ctx)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "smtp.example.org", s.Host)

	reason := "broken pole"
	_, err = r.LogOverride(ctx, "0201001", models.OverrideHold, "u1", "Ana", &reason)
	require.NoError(t, err)
	logs, err := r.ListOverrides(ctx, "0201001", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.OverrideHold, logs[0].Action)
}
