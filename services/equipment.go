package services

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"alforge/access"
	"alforge/apperr"
	"alforge/models"
	"alforge/store"
)

const generateAttempts = 3

// OverrideLogger records manager overrides of an item's status.
type OverrideLogger interface {
	LogOverride(ctx context.Context, code string, action models.OverrideAction, actorID, actorName string, reason *string) (*models.OverrideLog, error)
	ListOverrides(ctx context.Context, code string, limit int) ([]models.OverrideLog, error)
}

type EquipmentService struct {
	Store store.LendingStore
	Codes *CodeGenerator
	Audit OverrideLogger
	Clock Clock
}

type NewEquipment struct {
	Code        string                      `json:"code"`
	UsageCode   string                      `json:"usageCode"`
	TypeCode    string                      `json:"typeCode"`
	Name        string                      `json:"name"`
	Description string                      `json:"description"`
	Notes       string                      `json:"notes"`
	Status      models.EquipmentStatus      `json:"status"`
	Operational models.OperationalCondition `json:"operational"`
	Condition   models.ConditionGrade       `json:"condition"`
	AcquiredAt  *time.Time                  `json:"acquiredAt"`
}

type EquipmentPatch struct {
	Name             *string                `json:"name"`
	Description      *string                `json:"description"`
	Notes            *string                `json:"notes"`
	Condition        *models.ConditionGrade `json:"condition"`
	AcquiredAt       *time.Time             `json:"acquiredAt"`
	DecommissionedAt *time.Time             `json:"decommissionedAt"`
}

type AvailableFilter struct {
	UsageCode string
	TypeCode  string
	Text      string
	Exclude   []string
	Limit     int
}

type InventoryFilter struct {
	UsageCode string
	TypeCode  string
	Status    models.EquipmentStatus
	Text      string
}

func parseCode(code string) (usage, typ string, seq int, err error) {
	if len(code) != 7 {
		return "", "", 0, apperr.InvalidArgument("equipment code must have 7 digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", "", 0, apperr.InvalidArgument("equipment code must have 7 digits")
		}
	}
	seq, _ = strconv.Atoi(code[4:])
	if code[:2] == "00" || code[2:4] == "00" || seq == 0 {
		return "", "", 0, apperr.InvalidArgument("equipment code %s has an empty part", code)
	}
	return code[:2], code[2:4], seq, nil
}

func (s *EquipmentService) Create(ctx context.Context, c access.Caller, in NewEquipment) (*models.Equipment, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	usage, typ, seq, err := parseCode(strings.TrimSpace(in.Code))
	if err != nil {
		return nil, err
	}
	if (in.UsageCode != "" && NormalizeCategoryCode(in.UsageCode) != usage) ||
		(in.TypeCode != "" && NormalizeCategoryCode(in.TypeCode) != typ) {
		return nil, apperr.InvalidArgument("equipment code %s does not match its categories", in.Code)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidArgument("name is required")
	}

	e := &models.Equipment{
		Code:        in.Code,
		UsageCode:   usage,
		TypeCode:    typ,
		Sequence:    seq,
		Name:        name,
		Description: in.Description,
		Notes:       in.Notes,
		Status:      models.StatusAvailable,
		Operational: models.OperOperational,
		Condition:   models.GradeGood,
		AcquiredAt:  in.AcquiredAt,
		Version:     1,
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, apperr.InvalidArgument("unknown status %q", in.Status)
		}
		e.Status = in.Status
	}
	if in.Operational != "" {
		if !in.Operational.Valid() {
			return nil, apperr.InvalidArgument("unknown operational condition %q", in.Operational)
		}
		e.Operational = in.Operational
	}
	switch {
	case e.Status == models.StatusInUse:
		// IN_USE 只能由 Deliver 产生，否则没有任何领用单能把它还回来
		return nil, apperr.InvalidArgument("new equipment cannot start IN_USE")
	case e.Status == models.StatusDecommissioned, e.Operational == models.OperDecommissioned:
		e.Status, e.Operational = models.StatusDecommissioned, models.OperDecommissioned
	}
	if in.Condition != "" {
		if !in.Condition.Valid() {
			return nil, apperr.InvalidArgument("unknown condition grade %q", in.Condition)
		}
		e.Condition = in.Condition
	}

	now := s.Clock.now()
	if e.Decommissioned() {
		e.DecommissionedAt = timePtr(now)
	}
	e.CreatedAt, e.UpdatedAt = now, now
	if err := s.Store.CreateEquipment(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateWithGeneratedCode numbers the item automatically. A lost race for the same code
// is retried with a fresh code a bounded number of times.
func (s *EquipmentService) CreateWithGeneratedCode(ctx context.Context, c access.Caller, in NewEquipment) (*models.Equipment, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	var lastErr error
	for attempt := 0; attempt < generateAttempts; attempt++ {
		code, err := s.Codes.Next(ctx, in.UsageCode, in.TypeCode)
		if err != nil {
			return nil, err
		}
		in.Code = code
		e, err := s.Create(ctx, c, in)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *EquipmentService) NextCode(ctx context.Context, c access.Caller, usage, typ string) (string, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return "", err
	}
	return s.Codes.Next(ctx, usage, typ)
}

func (s *EquipmentService) Get(ctx context.Context, c access.Caller, code string) (*models.Equipment, error) {
	if err := access.RequireReader(c); err != nil {
		return nil, err
	}
	return s.Store.GetEquipment(ctx, code)
}

// UpdateFields edits descriptive fields only. Status moves go through the override methods
// and the requisition lifecycle.
func (s *EquipmentService) UpdateFields(ctx context.Context, c access.Caller, code string, p EquipmentPatch) (*models.Equipment, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	e, err := s.Store.GetEquipment(ctx, code)
	if err != nil {
		return nil, err
	}

	fields := models.Fields{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, apperr.InvalidArgument("name is required")
		}
		fields[models.ColName] = name
	}
	if p.Description != nil {
		fields[models.ColDescription] = *p.Description
	}
	if p.Notes != nil {
		fields[models.ColNotes] = *p.Notes
	}
	if p.Condition != nil {
		if !p.Condition.Valid() {
			return nil, apperr.InvalidArgument("unknown condition grade %q", *p.Condition)
		}
		fields[models.ColCondition] = *p.Condition
	}
	if p.AcquiredAt != nil {
		fields[models.ColAcquiredAt] = p.AcquiredAt.UTC()
	}
	if p.DecommissionedAt != nil {
		fields[models.ColDecommissionedAt] = p.DecommissionedAt.UTC()
	}
	if len(fields) == 0 {
		return e, nil
	}
	fields[models.ColUpdatedAt] = s.Clock.now()

	if err := s.Store.UpdateEquipment(ctx, code, e.Version, fields); err != nil {
		return nil, err
	}
	return s.Store.GetEquipment(ctx, code)
}

// FindAvailable lists allocatable items that are not reserved by an open requisition,
// never-requisitioned first, then the longest idle.
func (s *EquipmentService) FindAvailable(ctx context.Context, c access.Caller, f AvailableFilter) ([]models.Equipment, error) {
	if err := access.RequireReader(c); err != nil {
		return nil, err
	}
	q := store.EquipmentQuery{
		UsageCode:           NormalizeCategoryCode(f.UsageCode),
		TypeCode:            NormalizeCategoryCode(f.TypeCode),
		Statuses:            []models.EquipmentStatus{models.StatusAvailable},
		ExcludeOperational:  []models.OperationalCondition{models.OperHeld, models.OperDecommissioned},
		ExcludeCodes:        f.Exclude,
		ExcludeReserved:     true,
		ByLastRequisitioned: true,
	}
	text := strings.TrimSpace(f.Text)
	if text == "" {
		q.Limit = f.Limit
	}
	items, err := s.Store.FindEquipment(ctx, q)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return items, nil
	}
	return filterText(items, text, f.Limit), nil
}

func (s *EquipmentService) List(ctx context.Context, c access.Caller, f InventoryFilter) ([]models.Equipment, error) {
	if err := access.RequireReader(c); err != nil {
		return nil, err
	}
	q := store.EquipmentQuery{
		UsageCode: NormalizeCategoryCode(f.UsageCode),
		TypeCode:  NormalizeCategoryCode(f.TypeCode),
	}
	if f.Status != "" {
		if !f.Status.Valid() {
			return nil, apperr.InvalidArgument("unknown status %q", f.Status)
		}
		q.Statuses = []models.EquipmentStatus{f.Status}
	}
	items, err := s.Store.FindEquipment(ctx, q)
	if err != nil {
		return nil, err
	}
	return filterText(items, f.Text, 0), nil
}

func filterText(items []models.Equipment, text string, limit int) []models.Equipment {
	out := items[:0]
	for _, e := range items {
		if matchesText(text, e.Code, e.Name, e.Description, e.Notes) {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}

// override applies a manager's direct status change and records it.
func (s *EquipmentService) override(ctx context.Context, c access.Caller, code string, action models.OverrideAction, reason string,
	change func(e *models.Equipment, now time.Time) (models.Fields, error)) (*models.Equipment, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	e, err := s.Store.GetEquipment(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.Clock.now()
	fields, err := change(e, now)
	if err != nil {
		return nil, err
	}
	fields[models.ColUpdatedAt] = now
	if err := s.Store.UpdateEquipment(ctx, code, e.Version, fields); err != nil {
		return nil, err
	}

	if s.Audit != nil {
		var why *string
		if r := strings.TrimSpace(reason); r != "" {
			why = &r
		}
		if _, err := s.Audit.LogOverride(ctx, code, action, c.UserID, c.Name, why); err != nil {
			log.Printf("equipment %s: override log failed: %v", code, err)
		}
	}
	return s.Store.GetEquipment(ctx, code)
}

func (s *EquipmentService) MarkDecommissioned(ctx context.Context, c access.Caller, code, reason string) (*models.Equipment, error) {
	return s.override(ctx, c, code, models.OverrideDecommission, reason, func(e *models.Equipment, now time.Time) (models.Fields, error) {
		if e.Status == models.StatusDecommissioned && e.Operational == models.OperDecommissioned {
			return nil, apperr.InvalidTransition("equipment %s is already decommissioned", e.Code)
		}
		if e.Status == models.StatusInUse {
			return nil, apperr.InvalidTransition("equipment %s is in use", e.Code)
		}
		return models.Fields{
			models.ColStatus:           models.StatusDecommissioned,
			models.ColOperational:      models.OperDecommissioned,
			models.ColDecommissionedAt: now,
		}, nil
	})
}

func (s *EquipmentService) Reactivate(ctx context.Context, c access.Caller, code, reason string) (*models.Equipment, error) {
	return s.override(ctx, c, code, models.OverrideReactivate, reason, func(e *models.Equipment, _ time.Time) (models.Fields, error) {
		if !e.Decommissioned() {
			return nil, apperr.InvalidTransition("equipment %s is not decommissioned", e.Code)
		}
		return models.Fields{
			models.ColStatus:           models.StatusAvailable,
			models.ColOperational:      models.OperOperational,
			models.ColDecommissionedAt: nil,
		}, nil
	})
}

// Hold takes an item out of circulation without touching its status; a held item coming
// back from a requisition goes to repair.
func (s *EquipmentService) Hold(ctx context.Context, c access.Caller, code, reason string) (*models.Equipment, error) {
	return s.override(ctx, c, code, models.OverrideHold, reason, func(e *models.Equipment, _ time.Time) (models.Fields, error) {
		if e.Decommissioned() {
			return nil, apperr.InvalidTransition("equipment %s is decommissioned", e.Code)
		}
		if e.Operational == models.OperHeld {
			return nil, apperr.InvalidTransition("equipment %s is already held", e.Code)
		}
		return models.Fields{models.ColOperational: models.OperHeld}, nil
	})
}

func (s *EquipmentService) ReleaseHold(ctx context.Context, c access.Caller, code string) (*models.Equipment, error) {
	return s.override(ctx, c, code, models.OverrideRelease, "", func(e *models.Equipment, _ time.Time) (models.Fields, error) {
		if e.Operational != models.OperHeld {
			return nil, apperr.InvalidTransition("equipment %s is not held", e.Code)
		}
		return models.Fields{models.ColOperational: models.OperOperational}, nil
	})
}

func (s *EquipmentService) FinishRepair(ctx context.Context, c access.Caller, code string) (*models.Equipment, error) {
	return s.override(ctx, c, code, models.OverrideRepaired, "", func(e *models.Equipment, _ time.Time) (models.Fields, error) {
		if e.Status != models.StatusInRepair || e.Operational == models.OperDecommissioned {
			return nil, apperr.InvalidTransition("equipment %s is not in repair", e.Code)
		}
		return models.Fields{
			models.ColStatus:      models.StatusAvailable,
			models.ColOperational: models.OperOperational,
		}, nil
	})
}

// History lists the overrides applied to an item, newest first.
func (s *EquipmentService) History(ctx context.Context, c access.Caller, code string, limit int) ([]models.OverrideLog, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return nil, err
	}
	if _, err := s.Store.GetEquipment(ctx, code); err != nil {
		return nil, err
	}
	if s.Audit == nil {
		return []models.OverrideLog{}, nil
	}
	return s.Audit.ListOverrides(ctx, code, limit)
}
