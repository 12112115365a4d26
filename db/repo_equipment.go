package db

import (
	"context"
	"time"

	"alforge/apperr"
	"alforge/models"
	"alforge/store"

	"gorm.io/gorm"
)

var _ store.LendingStore = (*Repo)(nil)

// Atomic 在同一个事务里执行 fn；fn 只能使用传入的 tx
func (r *Repo) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.LendingStore) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &Repo{DB: tx})
	})
}

// Equipment

func (r *Repo) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	if e.Version == 0 {
		e.Version = 1
	}
	return translate(r.DB.WithContext(ctx).Create(e).Error, "equipment "+e.Code)
}

func (r *Repo) GetEquipment(ctx context.Context, code string) (*models.Equipment, error) {
	var e models.Equipment
	if err := r.DB.WithContext(ctx).First(&e, "code = ?", code).Error; err != nil {
		return nil, translate(err, "equipment "+code)
	}
	return &e, nil
}

func (r *Repo) FindEquipment(ctx context.Context, q store.EquipmentQuery) ([]models.Equipment, error) {
	qry := r.DB.WithContext(ctx).Model(&models.Equipment{})
	if q.UsageCode != "" {
		qry = qry.Where("usage_code = ?", q.UsageCode)
	}
	if q.TypeCode != "" {
		qry = qry.Where("type_code = ?", q.TypeCode)
	}
	if len(q.Statuses) > 0 {
		qry = qry.Where("status IN ?", q.Statuses)
	}
	if len(q.ExcludeOperational) > 0 {
		qry = qry.Where("operational NOT IN ?", q.ExcludeOperational)
	}
	if len(q.ExcludeCodes) > 0 {
		qry = qry.Where("code NOT IN ?", q.ExcludeCodes)
	}
	if q.ExcludeReserved {
		qry = qry.Where("code NOT IN (?)",
			r.DB.Table(models.AllocationTable).Select("equipment_code").Where("active"))
	}

	if q.ByLastRequisitioned {
		// 从未被借过的排最前，其次最久未借
		qry = qry.Order("last_requisitioned_at IS NOT NULL").
			Order("last_requisitioned_at ASC")
	}
	qry = qry.Order("code ASC")
	if q.Limit > 0 {
		qry = qry.Limit(q.Limit)
	}

	var out []models.Equipment
	if err := qry.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) EquipmentCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var codes []string
	err := r.DB.WithContext(ctx).Model(&models.Equipment{}).
		Where("code LIKE ?", prefix+"%").
		Order("code ASC").
		Pluck("code", &codes).Error
	return codes, err
}

// UpdateEquipment 乐观锁：只有 version 未变时才写入，并把 version +1
func (r *Repo) UpdateEquipment(ctx context.Context, code string, version int64, fields models.Fields) error {
	upd := map[string]any{}
	for k, v := range fields {
		upd[k] = v
	}
	if _, ok := upd[models.ColUpdatedAt]; !ok {
		upd[models.ColUpdatedAt] = time.Now().UTC()
	}
	upd["version"] = gorm.Expr("version + 1")

	res := r.DB.WithContext(ctx).Model(&models.Equipment{}).
		Where("code = ? AND version = ?", code, version).
		Updates(upd)
	if res.Error != nil {
		return translate(res.Error, "equipment "+code)
	}
	if res.RowsAffected == 0 {
		return r.missOrStale(ctx, &models.Equipment{}, "code = ?", code, "equipment "+code)
	}
	return nil
}

// missOrStale tells a missing row from a lost conditional write.
func (r *Repo) missOrStale(ctx context.Context, model any, where string, key any, what string) error {
	var n int64
	if err := r.DB.WithContext(ctx).Model(model).Where(where, key).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Conflict("%s was modified concurrently", what)
}
