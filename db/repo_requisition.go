package db

import (
	"context"
	"errors"

	"alforge/apperr"
	"alforge/models"
	"alforge/store"

	"gorm.io/gorm"
)

// Requisitions

func (r *Repo) CreateRequisition(ctx context.Context, req *models.Requisition) error {
	return translate(r.DB.WithContext(ctx).Create(req).Error, "requisition")
}

func (r *Repo) GetRequisition(ctx context.Context, id string) (*models.Requisition, error) {
	var req models.Requisition
	if err := r.DB.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err, "requisition "+id)
	}
	return &req, nil
}

func (r *Repo) ListRequisitions(ctx context.Context, q store.RequisitionQuery) (store.RequisitionPage, error) {
	qry := r.DB.WithContext(ctx).Model(&models.Requisition{})
	if len(q.States) > 0 {
		qry = qry.Where("state IN ?", q.States)
	}
	if q.RequesterID != "" {
		qry = qry.Where("requester_id = ?", q.RequesterID)
	}

	var total int64
	if err := qry.Count(&total).Error; err != nil {
		return store.RequisitionPage{}, err
	}

	qry = qry.Order("created_at DESC").Order("id ASC")
	if q.Size > 0 {
		page := q.Page
		if page <= 0 {
			page = 1
		}
		qry = qry.Offset((page - 1) * q.Size).Limit(q.Size)
	}

	var items []models.Requisition
	if err := qry.Find(&items).Error; err != nil {
		return store.RequisitionPage{}, err
	}
	return store.RequisitionPage{Total: total, Items: items}, nil
}

func (r *Repo) CountRequisitionsByState(ctx context.Context, requesterID string) (map[models.RequisitionState]int64, error) {
	type row struct {
		State models.RequisitionState
		N     int64
	}
	qry := r.DB.WithContext(ctx).Model(&models.Requisition{}).
		Select("state, COUNT(*) AS n").
		Group("state")
	if requesterID != "" {
		qry = qry.Where("requester_id = ?", requesterID)
	}
	var rows []row
	if err := qry.Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[models.RequisitionState]int64, len(models.RequisitionStates))
	for _, s := range models.RequisitionStates {
		out[s] = 0
	}
	for _, rw := range rows {
		out[rw.State] = rw.N
	}
	return out, nil
}

// UpdateRequisition 条件更新：只有当前状态仍是 from 时才写入
func (r *Repo) UpdateRequisition(ctx context.Context, id string, from models.RequisitionState, fields models.Fields) error {
	upd := make(map[string]any, len(fields))
	for k, v := range fields {
		upd[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&models.Requisition{}).
		Where("id = ? AND state = ?", id, from).
		Updates(upd)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrStale(ctx, &models.Requisition{}, "id = ?", id, "requisition "+id)
	}
	return nil
}

// Allocations

func (r *Repo) CreateAllocation(ctx context.Context, a *models.Allocation) error {
	// 部分唯一索引保证一件装备只有一条有效分配
	err := r.DB.WithContext(ctx).Create(a).Error
	if err != nil && isDuplicate(err) {
		return apperr.Wrap(apperr.KindConflict, err, "equipment %s is already allocated", a.EquipmentCode)
	}
	return err
}

func (r *Repo) GetAllocation(ctx context.Context, requisitionID, code string) (*models.Allocation, error) {
	var a models.Allocation
	err := r.DB.WithContext(ctx).
		Where("requisition_id = ? AND equipment_code = ?", requisitionID, code).
		First(&a).Error
	if err != nil {
		return nil, translate(err, "allocation "+code)
	}
	return &a, nil
}

func (r *Repo) ListAllocations(ctx context.Context, requisitionID string) ([]models.Allocation, error) {
	var out []models.Allocation
	err := r.DB.WithContext(ctx).
		Where("requisition_id = ?", requisitionID).
		Order("equipment_code ASC").
		Find(&out).Error
	return out, err
}

func (r *Repo) FindActiveAllocation(ctx context.Context, code string) (*models.Allocation, error) {
	var a models.Allocation
	err := r.DB.WithContext(ctx).
		Where("equipment_code = ? AND active", code).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *Repo) UpdateAllocation(ctx context.Context, requisitionID, code string, fields models.Fields) error {
	upd := make(map[string]any, len(fields))
	for k, v := range fields {
		upd[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&models.Allocation{}).
		Where("requisition_id = ? AND equipment_code = ?", requisitionID, code).
		Updates(upd)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("allocation %s not found", code)
	}
	return nil
}

func (r *Repo) DeleteAllocation(ctx context.Context, requisitionID, code string) error {
	res := r.DB.WithContext(ctx).
		Where("requisition_id = ? AND equipment_code = ?", requisitionID, code).
		Delete(&models.Allocation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("allocation %s not found", code)
	}
	return nil
}

// CloseAllocations 父单进入终态时释放占用
func (r *Repo) CloseAllocations(ctx context.Context, requisitionID string) error {
	return r.DB.WithContext(ctx).Model(&models.Allocation{}).
		Where("requisition_id = ? AND active", requisitionID).
		Update(models.ColActive, false).Error
}
