package db

import (
	"alforge/models"
	"context"
	"fmt"
)

func (r *Repo) LogOverride(ctx context.Context, code string, action models.OverrideAction, actorID, actorName string, reason *string) (*models.OverrideLog, error) {
	entry := &models.OverrideLog{
		EquipmentCode: code,
		Action:        action,
		ActorID:       actorID,
		ActorName:     actorName,
		Reason:        reason,
	}
	if err := r.DB.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, fmt.Errorf("insert override log: %w", err)
	}
	return entry, nil
}

func (r *Repo) ListOverrides(ctx context.Context, code string, limit int) ([]models.OverrideLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(limit)
	if code != "" {
		q = q.Where("equipment_code = ?", code)
	}
	var out []models.OverrideLog
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
