package db

import (
	"context"

	"alforge/models"

	"gorm.io/gorm/clause"
)

func (r *Repo) ListCategories(ctx context.Context, kind models.CategoryKind) ([]models.Category, error) {
	q := r.DB.WithContext(ctx).Order("kind ASC").Order("code ASC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var out []models.Category
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertCategories 按 (kind, code) 覆盖名称
func (r *Repo) UpsertCategories(ctx context.Context, cats []models.Category) error {
	if len(cats) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(&cats).Error
}
