// db/repo_users_admin.go
package db

import (
	"alforge/models"
	"context"
	"strings"
)

type UserPatch struct {
	DisplayName *string
	Email       *string
	Role        *models.Role
	Active      *bool
}

func (r *Repo) UpdateUser(ctx context.Context, userID string, p UserPatch) (*models.User, error) {
	upd := map[string]any{}
	if p.DisplayName != nil {
		upd["display_name"] = strings.TrimSpace(*p.DisplayName)
	}
	if p.Email != nil {
		upd["email"] = strings.ToLower(strings.TrimSpace(*p.Email))
	}
	if p.Role != nil {
		upd["role"] = *p.Role
	}
	if p.Active != nil {
		upd["active"] = *p.Active
	}
	if len(upd) > 0 {
		if err := r.DB.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", userID).
			Updates(upd).Error; err != nil {
			return nil, err
		}
	}
	return r.FindUserByID(ctx, userID)
}

func (r *Repo) SetUserRole(ctx context.Context, userID string, role models.Role) error {
	return r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("role", role).Error
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ? AND active", models.RoleAdmin).
		Count(&n).Error
	return n, err
}

// ListStaffEmails 返回所有有效的管理员/器材管理员邮箱
func (r *Repo) ListStaffEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("role IN ? AND active AND email <> ''", []models.Role{models.RoleAdmin, models.RoleGestor}).
		Order("email ASC").
		Pluck("email", &emails).Error
	return emails, err
}
