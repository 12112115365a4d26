package db

import (
	"context"
	"strings"
	"time"

	"alforge/apperr"
	"alforge/models"
)

func (r *Repo) CreateInvite(ctx context.Context, email, token string, role models.Role, expiresAt time.Time, createdBy string) (*models.Invite, error) {
	inv := &models.Invite{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Token:     token,
		Role:      role,
		ExpiresAt: expiresAt,
		CreatedBy: createdBy,
	}
	return inv, r.DB.WithContext(ctx).Create(inv).Error
}

func (r *Repo) GetInviteByToken(ctx context.Context, token string) (*models.Invite, error) {
	var inv models.Invite
	if err := r.DB.WithContext(ctx).Where("token = ?", token).First(&inv).Error; err != nil {
		return nil, translate(err, "invite")
	}
	return &inv, nil
}

func (r *Repo) ListInvites(ctx context.Context, pendingOnly bool) ([]models.Invite, error) {
	q := r.DB.WithContext(ctx).Order("created_at DESC")
	if pendingOnly {
		q = q.Where("used_at IS NULL AND expires_at > ?", time.Now().UTC())
	}
	var out []models.Invite
	return out, q.Find(&out).Error
}

func (r *Repo) MarkInviteUsed(ctx context.Context, token string) error {
	now := time.Now().UTC()
	res := r.DB.WithContext(ctx).Model(&models.Invite{}).
		Where("token = ? AND used_at IS NULL", token).
		Update("used_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("invite already used or not found")
	}
	return nil
}
