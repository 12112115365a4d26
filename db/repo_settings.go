package db

import (
	"context"
	"errors"
	"time"

	"alforge/models"

	"gorm.io/gorm"
)

// GetMailSettings returns the saved row, or nil when nothing was saved yet.
func (r *Repo) GetMailSettings(ctx context.Context) (*models.MailSettings, error) {
	var s models.MailSettings
	err := r.DB.WithContext(ctx).First(&s, "id = ?", models.MailSettingsID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) SaveMailSettings(ctx context.Context, s *models.MailSettings) error {
	s.ID = models.MailSettingsID
	s.UpdatedAt = time.Now().UTC()
	return r.DB.WithContext(ctx).Save(s).Error
}
