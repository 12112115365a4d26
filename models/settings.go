package models

import "time"

const MailSettingsID = "email"

// MailSettings is the single SMTP configuration row edited from the admin settings page.
type MailSettings struct {
	ID        string    `gorm:"size:20;primaryKey" json:"-"`
	Host      string    `gorm:"size:255" json:"host"`
	Port      string    `gorm:"size:6" json:"port"`
	Username  string    `gorm:"size:255" json:"username"`
	Password  string    `gorm:"size:255" json:"password,omitempty"`
	From      string    `gorm:"size:255" json:"from"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (MailSettings) TableName() string { return "alf_settings" }
