package models

import (
	"time"
)

type TemplateType string

const (
	TemplateSMS   TemplateType = "sms"
	TemplateEmail TemplateType = "email"
)

// Template is a stored message template, resolved by naming convention
// "<status>_<channel>" (e.g. payment_completed_email). Missing templates
// fall back to hard-coded defaults.
type Template struct {
	ID        uint         `json:"id" gorm:"primaryKey"`
	Name      string       `json:"name" gorm:"size:100;uniqueIndex"`
	Type      TemplateType `json:"type" gorm:"size:10;index"`
	Subject   string       `json:"subject" gorm:"size:255"`
	Content   string       `json:"content" gorm:"type:text"`
	UpdatedAt time.Time    `json:"updatedAt" gorm:"autoUpdateTime"`
}

// StaffUser is a back-office account. There is no self-service signup;
// rows are provisioned directly.
type StaffUser struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:100"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}
