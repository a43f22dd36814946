package models

import (
	"time"
)

// StatusChangeLog is the append-only audit trail of status mutations.
// Rows are never updated except to backfill NotificationSent once the
// notification attempt has finished.
type StatusChangeLog struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	RequestRef       uint      `json:"requestId" gorm:"column:request_id;index;not null"`
	FromStatus       Status    `json:"fromStatus" gorm:"size:20"`
	ToStatus         Status    `json:"toStatus" gorm:"size:20;index"`
	Reason           string    `json:"reason" gorm:"type:text"`
	NotificationSent bool      `json:"notificationSent" gorm:"default:false"`
	ChangedAt        time.Time `json:"changedAt" gorm:"autoCreateTime;index"`
}

// SendLog records one notification attempt, success or not. Duplicate
// sends are detected against prior rows with the same order id, email
// type and payment amount.
type SendLog struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	OrderID       string    `json:"orderId" gorm:"index;size:14"`
	RequestID     string    `json:"requestId" gorm:"index;size:16"`
	EmailType     string    `json:"emailType" gorm:"size:50;index"`
	Recipient     string    `json:"recipient" gorm:"size:255"`
	PaymentAmount *int64    `json:"paymentAmount"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"errorMessage" gorm:"type:text"`
	CreatedAt     time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
}
