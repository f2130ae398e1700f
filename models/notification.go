package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"

	TypeOrderPlaced          = "order_placed"
	TypeOrderStatusUpdated   = "order_status_updated"
	TypePaymentConfirmed     = "payment_confirmed"
	TypePaymentRefunded      = "payment_refunded"
	TypePriceRequestApproved = "price_request_approved"
	TypePriceRequestRejected = "price_request_rejected"
	TypeUserRegistered       = "user_registered"
)

// Notification is what producers hand to the outbox.
type Notification struct {
	Type      string
	Recipient string
	Subject   string
	Data      map[string]interface{}
}

// NotificationJob is one row of the outbox.
type NotificationJob struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Type          string     `json:"type" gorm:"index;not null"`
	Recipient     string     `json:"recipient" gorm:"not null"`
	Subject       string     `json:"subject"`
	Payload       string     `json:"payload" gorm:"type:jsonb"`
	Status        string     `json:"status" gorm:"index;not null;default:pending"`
	Attempts      int        `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts   int        `json:"max_attempts" gorm:"not null;default:5"`
	NextAttemptAt time.Time  `json:"next_attempt_at" gorm:"index"`
	LastError     string     `json:"last_error,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

type NotificationFilter struct {
	Status   string
	Type     string
	Page     int
	PageSize int
}
