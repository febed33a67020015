package models

import "time"

const (
	WebhookStatusPending   = "pending"
	WebhookStatusProcessed = "processed"
	WebhookStatusFailed    = "failed"
)

// WebhookEvent records every accepted gateway callback. ExternalEventID is unique.
type WebhookEvent struct {
	ID              uint       `gorm:"primarykey" json:"id"`
	ExternalEventID string     `gorm:"uniqueIndex;size:128;not null" json:"external_event_id"`
	EventType       string     `gorm:"size:64;not null" json:"event_type"`
	Payload         string     `gorm:"type:text" json:"payload"`
	Status          string     `gorm:"size:16;not null;default:'pending'" json:"status"`
	Attempts        int        `gorm:"not null;default:0" json:"attempts"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ReceivedAt      time.Time  `json:"received_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}
