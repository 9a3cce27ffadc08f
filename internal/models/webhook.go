// internal/models/webhook.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the durable record of every received provider notification
// and the source of truth for idempotent processing.
type WebhookEvent struct {
	BaseModel
	Source       WebhookSource `json:"source" gorm:"type:varchar(20);not null;index"`
	EventType    string        `json:"event_type" gorm:"size:100;not null;index"`
	Payload      JSONB         `json:"payload" gorm:"type:jsonb"`
	PayloadHash  string        `json:"payload_hash" gorm:"size:64;index"`
	Signature    string        `json:"signature" gorm:"type:text"`
	RetryCount   int           `json:"retry_count" gorm:"default:0"`
	Status       WebhookStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ErrorMessage string        `json:"error_message,omitempty" gorm:"type:text"`
	ProcessedAt  *time.Time    `json:"processed_at"`
}

// DeadLetterEntry is created exactly once per event that exhausts its retry
// budget. Entries are never auto-purged; review is a manual admin action.
type DeadLetterEntry struct {
	BaseModel
	WebhookEventID uuid.UUID  `json:"webhook_event_id" gorm:"type:uuid;not null;uniqueIndex"`
	FinalError     string     `json:"final_error" gorm:"type:text"`
	Reviewed       bool       `json:"reviewed" gorm:"default:false;index"`
	ReviewedBy     *uuid.UUID `json:"reviewed_by" gorm:"type:uuid"`
	ReviewedAt     *time.Time `json:"reviewed_at"`

	// Relationships
	WebhookEvent WebhookEvent `json:"webhook_event,omitempty" gorm:"foreignKey:WebhookEventID"`
}
