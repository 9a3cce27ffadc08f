// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type UserType string

const (
	UserTypeCreator    UserType = "creator"
	UserTypeStoreOwner UserType = "store_owner"
	UserTypeBuyer      UserType = "buyer"
	UserTypeAdmin      UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type WebhookSource string

const (
	WebhookSourceStripe    WebhookSource = "stripe"
	WebhookSourceFal       WebhookSource = "fal"
	WebhookSourceReplicate WebhookSource = "replicate"
)

type WebhookStatus string

const (
	WebhookStatusPending    WebhookStatus = "pending"
	WebhookStatusProcessing WebhookStatus = "processing"
	WebhookStatusCompleted  WebhookStatus = "completed"
	WebhookStatusFailed     WebhookStatus = "failed"
	WebhookStatusDeadLetter WebhookStatus = "dead_letter"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type RoyaltyStatus string

const (
	RoyaltyStatusPending RoyaltyStatus = "pending"
	RoyaltyStatusPaid    RoyaltyStatus = "paid"
	RoyaltyStatusFailed  RoyaltyStatus = "failed"
)

type TransferStatus string

const (
	TransferStatusPending    TransferStatus = "pending"
	TransferStatusProcessing TransferStatus = "processing"
	TransferStatusCompleted  TransferStatus = "completed"
	TransferStatusFailed     TransferStatus = "failed"
)

type TransferRecipientType string

const (
	TransferRecipientCreator    TransferRecipientType = "creator"
	TransferRecipientStoreOwner TransferRecipientType = "store_owner"
)

type TrainingStatus string

const (
	TrainingStatusNone     TrainingStatus = "none"
	TrainingStatusTraining TrainingStatus = "training"
	TrainingStatusReady    TrainingStatus = "ready"
	TrainingStatusFailed   TrainingStatus = "failed"
)

type GenerationStatus string

const (
	GenerationStatusStarting   GenerationStatus = "starting"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusSucceeded  GenerationStatus = "succeeded"
	GenerationStatusFailed     GenerationStatus = "failed"
)

type ProductStatus string

const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusActive    ProductStatus = "active"
	ProductStatusSuspended ProductStatus = "suspended"
	ProductStatusArchived  ProductStatus = "archived"
)
