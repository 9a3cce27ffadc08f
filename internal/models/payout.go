// internal/models/payout.go
package models

import (
	"github.com/google/uuid"
)

// Royalty is one row per (order, creator) pair, created when the revenue
// split for a paid order is computed.
type Royalty struct {
	BaseModel
	OrderID     uuid.UUID     `json:"order_id" gorm:"type:uuid;not null;index"`
	CreatorID   uuid.UUID     `json:"creator_id" gorm:"type:uuid;not null;index"`
	AmountCents int64         `json:"amount_cents" gorm:"not null"`
	Status      RoyaltyStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`

	// Relationships
	Order   Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Creator User  `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
}

// Transfer is a single payout leg from the platform to one recipient for one
// order. At most one set of transfers may exist per order.
type Transfer struct {
	BaseModel
	OrderID            uuid.UUID             `json:"order_id" gorm:"type:uuid;not null;index"`
	ExternalTransferID string                `json:"external_transfer_id" gorm:"size:255;index"`
	RecipientType      TransferRecipientType `json:"recipient_type" gorm:"type:varchar(20);not null"`
	RecipientID        uuid.UUID             `json:"recipient_id" gorm:"type:uuid;not null;index"`
	AmountCents        int64                 `json:"amount_cents" gorm:"not null"`
	Status             TransferStatus        `json:"status" gorm:"type:varchar(20);default:'pending';index"`

	// Relationships
	Order Order `json:"order,omitempty" gorm:"foreignKey:OrderID"`
}
