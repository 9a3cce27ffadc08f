// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	BaseModel
	UserID                uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	Status                OrderStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	TotalCents            int64       `json:"total_cents" gorm:"not null"`
	PlatformFeeCents      int64       `json:"platform_fee_cents" gorm:"not null"`
	StripeSessionID       string      `json:"stripe_session_id" gorm:"size:255;uniqueIndex"`
	StripePaymentIntentID string      `json:"stripe_payment_intent_id" gorm:"size:255"`
	PaidAt                *time.Time  `json:"paid_at"`

	// Relationships
	User      User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items     []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	Royalties []Royalty   `json:"royalties,omitempty" gorm:"foreignKey:OrderID"`
	Transfers []Transfer  `json:"transfers,omitempty" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	BaseModel
	OrderID    uuid.UUID `json:"order_id" gorm:"type:uuid;not null;index"`
	ProductID  uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	PriceCents int64     `json:"price_cents" gorm:"not null"`
	Quantity   int       `json:"quantity" gorm:"default:1"`

	// Relationships
	Product Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
