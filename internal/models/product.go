// internal/models/product.go
package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	CreatorID    uuid.UUID      `json:"creator_id" gorm:"type:uuid;not null;index"`
	StoreID      uuid.UUID      `json:"store_id" gorm:"type:uuid;not null;index"`
	GenerationID uuid.UUID      `json:"generation_id" gorm:"type:uuid;not null;index"`
	Title        string         `json:"title" gorm:"size:255;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	Category     string         `json:"category" gorm:"size:100;index"`
	PriceCents   int64          `json:"price_cents" gorm:"not null"`
	DiscountBps  int64          `json:"discount_bps" gorm:"default:0"`
	Images       pq.StringArray `json:"images" gorm:"type:text[]"`
	Tags         pq.StringArray `json:"tags" gorm:"type:text[]"`
	Status       ProductStatus  `json:"status" gorm:"type:varchar(20);default:'draft';index"`
	SalesCount   int64          `json:"sales_count" gorm:"default:0"`

	// Relationships
	Creator    User       `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Store      Store      `json:"store,omitempty" gorm:"foreignKey:StoreID"`
	Generation Generation `json:"generation,omitempty" gorm:"foreignKey:GenerationID"`
}

type Generation struct {
	BaseModel
	UserID         uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	CreatorID      uuid.UUID        `json:"creator_id" gorm:"type:uuid;not null;index"`
	PredictionID   string           `json:"prediction_id" gorm:"size:255;uniqueIndex"`
	Status         GenerationStatus `json:"status" gorm:"type:varchar(20);default:'starting';index"`
	Prompt         string           `json:"prompt" gorm:"type:text"`
	ImageURL       string           `json:"image_url" gorm:"size:1024"`
	WatermarkedURL string           `json:"watermarked_url" gorm:"size:1024"`
	ErrorMessage   string           `json:"error_message,omitempty" gorm:"type:text"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
