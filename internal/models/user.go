// internal/models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	BaseModel
	Username     string     `json:"username" gorm:"uniqueIndex;size:50;not null"`
	Email        string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"`
	UserType     UserType   `json:"user_type" gorm:"type:varchar(20);not null"`
	Status       UserStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
	ProfileData  JSONB      `json:"profile_data" gorm:"type:jsonb"`
	LastLoginAt  *time.Time `json:"last_login_at"`

	// Licensing configuration (inputs to the policy validator)
	AllowThirdPartyStores bool  `json:"allow_third_party_stores" gorm:"default:true"`
	RoyaltyBps            int64 `json:"royalty_bps" gorm:"default:1000"`
	MinPriceCents         int64 `json:"min_price_cents" gorm:"default:100"`
	MaxDiscountBps        int64 `json:"max_discount_bps" gorm:"default:2500"`

	// Payout account (Stripe connected account)
	StripeAccountID    string `json:"stripe_account_id" gorm:"size:255;index"`
	ChargesEnabled     bool   `json:"charges_enabled" gorm:"default:false"`
	PayoutsEnabled     bool   `json:"payouts_enabled" gorm:"default:false"`
	DetailsSubmitted   bool   `json:"details_submitted" gorm:"default:false"`
	OnboardingComplete bool   `json:"onboarding_complete" gorm:"default:false"`

	// Personal model training state
	TrainingJobID   string         `json:"training_job_id" gorm:"size:255;index"`
	TrainingStatus  TrainingStatus `json:"training_status" gorm:"type:varchar(20);default:'none'"`
	ModelWeightsURL string         `json:"model_weights_url" gorm:"size:1024"`
	TriggerWord     string         `json:"trigger_word" gorm:"size:100"`

	// Relationships
	Products    []Product    `json:"products,omitempty" gorm:"foreignKey:CreatorID"`
	Generations []Generation `json:"generations,omitempty" gorm:"foreignKey:UserID"`
	Orders      []Order      `json:"orders,omitempty" gorm:"foreignKey:UserID"`
	Royalties   []Royalty    `json:"royalties,omitempty" gorm:"foreignKey:CreatorID"`
}

func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
}

type Store struct {
	BaseModel
	OwnerID            uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name               string    `json:"name" gorm:"size:255;not null"`
	Description        string    `json:"description" gorm:"type:text"`
	StripeAccountID    string    `json:"stripe_account_id" gorm:"size:255;index"`
	OnboardingComplete bool      `json:"onboarding_complete" gorm:"default:false"`

	// Relationships
	Owner    User      `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Products []Product `json:"products,omitempty" gorm:"foreignKey:StoreID"`
}
