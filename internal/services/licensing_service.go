// internal/services/licensing_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
)

// Hard limits on creator licensing configuration, in basis points and cents.
const (
	MinRoyaltyBps     = 100   // 1%
	MaxRoyaltyBps     = 5000  // 50%
	MinMinimumPrice   = 100   // $1
	MaxMinimumPrice   = 50000 // $500
	MaxDiscountCapBps = 7500  // 75%

	// Soft thresholds: values above these are legal but warned about.
	RoyaltyWarnBps        = 3000  // 30%
	MinimumPriceWarnCents = 20000 // $200
)

type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *ValidationResult) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.IsValid = false
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

type ProductPolicyInput struct {
	CreatorID         uuid.UUID `json:"creator_id" validate:"required"`
	StoreOwnerID      uuid.UUID `json:"store_owner_id" validate:"required"`
	GenerationOwnerID uuid.UUID `json:"generation_owner_id" validate:"required"`
	PriceCents        int64     `json:"price_cents" validate:"min=0"`
	DiscountBps       int64     `json:"discount_bps" validate:"bps"`
}

type LicensingConfigInput struct {
	RoyaltyBps     int64 `json:"royalty_bps"`
	MinPriceCents  int64 `json:"min_price_cents"`
	MaxDiscountBps int64 `json:"max_discount_bps"`
}

type LicensingService struct {
	db *gorm.DB
}

func NewLicensingService(db *gorm.DB) *LicensingService {
	return &LicensingService{db: db}
}

// ValidateProductPolicy loads the creator's licensing configuration and
// checks a proposed listing against it. Policy violations are rejected
// synchronously at listing time, never retried.
func (s *LicensingService) ValidateProductPolicy(input *ProductPolicyInput) (*ValidationResult, error) {
	var creator models.User
	if err := s.db.First(&creator, "id = ?", input.CreatorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("creator not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return ValidateProductPolicyFor(&creator, input), nil
}

// ValidateProductPolicyFor is the pure policy check against a loaded creator.
func ValidateProductPolicyFor(creator *models.User, input *ProductPolicyInput) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if input.StoreOwnerID != input.GenerationOwnerID && !creator.AllowThirdPartyStores {
		result.addError("Creator does not allow sales through third-party stores")
	}

	if input.PriceCents < creator.MinPriceCents {
		result.addError("Price %d is below creator minimum %d", input.PriceCents, creator.MinPriceCents)
	}

	if input.DiscountBps > creator.MaxDiscountBps {
		result.addError("Discount %d bps exceeds creator maximum %d bps", input.DiscountBps, creator.MaxDiscountBps)
	}

	// Post-discount floor: the discounted price must still respect the
	// creator's minimum.
	discounted := input.PriceCents * (10000 - input.DiscountBps) / 10000
	if input.DiscountBps > 0 && discounted < creator.MinPriceCents {
		result.addError("Discounted price %d is below creator minimum %d", discounted, creator.MinPriceCents)
	}

	if creator.RoyaltyBps > RoyaltyWarnBps {
		result.addWarning("Creator royalty rate %d bps is above the recommended maximum", creator.RoyaltyBps)
	}
	if creator.MinPriceCents > MinimumPriceWarnCents {
		result.addWarning("Creator minimum price %d cents is above the recommended maximum", creator.MinPriceCents)
	}

	return result
}

// ValidateCreatorLicensing enforces the closed numeric ranges on a creator's
// licensing configuration.
func ValidateCreatorLicensing(input *LicensingConfigInput) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if input.RoyaltyBps < MinRoyaltyBps {
		result.addError("Royalty rate must be at least 1%%")
	}
	if input.RoyaltyBps > MaxRoyaltyBps {
		result.addError("Royalty rate cannot exceed 50%%")
	}

	if input.MinPriceCents < MinMinimumPrice {
		result.addError("Minimum price must be at least $1")
	}
	if input.MinPriceCents > MaxMinimumPrice {
		result.addError("Minimum price cannot exceed $500")
	}

	if input.MaxDiscountBps < 0 {
		result.addError("Maximum discount cannot be negative")
	}
	if input.MaxDiscountBps > MaxDiscountCapBps {
		result.addError("Maximum discount cannot exceed 75%%")
	}

	if result.IsValid {
		if input.RoyaltyBps > RoyaltyWarnBps {
			result.addWarning("Royalty rate above 30%% may discourage store adoption")
		}
		if input.MinPriceCents > MinimumPriceWarnCents {
			result.addWarning("Minimum price above $200 may discourage buyers")
		}
	}

	return result
}

// UpdateCreatorLicensing validates and persists a creator's licensing
// configuration.
func (s *LicensingService) UpdateCreatorLicensing(creatorID uuid.UUID, input *LicensingConfigInput, allowThirdPartyStores bool) (*ValidationResult, error) {
	result := ValidateCreatorLicensing(input)
	if !result.IsValid {
		return result, nil
	}

	updates := map[string]interface{}{
		"royalty_bps":              input.RoyaltyBps,
		"min_price_cents":          input.MinPriceCents,
		"max_discount_bps":         input.MaxDiscountBps,
		"allow_third_party_stores": allowThirdPartyStores,
	}

	res := s.db.Model(&models.User{}).
		Where("id = ? AND user_type = ?", creatorID, models.UserTypeCreator).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update licensing configuration: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, errors.New("creator not found")
	}

	return result, nil
}
