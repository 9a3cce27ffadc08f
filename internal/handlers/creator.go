// internal/handlers/creator.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/modelmint/modelmint-backend/internal/services"
	"github.com/modelmint/modelmint-backend/internal/utils"
)

type CreatorHandler struct {
	licensingService *services.LicensingService
	revenueService   *services.RevenueService
}

func NewCreatorHandler(licensingService *services.LicensingService, revenueService *services.RevenueService) *CreatorHandler {
	return &CreatorHandler{
		licensingService: licensingService,
		revenueService:   revenueService,
	}
}

type updateLicensingRequest struct {
	RoyaltyBps            int64 `json:"royalty_bps"`
	MinPriceCents         int64 `json:"min_price_cents"`
	MaxDiscountBps        int64 `json:"max_discount_bps"`
	AllowThirdPartyStores bool  `json:"allow_third_party_stores"`
}

// PUT /creators/me/licensing
func (h *CreatorHandler) UpdateLicensing(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	var req updateLicensingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	input := &services.LicensingConfigInput{
		RoyaltyBps:     req.RoyaltyBps,
		MinPriceCents:  req.MinPriceCents,
		MaxDiscountBps: req.MaxDiscountBps,
	}

	result, err := h.licensingService.UpdateCreatorLicensing(userID, input, req.AllowThirdPartyStores)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}
	if !result.IsValid {
		utils.ErrorResponse(c, 422, "INVALID_LICENSING", "Licensing configuration rejected", result)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /creators/me/onboarding/refresh
func (h *CreatorHandler) RefreshOnboarding(c *gin.Context) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid user ID", nil)
		return
	}

	status, err := h.revenueService.RefreshCreatorOnboarding(userID)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, status)
}

// POST /creators/licensing/validate
func (h *CreatorHandler) ValidateLicensing(c *gin.Context) {
	var req updateLicensingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	result := services.ValidateCreatorLicensing(&services.LicensingConfigInput{
		RoyaltyBps:     req.RoyaltyBps,
		MinPriceCents:  req.MinPriceCents,
		MaxDiscountBps: req.MaxDiscountBps,
	})

	utils.SuccessResponse(c, result)
}
