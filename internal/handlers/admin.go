// internal/handlers/admin.go
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/modelmint/modelmint-backend/internal/models"
	"github.com/modelmint/modelmint-backend/internal/services"
	"github.com/modelmint/modelmint-backend/internal/utils"
)

type AdminHandler struct {
	adminService  *services.AdminService
	webhooks      *services.WebhookService
	retryService  *services.WebhookRetryService
	notifications *services.NotificationService
}

func NewAdminHandler(adminService *services.AdminService, webhooks *services.WebhookService, retryService *services.WebhookRetryService, notifications *services.NotificationService) *AdminHandler {
	return &AdminHandler{
		adminService:  adminService,
		webhooks:      webhooks,
		retryService:  retryService,
		notifications: notifications,
	}
}

// GET /admin/dashboard
func (h *AdminHandler) GetDashboard(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, stats)
}

// GET /admin/webhooks/stats
func (h *AdminHandler) GetWebhookStats(c *gin.Context) {
	var source *models.WebhookSource
	if s := c.Query("source"); s != "" {
		src := models.WebhookSource(s)
		switch src {
		case models.WebhookSourceStripe, models.WebhookSourceFal, models.WebhookSourceReplicate:
			source = &src
		default:
			utils.BadRequestResponse(c, "Unknown webhook source", nil)
			return
		}
	}

	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours < 0 {
		hours = 0
	}

	stats, err := h.adminService.GetWebhookHealth(source, time.Duration(hours)*time.Hour)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, stats)
}

// GET /admin/webhooks/failures
func (h *AdminHandler) GetRecentFailures(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	failures, err := h.webhooks.GetRecentFailures(limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, failures)
}

// GET /admin/webhooks/dead-letter
func (h *AdminHandler) GetDeadLetterQueue(c *gin.Context) {
	entries, err := h.webhooks.GetDeadLetterQueue()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, entries)
}

// POST /admin/webhooks/:id/retry
func (h *AdminHandler) RetryWebhook(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid event ID", nil)
		return
	}

	if err := h.retryService.RetryEvent(eventID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Webhook event retried",
	})
}

// POST /admin/webhooks/retry-all
func (h *AdminHandler) RetryAllWebhooks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultRetryBatchSize)))

	result, err := h.retryService.ProcessRetryable(c.Request.Context(), limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, result)
}

// POST /admin/webhooks/dead-letter/:id/review
func (h *AdminHandler) ReviewDeadLetter(c *gin.Context) {
	entryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid entry ID", nil)
		return
	}

	adminIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	adminID, err := uuid.Parse(adminIDStr)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid admin ID", nil)
		return
	}

	if err := h.webhooks.MarkDeadLetterReviewed(entryID, adminID); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Dead letter entry marked reviewed",
	})
}

// GET /admin/notifications
func (h *AdminHandler) GetNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.notifications.GetUnread(limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}
	utils.SuccessResponse(c, notifications)
}
