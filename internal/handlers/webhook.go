// internal/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/models"
	"github.com/modelmint/modelmint-backend/internal/services"
	"github.com/modelmint/modelmint-backend/internal/utils"
)

// WebhookHandler is the ingress surface for the three providers. Each
// endpoint reads the raw body (signatures cover bytes, not parsed JSON),
// verifies the provider's scheme, durably logs the event, and processes it
// inline. A processing failure still returns 200: the event is recorded and
// the retry scheduler owns it from there, so provider-side redelivery storms
// are avoided. Non-2xx is reserved for requests we could not authenticate or
// could not record.
type WebhookHandler struct {
	config     *config.Config
	dispatcher *services.WebhookDispatcher
}

func NewWebhookHandler(config *config.Config, dispatcher *services.WebhookDispatcher) *WebhookHandler {
	return &WebhookHandler{
		config:     config,
		dispatcher: dispatcher,
	}
}

// POST /webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", nil)
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := utils.VerifyStripeSignature(body, signature, h.config.Payment.StripeWebhookSecret); err != nil {
		logrus.WithError(err).Warn("Stripe webhook signature rejected")
		utils.BadRequestResponse(c, "Invalid signature", nil)
		return
	}

	var payload models.JSONB
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.BadRequestResponse(c, "Invalid JSON payload", nil)
		return
	}

	eventType, _ := payload["type"].(string)
	if eventType == "" {
		utils.BadRequestResponse(c, "Payload missing event type", nil)
		return
	}

	h.ingest(c, models.WebhookSourceStripe, eventType, payload, body, signature)
}

// POST /webhooks/fal
func (h *WebhookHandler) HandleFalWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", nil)
		return
	}

	signature := c.GetHeader("X-Fal-Signature")
	if err := utils.VerifyFalSignature(body, signature, h.config.Providers.FalWebhookSecret); err != nil {
		logrus.WithError(err).Warn("Fal webhook signature rejected")
		utils.BadRequestResponse(c, "Invalid signature", nil)
		return
	}

	var payload models.JSONB
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.BadRequestResponse(c, "Invalid JSON payload", nil)
		return
	}

	status, _ := payload["status"].(string)
	if status == "" {
		utils.BadRequestResponse(c, "Payload missing status", nil)
		return
	}

	h.ingest(c, models.WebhookSourceFal, "training."+status, payload, body, signature)
}

// POST /webhooks/replicate
func (h *WebhookHandler) HandleReplicateWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		utils.BadRequestResponse(c, "Failed to read request body", nil)
		return
	}

	signature := c.GetHeader("X-Replicate-Signature")
	if err := utils.VerifyReplicateSignature(body, signature, h.config.Providers.ReplicateWebhookSecret); err != nil {
		logrus.WithError(err).Warn("Replicate webhook signature rejected")
		utils.BadRequestResponse(c, "Invalid signature", nil)
		return
	}

	var payload models.JSONB
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.BadRequestResponse(c, "Invalid JSON payload", nil)
		return
	}

	status, _ := payload["status"].(string)
	if status == "" {
		utils.BadRequestResponse(c, "Payload missing status", nil)
		return
	}

	h.ingest(c, models.WebhookSourceReplicate, "prediction."+status, payload, body, signature)
}

func (h *WebhookHandler) ingest(c *gin.Context, source models.WebhookSource, eventType string, payload models.JSONB, body []byte, signature string) {
	event, err := h.dispatcher.ProcessIncoming(source, eventType, payload, utils.HashPayload(body), signature)
	if event == nil {
		// Not durably recorded: the provider must redeliver.
		logrus.WithError(err).WithField("source", source).Error("Failed to record webhook event")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record event"})
		return
	}

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_id": event.ID,
			"source":   source,
		}).Warn("Webhook recorded but processing deferred")
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"event_id": event.ID,
	})
}
