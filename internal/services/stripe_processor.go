// internal/services/stripe_processor.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
)

// StripeWebhookProcessor finalizes orders and tracks payout and onboarding
// state from payment-processor events.
type StripeWebhookProcessor struct {
	db      *gorm.DB
	revenue *RevenueService
}

func NewStripeWebhookProcessor(db *gorm.DB, revenue *RevenueService) *StripeWebhookProcessor {
	return &StripeWebhookProcessor{
		db:      db,
		revenue: revenue,
	}
}

func (p *StripeWebhookProcessor) Source() models.WebhookSource {
	return models.WebhookSourceStripe
}

func (p *StripeWebhookProcessor) Process(event *models.WebhookEvent) error {
	switch event.EventType {
	case "checkout.session.completed":
		return p.handleCheckoutCompleted(event)
	case "transfer.created", "transfer.updated":
		return p.handleTransferStatus(event, models.TransferStatusCompleted)
	case "transfer.reversed":
		return p.handleTransferStatus(event, models.TransferStatusFailed)
	case "account.updated":
		return p.handleAccountUpdated(event)
	default:
		logrus.WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.EventType,
		}).Info("Unhandled stripe event type, ignoring")
		return nil
	}
}

// eventObject re-encodes the stored payload's data.object for decoding into
// a typed stripe struct.
func eventObject(event *models.WebhookEvent, target interface{}) error {
	data, ok := event.Payload["data"].(map[string]interface{})
	if !ok {
		return errors.New("payload missing data object")
	}
	object, ok := data["object"].(map[string]interface{})
	if !ok {
		return errors.New("payload missing data.object")
	}

	raw, err := json.Marshal(object)
	if err != nil {
		return fmt.Errorf("failed to re-encode payload object: %w", err)
	}
	return json.Unmarshal(raw, target)
}

// handleCheckoutCompleted transitions the order PENDING->PAID exactly once
// and kicks off revenue distribution. A second delivery for an already-paid
// order is a no-op, not an error.
func (p *StripeWebhookProcessor) handleCheckoutCompleted(event *models.WebhookEvent) error {
	var cs stripe.CheckoutSession
	if err := eventObject(event, &cs); err != nil {
		return err
	}
	if cs.ID == "" {
		return errors.New("checkout session payload missing id")
	}

	var order models.Order
	if err := p.db.First(&order, "stripe_session_id = ?", cs.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no order for checkout session %s", cs.ID)
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if order.Status == models.OrderStatusPaid {
		logrus.WithField("order_id", order.ID).Info("Order already paid, ignoring duplicate delivery")
		return nil
	}
	if order.Status == models.OrderStatusCancelled {
		return fmt.Errorf("order %s is cancelled", order.ID)
	}

	paymentIntentID := ""
	if cs.PaymentIntent != nil {
		paymentIntentID = cs.PaymentIntent.ID
	}

	now := time.Now()
	result := p.db.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":                   models.OrderStatusPaid,
			"stripe_payment_intent_id": paymentIntentID,
			"paid_at":                  &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark order paid: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race with a concurrent delivery; the winner runs payouts.
		logrus.WithField("order_id", order.ID).Info("Order already transitioned, ignoring")
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"session_id":  cs.ID,
		"total_cents": order.TotalCents,
	}).Info("Order paid")

	return p.revenue.ProcessOrderRoyalties(order.ID)
}

func (p *StripeWebhookProcessor) handleTransferStatus(event *models.WebhookEvent, status models.TransferStatus) error {
	var t stripe.Transfer
	if err := eventObject(event, &t); err != nil {
		return err
	}
	if t.ID == "" {
		return errors.New("transfer payload missing id")
	}

	return p.revenue.UpdateTransferStatus(t.ID, status)
}

// handleAccountUpdated recomputes onboarding completeness for whichever
// creator or store the connected account belongs to.
func (p *StripeWebhookProcessor) handleAccountUpdated(event *models.WebhookEvent) error {
	var a stripe.Account
	if err := eventObject(event, &a); err != nil {
		return err
	}
	if a.ID == "" {
		return errors.New("account payload missing id")
	}

	complete := a.ChargesEnabled && a.PayoutsEnabled && a.DetailsSubmitted

	userResult := p.db.Model(&models.User{}).
		Where("stripe_account_id = ?", a.ID).
		Updates(map[string]interface{}{
			"charges_enabled":     a.ChargesEnabled,
			"payouts_enabled":     a.PayoutsEnabled,
			"details_submitted":   a.DetailsSubmitted,
			"onboarding_complete": complete,
		})
	if userResult.Error != nil {
		return fmt.Errorf("failed to update creator onboarding: %w", userResult.Error)
	}

	storeResult := p.db.Model(&models.Store{}).
		Where("stripe_account_id = ?", a.ID).
		Update("onboarding_complete", complete)
	if storeResult.Error != nil {
		return fmt.Errorf("failed to update store onboarding: %w", storeResult.Error)
	}

	if userResult.RowsAffected == 0 && storeResult.RowsAffected == 0 {
		logrus.WithField("account_id", a.ID).Info("No creator or store for account update, ignoring")
	}
	return nil
}
