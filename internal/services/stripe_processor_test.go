// internal/services/stripe_processor_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmint/modelmint-backend/internal/models"
)

func checkoutCompletedEvent(sessionID string) *models.WebhookEvent {
	return &models.WebhookEvent{
		Source:    models.WebhookSourceStripe,
		EventType: "checkout.session.completed",
		Payload: models.JSONB{
			"type": "checkout.session.completed",
			"data": map[string]interface{}{
				"object": map[string]interface{}{
					"id":             sessionID,
					"payment_intent": map[string]interface{}{"id": "pi_test_1"},
				},
			},
		},
	}
}

func TestStripeProcessorCheckoutCompleted(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	revenue := NewRevenueService(db, newTestConfig(), payouts)
	processor := NewStripeWebhookProcessor(db, revenue)
	fx := seedPaidOrder(t, db, true)

	// The seeded order starts pending; the webhook drives it to paid.
	require.NoError(t, db.Model(fx.order).Updates(map[string]interface{}{
		"status": models.OrderStatusPending, "paid_at": nil,
	}).Error)

	require.NoError(t, processor.Process(checkoutCompletedEvent("cs_test_revenue")))

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	assert.Equal(t, "pi_test_1", order.StripePaymentIntentID)
	assert.NotNil(t, order.PaidAt)

	var royaltyCount, transferCount int64
	require.NoError(t, db.Model(&models.Royalty{}).Where("order_id = ?", order.ID).Count(&royaltyCount).Error)
	require.NoError(t, db.Model(&models.Transfer{}).Where("order_id = ?", order.ID).Count(&transferCount).Error)
	assert.Equal(t, int64(1), royaltyCount)
	assert.Equal(t, int64(2), transferCount)
}

func TestStripeProcessorDuplicateDeliveryIsNoop(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	revenue := NewRevenueService(db, newTestConfig(), payouts)
	processor := NewStripeWebhookProcessor(db, revenue)
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, db.Model(fx.order).Updates(map[string]interface{}{
		"status": models.OrderStatusPending, "paid_at": nil,
	}).Error)

	event := checkoutCompletedEvent("cs_test_revenue")
	require.NoError(t, processor.Process(event))
	require.NoError(t, processor.Process(event))

	var transferCount int64
	require.NoError(t, db.Model(&models.Transfer{}).Where("order_id = ?", fx.order.ID).Count(&transferCount).Error)
	assert.Equal(t, int64(2), transferCount)
	assert.Len(t, payouts.transfers, 2)
}

func TestStripeProcessorUnknownSessionErrors(t *testing.T) {
	db := newTestDB(t)
	revenue := NewRevenueService(db, newTestConfig(), &fakePayoutProvider{})
	processor := NewStripeWebhookProcessor(db, revenue)

	err := processor.Process(checkoutCompletedEvent("cs_unknown"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no order for checkout session")
}

func TestStripeProcessorCancelledOrderErrors(t *testing.T) {
	db := newTestDB(t)
	revenue := NewRevenueService(db, newTestConfig(), &fakePayoutProvider{})
	processor := NewStripeWebhookProcessor(db, revenue)
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, db.Model(fx.order).Update("status", models.OrderStatusCancelled).Error)

	err := processor.Process(checkoutCompletedEvent("cs_test_revenue"))
	assert.Error(t, err)
}

func TestStripeProcessorTransferStatusEvents(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	revenue := NewRevenueService(db, newTestConfig(), payouts)
	processor := NewStripeWebhookProcessor(db, revenue)
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, revenue.ProcessOrderRoyalties(fx.order.ID))

	var creatorLeg models.Transfer
	require.NoError(t, db.First(&creatorLeg,
		"order_id = ? AND recipient_type = ?", fx.order.ID, models.TransferRecipientCreator).Error)

	event := &models.WebhookEvent{
		Source:    models.WebhookSourceStripe,
		EventType: "transfer.reversed",
		Payload: models.JSONB{
			"type": "transfer.reversed",
			"data": map[string]interface{}{
				"object": map[string]interface{}{"id": creatorLeg.ExternalTransferID},
			},
		},
	}
	require.NoError(t, processor.Process(event))

	var transfer models.Transfer
	require.NoError(t, db.First(&transfer, "id = ?", creatorLeg.ID).Error)
	assert.Equal(t, models.TransferStatusFailed, transfer.Status)

	var royalty models.Royalty
	require.NoError(t, db.First(&royalty, "order_id = ?", fx.order.ID).Error)
	assert.Equal(t, models.RoyaltyStatusFailed, royalty.Status)
}

func TestStripeProcessorAccountUpdated(t *testing.T) {
	db := newTestDB(t)
	revenue := NewRevenueService(db, newTestConfig(), &fakePayoutProvider{})
	processor := NewStripeWebhookProcessor(db, revenue)
	fx := seedPaidOrder(t, db, false)

	event := &models.WebhookEvent{
		Source:    models.WebhookSourceStripe,
		EventType: "account.updated",
		Payload: models.JSONB{
			"type": "account.updated",
			"data": map[string]interface{}{
				"object": map[string]interface{}{
					"id":                "acct_creator",
					"charges_enabled":   true,
					"payouts_enabled":   true,
					"details_submitted": true,
				},
			},
		},
	}
	require.NoError(t, processor.Process(event))

	var creator models.User
	require.NoError(t, db.First(&creator, "id = ?", fx.creator.ID).Error)
	assert.True(t, creator.OnboardingComplete)
	assert.True(t, creator.ChargesEnabled)

	// Accounts nobody owns are ignored.
	event.Payload["data"].(map[string]interface{})["object"].(map[string]interface{})["id"] = "acct_unknown"
	assert.NoError(t, processor.Process(event))
}

func TestStripeProcessorIgnoresUnhandledTypes(t *testing.T) {
	db := newTestDB(t)
	revenue := NewRevenueService(db, newTestConfig(), &fakePayoutProvider{})
	processor := NewStripeWebhookProcessor(db, revenue)

	event := &models.WebhookEvent{
		Source:    models.WebhookSourceStripe,
		EventType: "invoice.finalized",
		Payload:   models.JSONB{"type": "invoice.finalized"},
	}
	assert.NoError(t, processor.Process(event))
}
