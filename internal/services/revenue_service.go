// internal/services/revenue_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/models"
)

type RevenueSplit struct {
	CreatorRoyaltyCents int64 `json:"creator_royalty_cents"`
	PlatformFeeCents    int64 `json:"platform_fee_cents"`
	StoreRevenueCents   int64 `json:"store_revenue_cents"`
}

// SplitRevenue computes the creator/platform/store shares of a sale in
// integer cents. The three components always sum exactly to itemTotalCents;
// any floor-rounding remainder accrues to the store revenue.
func SplitRevenue(itemTotalCents, royaltyBps, platformFeeBps int64) RevenueSplit {
	if itemTotalCents < 0 {
		itemTotalCents = 0
	}

	creatorRoyalty := itemTotalCents * royaltyBps / 10000
	if creatorRoyalty < 0 {
		creatorRoyalty = 0
	}

	platformFee := itemTotalCents * platformFeeBps / 10000
	if platformFee < 0 {
		platformFee = 0
	}

	storeRevenue := itemTotalCents - creatorRoyalty - platformFee
	if storeRevenue < 0 {
		storeRevenue = 0
		platformFee = itemTotalCents - creatorRoyalty
		if platformFee < 0 {
			platformFee = 0
			creatorRoyalty = itemTotalCents
		}
	}

	return RevenueSplit{
		CreatorRoyaltyCents: creatorRoyalty,
		PlatformFeeCents:    platformFee,
		StoreRevenueCents:   storeRevenue,
	}
}

// RevenueService orchestrates multi-party payouts for paid orders.
type RevenueService struct {
	db      *gorm.DB
	config  *config.Config
	payouts PayoutProvider
}

func NewRevenueService(db *gorm.DB, config *config.Config, payouts PayoutProvider) *RevenueService {
	return &RevenueService{
		db:      db,
		config:  config,
		payouts: payouts,
	}
}

// ProcessOrderRoyalties computes splits for a paid order and issues the
// payout legs. If any Transfer already exists for the order the call is a
// no-op: this is the idempotency guard against webhook redelivery and retry,
// since a duplicate transfer is a financial-correctness bug rather than a
// transient error.
func (s *RevenueService) ProcessOrderRoyalties(orderID uuid.UUID) error {
	var order models.Order
	if err := s.db.
		Preload("Items").
		Preload("Items.Product").
		Preload("Items.Product.Creator").
		Preload("Items.Product.Store").
		First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("order %s not found", orderID)
		}
		return fmt.Errorf("failed to load order: %w", err)
	}

	if order.Status != models.OrderStatusPaid {
		return fmt.Errorf("order %s is not paid (status %s)", orderID, order.Status)
	}

	var existing int64
	if err := s.db.Model(&models.Transfer{}).
		Where("order_id = ?", orderID).
		Count(&existing).Error; err != nil {
		return fmt.Errorf("failed to check existing transfers: %w", err)
	}
	if existing > 0 {
		logrus.WithFields(logrus.Fields{
			"order_id":  orderID,
			"transfers": existing,
		}).Info("Transfers already exist for order, skipping")
		return nil
	}

	// Royalties may exist without transfers when no recipient was payable;
	// they are the same redelivery signal.
	var existingRoyalties int64
	if err := s.db.Model(&models.Royalty{}).
		Where("order_id = ?", orderID).
		Count(&existingRoyalties).Error; err != nil {
		return fmt.Errorf("failed to check existing royalties: %w", err)
	}
	if existingRoyalties > 0 {
		logrus.WithField("order_id", orderID).Info("Royalties already exist for order, skipping")
		return nil
	}

	type creatorShare struct {
		creator *models.User
		amount  int64
	}
	type storeShare struct {
		store  *models.Store
		amount int64
	}

	creatorShares := make(map[uuid.UUID]*creatorShare)
	storeShares := make(map[uuid.UUID]*storeShare)

	for i := range order.Items {
		item := &order.Items[i]
		quantity := int64(item.Quantity)
		if quantity < 1 {
			quantity = 1
		}
		itemTotal := item.PriceCents * quantity

		creator := item.Product.Creator
		split := SplitRevenue(itemTotal, creator.RoyaltyBps, s.config.Payment.PlatformFeeBps)

		cs, ok := creatorShares[creator.ID]
		if !ok {
			c := creator
			cs = &creatorShare{creator: &c}
			creatorShares[creator.ID] = cs
		}
		cs.amount += split.CreatorRoyaltyCents

		store := item.Product.Store
		ss, ok := storeShares[store.ID]
		if !ok {
			st := store
			ss = &storeShare{store: &st}
			storeShares[store.ID] = ss
		}
		ss.amount += split.StoreRevenueCents
	}

	for _, cs := range creatorShares {
		royalty := &models.Royalty{
			OrderID:     orderID,
			CreatorID:   cs.creator.ID,
			AmountCents: cs.amount,
			Status:      models.RoyaltyStatusPending,
		}
		if err := s.db.Create(royalty).Error; err != nil {
			return fmt.Errorf("failed to create royalty: %w", err)
		}

		s.issueTransfer(orderID, models.TransferRecipientCreator, cs.creator.ID,
			cs.amount, cs.creator.StripeAccountID,
			cs.creator.OnboardingComplete, royalty)
	}

	for _, ss := range storeShares {
		if ss.amount <= 0 {
			continue
		}
		s.issueTransfer(orderID, models.TransferRecipientStoreOwner, ss.store.OwnerID,
			ss.amount, ss.store.StripeAccountID,
			ss.store.OnboardingComplete, nil)
	}

	return nil
}

// issueTransfer creates one payout leg. A transfer creation failure
// downgrades the royalty to failed but never rolls back the order's paid
// status: payment success and payout success are independent facts.
func (s *RevenueService) issueTransfer(orderID uuid.UUID, recipientType models.TransferRecipientType, recipientID uuid.UUID, amountCents int64, accountID string, onboarded bool, royalty *models.Royalty) {
	log := logrus.WithFields(logrus.Fields{
		"order_id":       orderID,
		"recipient_type": recipientType,
		"recipient_id":   recipientID,
		"amount_cents":   amountCents,
	})

	if !onboarded || accountID == "" {
		log.Warn("Recipient payout account incomplete, leaving share un-transferred")
		return
	}
	if amountCents < s.config.Payment.MinTransferCents {
		log.Info("Share below minimum transfer threshold, leaving un-transferred")
		return
	}

	externalID, err := s.payouts.CreateTransfer(amountCents, accountID, orderID.String())
	if err != nil {
		log.WithError(err).Error("Transfer creation failed")
		if royalty != nil {
			if updErr := s.db.Model(royalty).Update("status", models.RoyaltyStatusFailed).Error; updErr != nil {
				log.WithError(updErr).Error("Failed to downgrade royalty status")
			}
		}
		return
	}

	transferRow := &models.Transfer{
		OrderID:            orderID,
		ExternalTransferID: externalID,
		RecipientType:      recipientType,
		RecipientID:        recipientID,
		AmountCents:        amountCents,
		Status:             models.TransferStatusProcessing,
	}
	if err := s.db.Create(transferRow).Error; err != nil {
		log.WithError(err).Error("Failed to persist transfer row")
		return
	}

	log.WithField("external_transfer_id", externalID).Info("Transfer issued")
}

// UpdateTransferStatus advances a payout leg from a transfer-status webhook.
// An unmatched external id is a benign no-op (the transfer may belong to
// another system sharing the Stripe account).
func (s *RevenueService) UpdateTransferStatus(externalTransferID string, status models.TransferStatus) error {
	var transferRow models.Transfer
	if err := s.db.First(&transferRow, "external_transfer_id = ?", externalTransferID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("external_transfer_id", externalTransferID).
				Info("No matching transfer for status update, ignoring")
			return nil
		}
		return fmt.Errorf("failed to load transfer: %w", err)
	}

	if err := s.db.Model(&transferRow).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update transfer status: %w", err)
	}

	if transferRow.RecipientType == models.TransferRecipientCreator {
		royaltyStatus := models.RoyaltyStatusPaid
		if status == models.TransferStatusFailed {
			royaltyStatus = models.RoyaltyStatusFailed
		}
		if status == models.TransferStatusCompleted || status == models.TransferStatusFailed {
			if err := s.db.Model(&models.Royalty{}).
				Where("order_id = ? AND creator_id = ?", transferRow.OrderID, transferRow.RecipientID).
				Update("status", royaltyStatus).Error; err != nil {
				return fmt.Errorf("failed to update royalty status: %w", err)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"external_transfer_id": externalTransferID,
		"status":               status,
	}).Info("Transfer status updated")
	return nil
}

// RefreshCreatorOnboarding pulls a creator's connected-account state from
// the payout provider on demand and applies it, for creators who completed
// onboarding before the account.updated webhook arrived (or whose webhook
// was lost).
func (s *RevenueService) RefreshCreatorOnboarding(userID uuid.UUID) (*AccountStatus, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("creator %s not found", userID)
		}
		return nil, fmt.Errorf("failed to load creator: %w", err)
	}
	if user.StripeAccountID == "" {
		return nil, errors.New("creator has no connected payout account")
	}

	status, err := s.payouts.RetrieveAccountStatus(user.StripeAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh account status: %w", err)
	}

	complete := status.ChargesEnabled && status.PayoutsEnabled && status.DetailsSubmitted
	if err := s.db.Model(&models.User{}).
		Where("stripe_account_id = ?", user.StripeAccountID).
		Updates(map[string]interface{}{
			"charges_enabled":     status.ChargesEnabled,
			"payouts_enabled":     status.PayoutsEnabled,
			"details_submitted":   status.DetailsSubmitted,
			"onboarding_complete": complete,
		}).Error; err != nil {
		return nil, fmt.Errorf("failed to update creator onboarding: %w", err)
	}
	if err := s.db.Model(&models.Store{}).
		Where("stripe_account_id = ?", user.StripeAccountID).
		Update("onboarding_complete", complete).Error; err != nil {
		return nil, fmt.Errorf("failed to update store onboarding: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id":             userID,
		"account_id":          user.StripeAccountID,
		"onboarding_complete": complete,
	}).Info("Creator onboarding status refreshed")
	return status, nil
}

// PendingRoyaltyCents totals computed-but-untransferred royalties for the
// admin dashboard (money owed pending creator onboarding or thresholds).
func (s *RevenueService) PendingRoyaltyCents() (int64, error) {
	var total int64
	err := s.db.Model(&models.Royalty{}).
		Where("status = ?", models.RoyaltyStatusPending).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to sum pending royalties: %w", err)
	}
	return total, nil
}
