// internal/services/revenue_service_test.go
package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
)

func TestSplitRevenue(t *testing.T) {
	t.Run("documented example", func(t *testing.T) {
		split := SplitRevenue(1000, 1000, 250)
		assert.Equal(t, int64(100), split.CreatorRoyaltyCents)
		assert.Equal(t, int64(25), split.PlatformFeeCents)
		assert.Equal(t, int64(875), split.StoreRevenueCents)
	})

	t.Run("components always sum to the total", func(t *testing.T) {
		totals := []int64{0, 1, 99, 100, 101, 999, 1000, 12345, 9999999}
		royalties := []int64{0, 100, 333, 1000, 5000}
		fees := []int64{0, 250, 999}

		for _, total := range totals {
			for _, royalty := range royalties {
				for _, fee := range fees {
					split := SplitRevenue(total, royalty, fee)
					sum := split.CreatorRoyaltyCents + split.PlatformFeeCents + split.StoreRevenueCents
					assert.Equal(t, total, sum, "total=%d royalty=%d fee=%d", total, royalty, fee)
					assert.GreaterOrEqual(t, split.CreatorRoyaltyCents, int64(0))
					assert.GreaterOrEqual(t, split.PlatformFeeCents, int64(0))
					assert.GreaterOrEqual(t, split.StoreRevenueCents, int64(0))
				}
			}
		}
	})

	t.Run("floor rounding leaves remainder with the store", func(t *testing.T) {
		// 333 * 10% = 33.3 -> 33; 333 * 2.5% = 8.325 -> 8; store gets 292.
		split := SplitRevenue(333, 1000, 250)
		assert.Equal(t, int64(33), split.CreatorRoyaltyCents)
		assert.Equal(t, int64(8), split.PlatformFeeCents)
		assert.Equal(t, int64(292), split.StoreRevenueCents)
	})

	t.Run("oversized rates clamp instead of going negative", func(t *testing.T) {
		split := SplitRevenue(1000, 9000, 2000)
		assert.Equal(t, int64(900), split.CreatorRoyaltyCents)
		assert.Equal(t, int64(100), split.PlatformFeeCents)
		assert.Equal(t, int64(0), split.StoreRevenueCents)
	})

	t.Run("negative total treated as zero", func(t *testing.T) {
		split := SplitRevenue(-500, 1000, 250)
		assert.Equal(t, RevenueSplit{}, split)
	})
}

type revenueFixture struct {
	creator    *models.User
	storeOwner *models.User
	buyer      *models.User
	store      *models.Store
	product    *models.Product
	order      *models.Order
}

func seedPaidOrder(t *testing.T, db *gorm.DB, creatorOnboarded bool) *revenueFixture {
	t.Helper()

	creator := &models.User{
		Username:           "creator",
		Email:              "creator@example.com",
		PasswordHash:       "x",
		UserType:           models.UserTypeCreator,
		RoyaltyBps:         1000,
		MinPriceCents:      100,
		MaxDiscountBps:     2500,
		StripeAccountID:    "acct_creator",
		OnboardingComplete: creatorOnboarded,
	}
	require.NoError(t, db.Create(creator).Error)

	storeOwner := &models.User{
		Username:     "storeowner",
		Email:        "owner@example.com",
		PasswordHash: "x",
		UserType:     models.UserTypeStoreOwner,
	}
	require.NoError(t, db.Create(storeOwner).Error)

	buyer := &models.User{
		Username:     "buyer",
		Email:        "buyer@example.com",
		PasswordHash: "x",
		UserType:     models.UserTypeBuyer,
	}
	require.NoError(t, db.Create(buyer).Error)

	store := &models.Store{
		OwnerID:            storeOwner.ID,
		Name:               "Test Store",
		StripeAccountID:    "acct_store",
		OnboardingComplete: true,
	}
	require.NoError(t, db.Create(store).Error)

	generation := &models.Generation{
		UserID:       creator.ID,
		CreatorID:    creator.ID,
		PredictionID: "pred-revenue-1",
		Status:       models.GenerationStatusSucceeded,
	}
	require.NoError(t, db.Create(generation).Error)

	product := &models.Product{
		CreatorID:    creator.ID,
		StoreID:      store.ID,
		GenerationID: generation.ID,
		Title:        "Test Product",
		PriceCents:   1000,
		Status:       models.ProductStatusActive,
	}
	require.NoError(t, db.Create(product).Error)

	now := time.Now()
	order := &models.Order{
		UserID:           buyer.ID,
		Status:           models.OrderStatusPaid,
		TotalCents:       1000,
		PlatformFeeCents: 25,
		StripeSessionID:  "cs_test_revenue",
		PaidAt:           &now,
		Items: []models.OrderItem{
			{ProductID: product.ID, PriceCents: 1000, Quantity: 1},
		},
	}
	require.NoError(t, db.Create(order).Error)

	return &revenueFixture{
		creator:    creator,
		storeOwner: storeOwner,
		buyer:      buyer,
		store:      store,
		product:    product,
		order:      order,
	}
}

func TestProcessOrderRoyalties(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	svc := NewRevenueService(db, newTestConfig(), payouts)
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))

	var royalties []models.Royalty
	require.NoError(t, db.Where("order_id = ?", fx.order.ID).Find(&royalties).Error)
	require.Len(t, royalties, 1)
	assert.Equal(t, fx.creator.ID, royalties[0].CreatorID)
	assert.Equal(t, int64(100), royalties[0].AmountCents)
	assert.Equal(t, models.RoyaltyStatusPending, royalties[0].Status)

	var transfers []models.Transfer
	require.NoError(t, db.Where("order_id = ?", fx.order.ID).Find(&transfers).Error)
	require.Len(t, transfers, 2)

	byRecipient := map[models.TransferRecipientType]models.Transfer{}
	for _, tr := range transfers {
		byRecipient[tr.RecipientType] = tr
	}
	assert.Equal(t, int64(100), byRecipient[models.TransferRecipientCreator].AmountCents)
	assert.Equal(t, int64(875), byRecipient[models.TransferRecipientStoreOwner].AmountCents)
	assert.Equal(t, fx.storeOwner.ID, byRecipient[models.TransferRecipientStoreOwner].RecipientID)
	assert.Len(t, payouts.transfers, 2)
}

func TestProcessOrderRoyaltiesIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	svc := NewRevenueService(db, newTestConfig(), payouts)
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))
	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))

	var royaltyCount, transferCount int64
	require.NoError(t, db.Model(&models.Royalty{}).Where("order_id = ?", fx.order.ID).Count(&royaltyCount).Error)
	require.NoError(t, db.Model(&models.Transfer{}).Where("order_id = ?", fx.order.ID).Count(&transferCount).Error)
	assert.Equal(t, int64(1), royaltyCount)
	assert.Equal(t, int64(2), transferCount)
	assert.Len(t, payouts.transfers, 2)
}

func TestProcessOrderRoyaltiesRequiresPaidOrder(t *testing.T) {
	db := newTestDB(t)
	svc := NewRevenueService(db, newTestConfig(), &fakePayoutProvider{})
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, db.Model(fx.order).Update("status", models.OrderStatusPending).Error)

	err := svc.ProcessOrderRoyalties(fx.order.ID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not paid")
}

func TestProcessOrderRoyaltiesUnonboardedCreator(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	svc := NewRevenueService(db, newTestConfig(), payouts)
	fx := seedPaidOrder(t, db, false)

	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))

	// The royalty is recorded and stays pending; only the store leg is paid.
	var royalty models.Royalty
	require.NoError(t, db.First(&royalty, "order_id = ?", fx.order.ID).Error)
	assert.Equal(t, models.RoyaltyStatusPending, royalty.Status)

	var transfers []models.Transfer
	require.NoError(t, db.Where("order_id = ?", fx.order.ID).Find(&transfers).Error)
	require.Len(t, transfers, 1)
	assert.Equal(t, models.TransferRecipientStoreOwner, transfers[0].RecipientType)

	// Redelivery must not duplicate the pending royalty either.
	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))
	var royaltyCount int64
	require.NoError(t, db.Model(&models.Royalty{}).Where("order_id = ?", fx.order.ID).Count(&royaltyCount).Error)
	assert.Equal(t, int64(1), royaltyCount)

	pending, err := svc.PendingRoyaltyCents()
	require.NoError(t, err)
	assert.Equal(t, int64(100), pending)
}

func TestProcessOrderRoyaltiesTransferFailure(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{failWith: errors.New("stripe unavailable")}
	svc := NewRevenueService(db, newTestConfig(), payouts)
	fx := seedPaidOrder(t, db, true)

	// The order stays paid; the failed leg is recorded on the royalty.
	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))

	var royalty models.Royalty
	require.NoError(t, db.First(&royalty, "order_id = ?", fx.order.ID).Error)
	assert.Equal(t, models.RoyaltyStatusFailed, royalty.Status)

	var transferCount int64
	require.NoError(t, db.Model(&models.Transfer{}).Where("order_id = ?", fx.order.ID).Count(&transferCount).Error)
	assert.Equal(t, int64(0), transferCount)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", fx.order.ID).Error)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
}

func TestUpdateTransferStatus(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	svc := NewRevenueService(db, newTestConfig(), payouts)
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))

	var creatorLeg models.Transfer
	require.NoError(t, db.First(&creatorLeg,
		"order_id = ? AND recipient_type = ?", fx.order.ID, models.TransferRecipientCreator).Error)

	require.NoError(t, svc.UpdateTransferStatus(creatorLeg.ExternalTransferID, models.TransferStatusCompleted))

	var royalty models.Royalty
	require.NoError(t, db.First(&royalty, "order_id = ?", fx.order.ID).Error)
	assert.Equal(t, models.RoyaltyStatusPaid, royalty.Status)

	var updated models.Transfer
	require.NoError(t, db.First(&updated, "id = ?", creatorLeg.ID).Error)
	assert.Equal(t, models.TransferStatusCompleted, updated.Status)
}

func TestUpdateTransferStatusUnmatchedIsNoop(t *testing.T) {
	db := newTestDB(t)
	svc := NewRevenueService(db, newTestConfig(), &fakePayoutProvider{})

	assert.NoError(t, svc.UpdateTransferStatus("tr_unknown", models.TransferStatusCompleted))
}

func TestProcessOrderRoyaltiesQuantityAware(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	svc := NewRevenueService(db, newTestConfig(), payouts)
	fx := seedPaidOrder(t, db, true)

	require.NoError(t, db.Model(&models.OrderItem{}).
		Where("order_id = ?", fx.order.ID).
		Update("quantity", 3).Error)
	require.NoError(t, db.Model(fx.order).Update("total_cents", 3000).Error)

	require.NoError(t, svc.ProcessOrderRoyalties(fx.order.ID))

	var royalty models.Royalty
	require.NoError(t, db.First(&royalty, "order_id = ?", fx.order.ID).Error)
	assert.Equal(t, int64(300), royalty.AmountCents)
}

func TestRefreshCreatorOnboarding(t *testing.T) {
	db := newTestDB(t)
	payouts := &fakePayoutProvider{}
	svc := NewRevenueService(db, newTestConfig(), payouts)
	fx := seedPaidOrder(t, db, false)

	status, err := svc.RefreshCreatorOnboarding(fx.creator.ID)
	require.NoError(t, err)
	assert.True(t, status.ChargesEnabled)

	var creator models.User
	require.NoError(t, db.First(&creator, "id = ?", fx.creator.ID).Error)
	assert.True(t, creator.OnboardingComplete)
	assert.True(t, creator.PayoutsEnabled)

	t.Run("partial onboarding stays incomplete", func(t *testing.T) {
		payouts.accountStatus = &AccountStatus{ChargesEnabled: true}

		_, err := svc.RefreshCreatorOnboarding(fx.creator.ID)
		require.NoError(t, err)

		var stored models.User
		require.NoError(t, db.First(&stored, "id = ?", fx.creator.ID).Error)
		assert.False(t, stored.OnboardingComplete)
		assert.True(t, stored.ChargesEnabled)
	})

	t.Run("no connected account", func(t *testing.T) {
		_, err := svc.RefreshCreatorOnboarding(fx.buyer.ID)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no connected payout account")
	})

	t.Run("provider failure surfaces", func(t *testing.T) {
		payouts.accountErr = errors.New("stripe unavailable")
		_, err := svc.RefreshCreatorOnboarding(fx.creator.ID)
		assert.Error(t, err)
	})
}

func TestFakeTransferIDsAreUnique(t *testing.T) {
	payouts := &fakePayoutProvider{}
	id1, err := payouts.CreateTransfer(100, "acct_a", "group")
	require.NoError(t, err)
	id2, err := payouts.CreateTransfer(200, "acct_b", "group")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, fmt.Sprintf("tr_fake_%d", 1), id1)
}
