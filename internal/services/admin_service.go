// internal/services/admin_service.go
package services

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/models"
)

type AdminService struct {
	db       *gorm.DB
	config   *config.Config
	webhooks *WebhookService
	revenue  *RevenueService
}

// DashboardStats is the operator's one-page view of delivery and payout
// health.
type DashboardStats struct {
	TotalUsers          int64                    `json:"total_users"`
	TotalOrders         int64                    `json:"total_orders"`
	PaidOrders          int64                    `json:"paid_orders"`
	RevenueCents        int64                    `json:"revenue_cents"`
	PendingRoyaltyCents int64                    `json:"pending_royalty_cents"`
	DeadLetterCount     int64                    `json:"dead_letter_count"`
	UnreviewedDeadCount int64                    `json:"unreviewed_dead_count"`
	Webhooks            map[string]*WebhookStats `json:"webhooks"`
	RecentFailures      []models.WebhookEvent    `json:"recent_failures"`
}

func NewAdminService(db *gorm.DB, config *config.Config, webhooks *WebhookService, revenue *RevenueService) *AdminService {
	return &AdminService{
		db:       db,
		config:   config,
		webhooks: webhooks,
		revenue:  revenue,
	}
}

func (s *AdminService) GetDashboardStats() (*DashboardStats, error) {
	stats := &DashboardStats{
		Webhooks: make(map[string]*WebhookStats, 3),
	}

	if err := s.db.Model(&models.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	if err := s.db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPaid).
		Count(&stats.PaidOrders).Error; err != nil {
		return nil, fmt.Errorf("failed to count paid orders: %w", err)
	}

	var revenue struct{ Total int64 }
	if err := s.db.Model(&models.Order{}).
		Select("COALESCE(SUM(total_cents), 0) as total").
		Where("status = ?", models.OrderStatusPaid).
		Scan(&revenue).Error; err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	stats.RevenueCents = revenue.Total

	pending, err := s.revenue.PendingRoyaltyCents()
	if err != nil {
		return nil, err
	}
	stats.PendingRoyaltyCents = pending

	if err := s.db.Model(&models.DeadLetterEntry{}).Count(&stats.DeadLetterCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count dead letters: %w", err)
	}
	if err := s.db.Model(&models.DeadLetterEntry{}).
		Where("reviewed = ?", false).
		Count(&stats.UnreviewedDeadCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count unreviewed dead letters: %w", err)
	}

	since := time.Now().Add(-24 * time.Hour)
	for _, source := range []models.WebhookSource{
		models.WebhookSourceStripe,
		models.WebhookSourceFal,
		models.WebhookSourceReplicate,
	} {
		src := source
		ws, err := s.webhooks.GetWebhookStats(&src, &since)
		if err != nil {
			return nil, err
		}
		stats.Webhooks[string(source)] = ws
	}

	failures, err := s.webhooks.GetRecentFailures(10)
	if err != nil {
		return nil, err
	}
	stats.RecentFailures = failures

	return stats, nil
}

// GetWebhookHealth reports per-source delivery stats over the given window.
func (s *AdminService) GetWebhookHealth(source *models.WebhookSource, window time.Duration) (*WebhookStats, error) {
	var since *time.Time
	if window > 0 {
		t := time.Now().Add(-window)
		since = &t
	}
	return s.webhooks.GetWebhookStats(source, since)
}
