// internal/services/notification_service.go
package services

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/config"
	"github.com/modelmint/modelmint-backend/internal/models"
)

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// NotifyDeadLetter raises a high-priority admin notification for an event
// that exhausted its retries. Dead-lettered events require human review.
func (s *NotificationService) NotifyDeadLetter(event *models.WebhookEvent, finalError string) {
	notification := &models.AdminNotification{
		Type:     "webhook_dead_letter",
		Title:    "Webhook event dead-lettered",
		Priority: "high",
		Message: fmt.Sprintf("Event %s (%s %s) exhausted retries: %s",
			event.ID, event.Source, event.EventType, finalError),
		RelatedResourceType: "webhook_event",
		RelatedResourceID:   &event.ID,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create dead letter notification")
	}
}

func (s *NotificationService) NotifyTrainingCompleted(user *models.User) {
	notification := &models.AdminNotification{
		Type:                "training_completed",
		Title:               "Model training completed",
		Priority:            "low",
		Message:             fmt.Sprintf("Creator %s's model is ready (trigger word %q)", user.Username, user.TriggerWord),
		RelatedResourceType: "user",
		RelatedResourceID:   &user.ID,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create training notification")
	}
}

func (s *NotificationService) NotifyTrainingFailed(user *models.User, reason string) {
	notification := &models.AdminNotification{
		Type:                "training_failed",
		Title:               "Model training failed",
		Priority:            "medium",
		Message:             fmt.Sprintf("Creator %s's model training failed: %s", user.Username, reason),
		RelatedResourceType: "user",
		RelatedResourceID:   &user.ID,
	}

	if err := s.db.Create(notification).Error; err != nil {
		logrus.WithError(err).Error("Failed to create training notification")
	}
}

func (s *NotificationService) GetUnread(limit int) ([]models.AdminNotification, error) {
	if limit <= 0 {
		limit = 50
	}

	var notifications []models.AdminNotification
	if err := s.db.
		Where("status = ?", "unread").
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, nil
}
