// internal/services/webhook_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/database"
	"github.com/modelmint/modelmint-backend/internal/models"
)

const (
	// MaxWebhookRetries is the retry budget per event; the attempt that
	// reaches it moves the event to the dead letter store.
	MaxWebhookRetries = 3

	// BaseRetryDelay seeds the exponential backoff: 1s, 2s, 4s.
	BaseRetryDelay = time.Second
)

// ErrEventAlreadyClaimed is returned when a concurrent worker has already
// moved the event out of a claimable status.
var ErrEventAlreadyClaimed = errors.New("webhook event already claimed")

type RetryDecision struct {
	ShouldRetry bool          `json:"should_retry"`
	RetryAfter  time.Duration `json:"retry_after"`
}

type WebhookStats struct {
	Total       int64   `json:"total"`
	Completed   int64   `json:"completed"`
	Failed      int64   `json:"failed"`
	DeadLetter  int64   `json:"dead_letter"`
	Processing  int64   `json:"processing"`
	Pending     int64   `json:"pending"`
	SuccessRate float64 `json:"success_rate"`
}

type WebhookService struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewWebhookService(db *gorm.DB, notifications *NotificationService) *WebhookService {
	return &WebhookService{
		db:            db,
		notifications: notifications,
	}
}

// LogEvent durably records a received webhook before any side-effecting
// processing happens, so a crash mid-processing leaves a recoverable record.
func (s *WebhookService) LogEvent(source models.WebhookSource, eventType string, payload models.JSONB, payloadHash, signature string) (*models.WebhookEvent, error) {
	event := &models.WebhookEvent{
		Source:      source,
		EventType:   eventType,
		Payload:     payload,
		PayloadHash: payloadHash,
		Signature:   signature,
		Status:      models.WebhookStatusPending,
		RetryCount:  0,
	}

	if err := s.db.Create(event).Error; err != nil {
		return nil, fmt.Errorf("failed to log webhook event: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"source":     source,
		"event_type": eventType,
	}).Info("Webhook event logged")

	return event, nil
}

// MarkProcessing claims an event for processing. The conditional update is
// the mutual-exclusion mechanism: a second concurrent worker loses the race
// and gets ErrEventAlreadyClaimed instead of double-processing.
func (s *WebhookService) MarkProcessing(eventID uuid.UUID) error {
	result := s.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND status IN ?", eventID, []models.WebhookStatus{
			models.WebhookStatusPending,
			models.WebhookStatusFailed,
		}).
		Update("status", models.WebhookStatusProcessing)

	if result.Error != nil {
		return fmt.Errorf("failed to mark event processing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrEventAlreadyClaimed
	}
	return nil
}

func (s *WebhookService) MarkCompleted(eventID uuid.UUID) error {
	now := time.Now()
	if err := s.db.Model(&models.WebhookEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       models.WebhookStatusCompleted,
			"processed_at": &now,
		}).Error; err != nil {
		return fmt.Errorf("failed to mark event completed: %w", err)
	}
	return nil
}

// MarkFailed increments the retry count and decides between scheduling a
// retry and dead-lettering. Exhaustion keeps exactly one DeadLetterEntry per
// event, atomically with the status transition: a replayed event that
// exhausts its reset budget refreshes the existing entry's final error
// instead of inserting a second row.
func (s *WebhookService) MarkFailed(eventID uuid.UUID, errorMessage string) (RetryDecision, error) {
	var event models.WebhookEvent
	if err := s.db.First(&event, "id = ?", eventID).Error; err != nil {
		return RetryDecision{}, fmt.Errorf("webhook event not found: %w", err)
	}

	newCount := event.RetryCount + 1

	if newCount >= MaxWebhookRetries {
		err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
			if err := tx.Model(&models.WebhookEvent{}).
				Where("id = ?", eventID).
				Updates(map[string]interface{}{
					"status":        models.WebhookStatusDeadLetter,
					"retry_count":   newCount,
					"error_message": errorMessage,
				}).Error; err != nil {
				return err
			}

			// An admin-replayed event may already have an entry from its
			// first exhaustion; the unique index on webhook_event_id makes a
			// second insert roll back the whole transition.
			res := tx.Model(&models.DeadLetterEntry{}).
				Where("webhook_event_id = ?", eventID).
				Update("final_error", errorMessage)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return tx.Create(&models.DeadLetterEntry{
					WebhookEventID: eventID,
					FinalError:     errorMessage,
				}).Error
			}
			return nil
		})
		if err != nil {
			return RetryDecision{}, fmt.Errorf("failed to dead-letter event: %w", err)
		}

		logrus.WithFields(logrus.Fields{
			"event_id":    eventID,
			"source":      event.Source,
			"event_type":  event.EventType,
			"retry_count": newCount,
			"error":       errorMessage,
		}).Error("Webhook event moved to dead letter store")

		if s.notifications != nil {
			s.notifications.NotifyDeadLetter(&event, errorMessage)
		}

		return RetryDecision{ShouldRetry: false}, nil
	}

	if err := s.db.Model(&models.WebhookEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusFailed,
			"retry_count":   newCount,
			"error_message": errorMessage,
		}).Error; err != nil {
		return RetryDecision{}, fmt.Errorf("failed to mark event failed: %w", err)
	}

	delay := BackoffDelay(newCount)
	logrus.WithFields(logrus.Fields{
		"event_id":    eventID,
		"source":      event.Source,
		"retry_count": newCount,
		"retry_after": delay,
		"error":       errorMessage,
	}).Warn("Webhook event failed, retry scheduled")

	return RetryDecision{ShouldRetry: true, RetryAfter: delay}, nil
}

// BackoffDelay returns the wait before retry attempt n (1-based).
func BackoffDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return BaseRetryDelay * time.Duration(1<<(retryCount-1))
}

// GetRetryableWebhooks selects failed events that are under the retry budget
// and past the backoff window implied by their retry count, oldest first.
// Callers must claim each event via MarkProcessing before doing any work.
func (s *WebhookService) GetRetryableWebhooks(limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 10
	}

	var candidates []models.WebhookEvent
	if err := s.db.
		Where("status = ? AND retry_count < ?", models.WebhookStatusFailed, MaxWebhookRetries).
		Order("updated_at ASC").
		Limit(limit * 2).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to query retryable webhooks: %w", err)
	}

	now := time.Now()
	eligible := make([]models.WebhookEvent, 0, len(candidates))
	for _, event := range candidates {
		if now.Sub(event.UpdatedAt) >= BackoffDelay(event.RetryCount) {
			eligible = append(eligible, event)
			if len(eligible) == limit {
				break
			}
		}
	}

	return eligible, nil
}

func (s *WebhookService) GetEvent(eventID uuid.UUID) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := s.db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("webhook event not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &event, nil
}

func (s *WebhookService) GetWebhookStats(source *models.WebhookSource, since *time.Time) (*WebhookStats, error) {
	query := s.db.Model(&models.WebhookEvent{})
	if source != nil {
		query = query.Where("source = ?", *source)
	}
	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}

	stats := &WebhookStats{}
	if err := query.Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count webhook events: %w", err)
	}

	counts := []struct {
		status models.WebhookStatus
		target *int64
	}{
		{models.WebhookStatusCompleted, &stats.Completed},
		{models.WebhookStatusFailed, &stats.Failed},
		{models.WebhookStatusDeadLetter, &stats.DeadLetter},
		{models.WebhookStatusProcessing, &stats.Processing},
		{models.WebhookStatusPending, &stats.Pending},
	}

	for _, c := range counts {
		q := s.db.Model(&models.WebhookEvent{}).Where("status = ?", c.status)
		if source != nil {
			q = q.Where("source = ?", *source)
		}
		if since != nil {
			q = q.Where("created_at >= ?", *since)
		}
		if err := q.Count(c.target).Error; err != nil {
			return nil, fmt.Errorf("failed to count webhook events: %w", err)
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.Total)
	}

	return stats, nil
}

func (s *WebhookService) GetRecentFailures(limit int) ([]models.WebhookEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	var events []models.WebhookEvent
	if err := s.db.
		Where("status IN ?", []models.WebhookStatus{
			models.WebhookStatusFailed,
			models.WebhookStatusDeadLetter,
		}).
		Order("updated_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recent failures: %w", err)
	}
	return events, nil
}

func (s *WebhookService) GetDeadLetterQueue() ([]models.DeadLetterEntry, error) {
	var entries []models.DeadLetterEntry
	if err := s.db.
		Preload("WebhookEvent").
		Order("created_at DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch dead letter queue: %w", err)
	}
	return entries, nil
}

func (s *WebhookService) MarkDeadLetterReviewed(entryID, adminID uuid.UUID) error {
	now := time.Now()
	result := s.db.Model(&models.DeadLetterEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"reviewed":    true,
			"reviewed_by": adminID,
			"reviewed_at": &now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark dead letter reviewed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("dead letter entry not found")
	}
	return nil
}
