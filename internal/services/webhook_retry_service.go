// internal/services/webhook_retry_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/database"
	"github.com/modelmint/modelmint-backend/internal/models"
)

const DefaultRetryBatchSize = 10

// WebhookRetryService is the poll-based scheduler: an external trigger (the
// server ticker or the admin retry endpoint) asks it to process eligible
// failed events now. Overlapping runs are safe because each candidate is
// claimed through the failed->processing transition before any work.
type WebhookRetryService struct {
	db         *gorm.DB
	webhooks   *WebhookService
	dispatcher *WebhookDispatcher
}

func NewWebhookRetryService(db *gorm.DB, webhooks *WebhookService, dispatcher *WebhookDispatcher) *WebhookRetryService {
	return &WebhookRetryService{
		db:         db,
		webhooks:   webhooks,
		dispatcher: dispatcher,
	}
}

type RetryRunResult struct {
	Selected  int `json:"selected"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ProcessRetryable fetches up to limit eligible events and re-dispatches
// them sequentially. A candidate claimed by a concurrent run is skipped, not
// an error.
func (s *WebhookRetryService) ProcessRetryable(ctx context.Context, limit int) (*RetryRunResult, error) {
	events, err := s.webhooks.GetRetryableWebhooks(limit)
	if err != nil {
		return nil, err
	}

	result := &RetryRunResult{Selected: len(events)}
	for i := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		event := events[i]
		if err := s.dispatcher.Dispatch(&event); err != nil {
			if errors.Is(err, ErrEventAlreadyClaimed) {
				result.Skipped++
				continue
			}
			result.Failed++
			continue
		}
		result.Succeeded++
	}

	if result.Selected > 0 {
		logrus.WithFields(logrus.Fields{
			"selected":  result.Selected,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"skipped":   result.Skipped,
		}).Info("Webhook retry run completed")
	}

	return result, nil
}

// RetryEvent re-dispatches a single event on admin request. Dead-lettered
// events may be replayed this way: the retry budget is reset and the entry
// stays in the dead letter store for the audit trail.
func (s *WebhookRetryService) RetryEvent(eventID uuid.UUID) error {
	event, err := s.webhooks.GetEvent(eventID)
	if err != nil {
		return err
	}

	switch event.Status {
	case models.WebhookStatusFailed:
		// eligible as-is
	case models.WebhookStatusDeadLetter:
		err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
			return tx.Model(&models.WebhookEvent{}).
				Where("id = ? AND status = ?", eventID, models.WebhookStatusDeadLetter).
				Updates(map[string]interface{}{
					"status":      models.WebhookStatusFailed,
					"retry_count": 0,
				}).Error
		})
		if err != nil {
			return fmt.Errorf("failed to requeue dead-lettered event: %w", err)
		}
		event.Status = models.WebhookStatusFailed
		event.RetryCount = 0
		logrus.WithField("event_id", eventID).Warn("Dead-lettered webhook event requeued by admin")
	default:
		return fmt.Errorf("event in status %q is not retryable", event.Status)
	}

	return s.dispatcher.Dispatch(event)
}
