// internal/services/webhook_dispatcher.go
package services

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/modelmint/modelmint-backend/internal/models"
)

// WebhookProcessor turns a validated, durably-logged payload into domain
// state changes. Process must be idempotent: redelivery and retry both call
// it again with the same payload.
type WebhookProcessor interface {
	Source() models.WebhookSource
	Process(event *models.WebhookEvent) error
}

// WebhookDispatcher routes logged events to the processor registered for
// their source. The processor table is closed at construction, so a new
// source is a compile-time-checked addition, not a string comparison.
type WebhookDispatcher struct {
	webhooks   *WebhookService
	processors map[models.WebhookSource]WebhookProcessor
}

func NewWebhookDispatcher(webhooks *WebhookService, processors ...WebhookProcessor) *WebhookDispatcher {
	table := make(map[models.WebhookSource]WebhookProcessor, len(processors))
	for _, p := range processors {
		table[p.Source()] = p
	}
	return &WebhookDispatcher{
		webhooks:   webhooks,
		processors: table,
	}
}

// ProcessIncoming is the ingress path: log first, then process. The returned
// event is non-nil whenever the notification was durably recorded, even if
// processing failed and was left to the retry scheduler.
func (d *WebhookDispatcher) ProcessIncoming(source models.WebhookSource, eventType string, payload models.JSONB, payloadHash, signature string) (*models.WebhookEvent, error) {
	event, err := d.webhooks.LogEvent(source, eventType, payload, payloadHash, signature)
	if err != nil {
		return nil, err
	}

	if err := d.Dispatch(event); err != nil {
		return event, err
	}
	return event, nil
}

// Dispatch claims the event and runs its processor. A processor error is
// recorded via MarkFailed; the backoff delay is enforced by the retry
// scheduler's selection query, never by blocking here.
func (d *WebhookDispatcher) Dispatch(event *models.WebhookEvent) error {
	processor, ok := d.processors[event.Source]
	if !ok {
		err := fmt.Errorf("no processor registered for source %q", event.Source)
		if _, mfErr := d.webhooks.MarkFailed(event.ID, err.Error()); mfErr != nil {
			logrus.WithError(mfErr).Error("Failed to record dispatch error")
		}
		return err
	}

	if err := d.webhooks.MarkProcessing(event.ID); err != nil {
		if errors.Is(err, ErrEventAlreadyClaimed) {
			logrus.WithField("event_id", event.ID).Info("Webhook event claimed elsewhere, skipping")
		}
		return err
	}

	if err := processor.Process(event); err != nil {
		decision, mfErr := d.webhooks.MarkFailed(event.ID, err.Error())
		if mfErr != nil {
			logrus.WithError(mfErr).WithField("event_id", event.ID).Error("Failed to record processor error")
			return mfErr
		}
		logrus.WithFields(logrus.Fields{
			"event_id":     event.ID,
			"source":       event.Source,
			"event_type":   event.EventType,
			"should_retry": decision.ShouldRetry,
		}).Warn("Webhook processing failed")
		return err
	}

	if err := d.webhooks.MarkCompleted(event.ID); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"source":     event.Source,
		"event_type": event.EventType,
	}).Info("Webhook event processed")
	return nil
}
