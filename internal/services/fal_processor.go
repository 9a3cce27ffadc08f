// internal/services/fal_processor.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
)

// FalWebhookProcessor applies model-training completion notifications to the
// creator whose job they reference.
type FalWebhookProcessor struct {
	db            *gorm.DB
	notifications *NotificationService
}

func NewFalWebhookProcessor(db *gorm.DB, notifications *NotificationService) *FalWebhookProcessor {
	return &FalWebhookProcessor{
		db:            db,
		notifications: notifications,
	}
}

func (p *FalWebhookProcessor) Source() models.WebhookSource {
	return models.WebhookSourceFal
}

type falTrainingPayload struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Output    struct {
		DiffusersLoraFile struct {
			URL string `json:"url"`
		} `json:"diffusers_lora_file"`
	} `json:"output"`
	Error string `json:"error"`
}

func (p *FalWebhookProcessor) Process(event *models.WebhookEvent) error {
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to re-encode payload: %w", err)
	}

	var payload falTrainingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to decode training payload: %w", err)
	}
	if payload.RequestID == "" {
		return errors.New("training payload missing request_id")
	}

	// An unknown job identifier is surfaced, not swallowed: it means the
	// provider and our records disagree.
	var user models.User
	if err := p.db.First(&user, "training_job_id = ?", payload.RequestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("unknown training job %s", payload.RequestID)
		}
		return fmt.Errorf("failed to load creator: %w", err)
	}

	switch strings.ToLower(payload.Status) {
	case "completed":
		weightsURL := payload.Output.DiffusersLoraFile.URL
		if weightsURL == "" {
			return fmt.Errorf("training job %s completed without model weights", payload.RequestID)
		}

		updates := map[string]interface{}{
			"training_status":   models.TrainingStatusReady,
			"model_weights_url": weightsURL,
			"trigger_word":      DeriveTriggerWord(user.Username),
		}
		if err := p.db.Model(&user).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark training ready: %w", err)
		}

		user.TriggerWord = updates["trigger_word"].(string)
		p.notifications.NotifyTrainingCompleted(&user)

		logrus.WithFields(logrus.Fields{
			"creator_id": user.ID,
			"job_id":     payload.RequestID,
		}).Info("Creator model training completed")
		return nil

	case "failed":
		if err := p.db.Model(&user).Update("training_status", models.TrainingStatusFailed).Error; err != nil {
			return fmt.Errorf("failed to mark training failed: %w", err)
		}
		p.notifications.NotifyTrainingFailed(&user, payload.Error)

		logrus.WithFields(logrus.Fields{
			"creator_id": user.ID,
			"job_id":     payload.RequestID,
			"error":      payload.Error,
		}).Warn("Creator model training failed")
		return nil

	default:
		// Progress pings (in_queue, in_progress) carry no terminal result;
		// burning the retry budget on them would dead-letter healthy jobs.
		logrus.WithFields(logrus.Fields{
			"job_id": payload.RequestID,
			"status": payload.Status,
		}).Debug("Ignoring non-terminal training status")
		return nil
	}
}

// DeriveTriggerWord builds the prompt token for a creator's personal model
// from their username.
func DeriveTriggerWord(username string) string {
	var b strings.Builder
	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		b.WriteString("CREATOR")
	}
	return b.String() + "_STYLE"
}
