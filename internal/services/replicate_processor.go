// internal/services/replicate_processor.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
)

// ReplicateWebhookProcessor finalizes in-flight image generations: on
// success it pulls the produced asset into our storage, watermarks it, and
// marks the generation complete.
type ReplicateWebhookProcessor struct {
	db        *gorm.DB
	storage   ObjectStore
	watermark Watermarker
}

func NewReplicateWebhookProcessor(db *gorm.DB, storage ObjectStore, watermark Watermarker) *ReplicateWebhookProcessor {
	return &ReplicateWebhookProcessor{
		db:        db,
		storage:   storage,
		watermark: watermark,
	}
}

func (p *ReplicateWebhookProcessor) Source() models.WebhookSource {
	return models.WebhookSourceReplicate
}

type replicatePredictionPayload struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Output []string `json:"output"`
	Error  string   `json:"error"`
}

func (p *ReplicateWebhookProcessor) Process(event *models.WebhookEvent) error {
	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to re-encode payload: %w", err)
	}

	var payload replicatePredictionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to decode prediction payload: %w", err)
	}
	if payload.ID == "" {
		return errors.New("prediction payload missing id")
	}

	// No in-flight generation means this delivery was already processed or
	// is stale: a benign no-op, not an error.
	var generation models.Generation
	err = p.db.
		Where("prediction_id = ? AND status IN ?", payload.ID, []models.GenerationStatus{
			models.GenerationStatusStarting,
			models.GenerationStatusProcessing,
		}).
		First(&generation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithField("prediction_id", payload.ID).
				Info("No in-flight generation for prediction, ignoring")
			return nil
		}
		return fmt.Errorf("failed to load generation: %w", err)
	}

	switch strings.ToLower(payload.Status) {
	case "succeeded":
		return p.completeGeneration(&generation, payload.Output)

	case "failed", "canceled":
		updates := map[string]interface{}{
			"status":        models.GenerationStatusFailed,
			"error_message": payload.Error,
		}
		if err := p.db.Model(&generation).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to mark generation failed: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"generation_id": generation.ID,
			"prediction_id": payload.ID,
			"error":         payload.Error,
		}).Warn("Generation failed")
		return nil

	case "starting", "processing":
		// Progress notifications carry no new state for us.
		return nil

	default:
		return fmt.Errorf("unknown prediction status %q", payload.Status)
	}
}

func (p *ReplicateWebhookProcessor) completeGeneration(generation *models.Generation, output []string) error {
	if len(output) == 0 {
		return fmt.Errorf("prediction %s succeeded without output", generation.PredictionID)
	}

	data, err := p.storage.FetchBytes(output[0])
	if err != nil {
		return fmt.Errorf("failed to fetch generated asset: %w", err)
	}

	key := fmt.Sprintf("generations/%s.png", generation.ID)
	imageURL, err := p.storage.PutBytes(data, key, "image/png")
	if err != nil {
		return fmt.Errorf("failed to store generated asset: %w", err)
	}

	watermarkedURL, err := p.watermark.Apply(imageURL, generation.ID.String())
	if err != nil {
		return fmt.Errorf("failed to watermark generated asset: %w", err)
	}

	updates := map[string]interface{}{
		"status":          models.GenerationStatusSucceeded,
		"image_url":       imageURL,
		"watermarked_url": watermarkedURL,
	}
	if err := p.db.Model(generation).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to mark generation succeeded: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"generation_id": generation.ID,
		"prediction_id": generation.PredictionID,
	}).Info("Generation completed")
	return nil
}
