// internal/services/fal_processor_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
)

func seedTrainingCreator(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	creator := &models.User{
		Username:       "Jane Doe",
		Email:          "jane@example.com",
		PasswordHash:   "x",
		UserType:       models.UserTypeCreator,
		TrainingJobID:  "job-42",
		TrainingStatus: models.TrainingStatusTraining,
	}
	require.NoError(t, db.Create(creator).Error)
	return creator
}

func falEvent(payload models.JSONB) *models.WebhookEvent {
	return &models.WebhookEvent{
		Source:    models.WebhookSourceFal,
		EventType: "training.completed",
		Payload:   payload,
	}
}

func TestFalProcessorTrainingCompleted(t *testing.T) {
	db := newTestDB(t)
	processor := NewFalWebhookProcessor(db, NewNotificationService(db, newTestConfig()))
	creator := seedTrainingCreator(t, db)

	event := falEvent(models.JSONB{
		"request_id": "job-42",
		"status":     "completed",
		"output": map[string]interface{}{
			"diffusers_lora_file": map[string]interface{}{
				"url": "https://weights.test/lora.safetensors",
			},
		},
	})
	require.NoError(t, processor.Process(event))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", creator.ID).Error)
	assert.Equal(t, models.TrainingStatusReady, stored.TrainingStatus)
	assert.Equal(t, "https://weights.test/lora.safetensors", stored.ModelWeightsURL)
	assert.Equal(t, "JANEDOE_STYLE", stored.TriggerWord)

	var notificationCount int64
	require.NoError(t, db.Model(&models.AdminNotification{}).
		Where("type = ?", "training_completed").
		Count(&notificationCount).Error)
	assert.Equal(t, int64(1), notificationCount)
}

func TestFalProcessorTrainingFailed(t *testing.T) {
	db := newTestDB(t)
	processor := NewFalWebhookProcessor(db, NewNotificationService(db, newTestConfig()))
	creator := seedTrainingCreator(t, db)

	event := falEvent(models.JSONB{
		"request_id": "job-42",
		"status":     "failed",
		"error":      "out of GPU memory",
	})
	require.NoError(t, processor.Process(event))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", creator.ID).Error)
	assert.Equal(t, models.TrainingStatusFailed, stored.TrainingStatus)
}

func TestFalProcessorRejectsBadPayloads(t *testing.T) {
	db := newTestDB(t)
	processor := NewFalWebhookProcessor(db, NewNotificationService(db, newTestConfig()))
	seedTrainingCreator(t, db)

	t.Run("unknown job id", func(t *testing.T) {
		err := processor.Process(falEvent(models.JSONB{
			"request_id": "job-unknown",
			"status":     "completed",
		}))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown training job")
	})

	t.Run("missing request id", func(t *testing.T) {
		err := processor.Process(falEvent(models.JSONB{"status": "completed"}))
		assert.Error(t, err)
	})

	t.Run("completed without weights", func(t *testing.T) {
		err := processor.Process(falEvent(models.JSONB{
			"request_id": "job-42",
			"status":     "completed",
		}))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "without model weights")
	})

	t.Run("non-terminal statuses are ignored", func(t *testing.T) {
		for _, status := range []string{"in_queue", "in_progress"} {
			assert.NoError(t, processor.Process(falEvent(models.JSONB{
				"request_id": "job-42",
				"status":     status,
			})))
		}

		var stored models.User
		require.NoError(t, db.First(&stored, "training_job_id = ?", "job-42").Error)
		assert.Equal(t, models.TrainingStatusTraining, stored.TrainingStatus)
	})
}

func TestDeriveTriggerWord(t *testing.T) {
	assert.Equal(t, "JANEDOE_STYLE", DeriveTriggerWord("Jane Doe"))
	assert.Equal(t, "ACE99_STYLE", DeriveTriggerWord("ace-99"))
	assert.Equal(t, "CREATOR_STYLE", DeriveTriggerWord("!!!"))
	assert.Equal(t, "CREATOR_STYLE", DeriveTriggerWord(""))
}
