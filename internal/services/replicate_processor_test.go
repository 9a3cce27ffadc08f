// internal/services/replicate_processor_test.go
package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/modelmint/modelmint-backend/internal/models"
)

func seedGeneration(t *testing.T, db *gorm.DB, status models.GenerationStatus) *models.Generation {
	t.Helper()

	user := &models.User{
		Username:     "genuser",
		Email:        "genuser@example.com",
		PasswordHash: "x",
		UserType:     models.UserTypeCreator,
	}
	require.NoError(t, db.Create(user).Error)

	generation := &models.Generation{
		UserID:       user.ID,
		CreatorID:    user.ID,
		PredictionID: "pred-7",
		Status:       status,
		Prompt:       "a cat in space",
	}
	require.NoError(t, db.Create(generation).Error)
	return generation
}

func replicateEvent(payload models.JSONB) *models.WebhookEvent {
	return &models.WebhookEvent{
		Source:    models.WebhookSourceReplicate,
		EventType: "prediction.succeeded",
		Payload:   payload,
	}
}

func TestReplicateProcessorSucceeded(t *testing.T) {
	db := newTestDB(t)
	store := newFakeObjectStore()
	store.fetchable["https://replicate.test/out.png"] = []byte("png-bytes")
	wm := &fakeWatermarker{}
	processor := NewReplicateWebhookProcessor(db, store, wm)
	generation := seedGeneration(t, db, models.GenerationStatusProcessing)

	event := replicateEvent(models.JSONB{
		"id":     "pred-7",
		"status": "succeeded",
		"output": []interface{}{"https://replicate.test/out.png"},
	})
	require.NoError(t, processor.Process(event))

	var stored models.Generation
	require.NoError(t, db.First(&stored, "id = ?", generation.ID).Error)
	assert.Equal(t, models.GenerationStatusSucceeded, stored.Status)
	assert.Equal(t, "https://assets.test/generations/"+generation.ID.String()+".png", stored.ImageURL)
	assert.Equal(t, stored.ImageURL+"?wm=1", stored.WatermarkedURL)
	assert.Equal(t, []byte("png-bytes"), store.stored["generations/"+generation.ID.String()+".png"])
	assert.Len(t, wm.applied, 1)
}

func TestReplicateProcessorFailed(t *testing.T) {
	db := newTestDB(t)
	processor := NewReplicateWebhookProcessor(db, newFakeObjectStore(), &fakeWatermarker{})
	generation := seedGeneration(t, db, models.GenerationStatusStarting)

	event := replicateEvent(models.JSONB{
		"id":     "pred-7",
		"status": "failed",
		"error":  "NSFW content detected",
	})
	require.NoError(t, processor.Process(event))

	var stored models.Generation
	require.NoError(t, db.First(&stored, "id = ?", generation.ID).Error)
	assert.Equal(t, models.GenerationStatusFailed, stored.Status)
	assert.Equal(t, "NSFW content detected", stored.ErrorMessage)
}

func TestReplicateProcessorUnmatchedPredictionIsNoop(t *testing.T) {
	db := newTestDB(t)
	processor := NewReplicateWebhookProcessor(db, newFakeObjectStore(), &fakeWatermarker{})

	// No generation rows at all: stale or already-processed delivery.
	event := replicateEvent(models.JSONB{
		"id":     "pred-gone",
		"status": "succeeded",
		"output": []interface{}{"https://replicate.test/out.png"},
	})
	assert.NoError(t, processor.Process(event))
}

func TestReplicateProcessorTerminalGenerationIsNoop(t *testing.T) {
	db := newTestDB(t)
	processor := NewReplicateWebhookProcessor(db, newFakeObjectStore(), &fakeWatermarker{})
	generation := seedGeneration(t, db, models.GenerationStatusSucceeded)

	// A redelivery for an already-completed generation changes nothing.
	event := replicateEvent(models.JSONB{
		"id":     "pred-7",
		"status": "failed",
		"error":  "late failure",
	})
	require.NoError(t, processor.Process(event))

	var stored models.Generation
	require.NoError(t, db.First(&stored, "id = ?", generation.ID).Error)
	assert.Equal(t, models.GenerationStatusSucceeded, stored.Status)
	assert.Empty(t, stored.ErrorMessage)
}

func TestReplicateProcessorErrorPaths(t *testing.T) {
	db := newTestDB(t)
	store := newFakeObjectStore()
	processor := NewReplicateWebhookProcessor(db, store, &fakeWatermarker{})
	seedGeneration(t, db, models.GenerationStatusProcessing)

	t.Run("succeeded without output", func(t *testing.T) {
		err := processor.Process(replicateEvent(models.JSONB{
			"id":     "pred-7",
			"status": "succeeded",
			"output": []interface{}{},
		}))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "without output")
	})

	t.Run("asset fetch failure is retryable", func(t *testing.T) {
		store.fetchErr = errors.New("upstream 503")
		err := processor.Process(replicateEvent(models.JSONB{
			"id":     "pred-7",
			"status": "succeeded",
			"output": []interface{}{"https://replicate.test/out.png"},
		}))
		assert.Error(t, err)

		// The generation stays in-flight so a retry can finish the job.
		var stored models.Generation
		require.NoError(t, db.First(&stored, "prediction_id = ?", "pred-7").Error)
		assert.Equal(t, models.GenerationStatusProcessing, stored.Status)
	})

	t.Run("progress statuses are ignored", func(t *testing.T) {
		assert.NoError(t, processor.Process(replicateEvent(models.JSONB{
			"id":     "pred-7",
			"status": "processing",
		})))
	})

	t.Run("missing id", func(t *testing.T) {
		err := processor.Process(replicateEvent(models.JSONB{"status": "succeeded"}))
		assert.Error(t, err)
	})
}
