package database

import (
	"context"
	"testing"
	"time"

	"tidybeast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyQueueLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotifyTask{
		BookingID: "b-1",
		Payload:   `{"id":"b-1"}`,
		Status:    "pending",
	}
	require.NoError(t, db.CreateNotifyTask(ctx, task))
	require.NotZero(t, task.ID)

	pending, err := db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b-1", pending[0].BookingID)
	assert.Equal(t, `{"id":"b-1"}`, pending[0].Payload)

	got, err := db.GetNotifyTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)

	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, task.ID, "completed", "", nil))

	got, err = db.GetNotifyTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	pending, err = db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestNotifyQueueRetryScheduling(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotifyTask{BookingID: "b-2", Payload: "{}", Status: "pending"}
	require.NoError(t, db.CreateNotifyTask(ctx, task))

	// A retry scheduled in the future must not be picked up yet.
	future := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, task.ID, "retry", "sheets unavailable", &future))

	pending, err := db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Once the retry time passes the task is pending again.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, task.ID, "retry", "sheets unavailable", &past))

	pending, err = db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].RetryCount)
	require.NotNil(t, pending[0].LastError)
	assert.Equal(t, "sheets unavailable", *pending[0].LastError)
}

func TestNotifyQueueFailedTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotifyTask{BookingID: "b-3", Payload: "{}", Status: "pending"}
	require.NoError(t, db.CreateNotifyTask(ctx, task))
	require.NoError(t, db.UpdateNotifyTaskStatus(ctx, task.ID, "failed", "all channels failed", nil))

	failed, err := db.GetFailedNotifyTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b-3", failed[0].BookingID)
	require.NotNil(t, failed[0].ProcessedAt)

	pending, err := db.GetPendingNotifyTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
