package postgres_adapter

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/core/domain"
	"github.com/brunomacedo1203/taskcollab/pkg/postgres"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Запускается только при заданном TEST_DATABASE_URL.
func TestRepositoriesAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()

	pool, err := postgres.NewClient(ctx, postgres.Config{DatabaseURL: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))

	participants, err := NewParticipantRepository(pool)
	require.NoError(t, err)
	notifications, err := NewNotificationRepository(pool)
	require.NoError(t, err)

	taskID := "t-" + uuid.NewString()
	require.NoError(t, participants.Upsert(ctx, domain.ParticipantSnapshot{TaskID: taskID, CreatorID: "u-c", AssigneeIDs: []string{"u-1"}}))
	snap, err := participants.FindByTaskID(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, "u-c", snap.CreatorID)
	assert.Equal(t, []string{"u-1"}, snap.AssigneeIDs)

	_, err = participants.FindByTaskID(ctx, "t-missing-"+uuid.NewString())
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	recipient := "u-" + uuid.NewString()
	n := domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipient,
		Type:        domain.EventTaskCreated,
		TaskID:      taskID,
		Title:       "New task: T",
		Body:        "A new task was created.",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		DedupKey:    recipient + "|" + taskID,
	}
	saved, err := notifications.InsertMany(ctx, []domain.Notification{n})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	dup := n
	dup.ID = uuid.NewString()
	saved, err = notifications.InsertMany(ctx, []domain.Notification{dup})
	require.NoError(t, err)
	assert.Empty(t, saved)

	unread, err := notifications.ListUnread(ctx, recipient, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)

	first, err := notifications.MarkRead(ctx, n.ID, recipient, time.Now())
	require.NoError(t, err)
	second, err := notifications.MarkRead(ctx, n.ID, recipient, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, first.ReadAt.Equal(*second.ReadAt))

	_, err = notifications.MarkRead(ctx, n.ID, "someone-else", time.Now())
	require.ErrorIs(t, err, domain.ErrNotificationNotFound)
}
