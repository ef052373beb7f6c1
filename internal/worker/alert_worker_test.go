package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/amqp"
	"ledger/internal/core"
	"ledger/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func alert() *amqp.BudgetAlertMessage {
	return &amqp.BudgetAlertMessage{
		BudgetID:       "b1",
		UserID:         "alice",
		BudgetName:     "Groceries",
		PercentageUsed: decimal.RequireFromString("81.5"),
		Threshold:      80,
		Status:         string(core.BudgetActive),
		Timestamp:      time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleBudgetAlert(t *testing.T) {
	repo := newTestRepo(t)
	w := NewAlertWorker(repo)
	ctx := context.Background()

	require.NoError(t, w.HandleBudgetAlert(ctx, alert()))

	notes, err := repo.ListNotifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "b1", notes[0].BudgetID)
	assert.Equal(t, core.NotificationBudgetAlert, notes[0].Kind)
	assert.Contains(t, notes[0].Message, `"Groceries"`)
	assert.Contains(t, notes[0].Message, "81.50%")
}

func TestHandleBudgetAlert_Redelivery(t *testing.T) {
	repo := newTestRepo(t)
	w := NewAlertWorker(repo)
	ctx := context.Background()

	require.NoError(t, w.HandleBudgetAlert(ctx, alert()))
	require.NoError(t, w.HandleBudgetAlert(ctx, alert()))

	later := alert()
	later.Timestamp = later.Timestamp.Add(24 * time.Hour)
	require.NoError(t, w.HandleBudgetAlert(ctx, later))

	notes, err := repo.ListNotifications(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestHandleBudgetAlert_DropsIncomplete(t *testing.T) {
	repo := newTestRepo(t)
	w := NewAlertWorker(repo)

	msg := alert()
	msg.UserID = ""
	assert.NoError(t, w.HandleBudgetAlert(context.Background(), msg))
}
