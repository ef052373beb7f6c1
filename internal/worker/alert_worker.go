package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ledger/internal/amqp"
	ledgerlog "ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/storage"
)

// alertNamespace derives notification IDs from alert content, so a
// redelivered message does not notify twice.
var alertNamespace = uuid.MustParse("b6a7e0d4-58c1-4f0f-8d2a-7c9e3b1f4a60")

// AlertWorker turns budget alert messages into notification records.
type AlertWorker struct {
	storage *storage.SQLiteRepository
}

func NewAlertWorker(storage *storage.SQLiteRepository) *AlertWorker {
	return &AlertWorker{storage: storage}
}

// HandleBudgetAlert stores a notification for msg. Returning an error makes
// the consumer requeue the message.
func (w *AlertWorker) HandleBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error {
	logger := ledgerlog.FromContext(ctx).WithComponent(ledgerlog.ComponentWorker)
	if msg.BudgetID == "" || msg.UserID == "" {
		logger.WarnContext(ctx, "Dropping budget alert without budget or user",
			ledgerlog.FieldBudgetID, msg.BudgetID,
			ledgerlog.FieldUserID, msg.UserID)
		return nil
	}

	logger.InfoContext(ctx, "Processing budget alert",
		ledgerlog.NewFields().
			WithOperation(ledgerlog.OpAlert).
			WithBudget(msg.BudgetID, msg.PercentageUsed.String(), msg.Status).
			ToSlice()...)

	n := services.NotificationFromAlert(msg, msg.Timestamp)
	n.ID = uuid.NewSHA1(alertNamespace, []byte(msg.BudgetID+"/"+msg.Timestamp.UTC().Format("20060102T150405.000000000"))).String()

	err := w.storage.CreateNotification(ctx, &n)
	if errors.Is(err, storage.ErrAlreadyExists) {
		logger.DebugContext(ctx, "Budget alert already stored", ledgerlog.FieldNotifyID, n.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	logger.InfoContext(ctx, "Budget alert stored",
		ledgerlog.FieldNotifyID, n.ID,
		ledgerlog.FieldUserID, n.UserID,
		ledgerlog.FieldThreshold, msg.Threshold)
	return nil
}
