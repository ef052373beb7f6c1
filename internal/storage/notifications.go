package storage

import (
	"context"
	"fmt"

	"ledger/internal/core"
)

// CreateNotification inserts n. Reusing an ID returns ErrAlreadyExists.
func (r *SQLiteRepository) CreateNotification(ctx context.Context, n *core.Notification) error {
	if n.ID == "" {
		n.ID = newID()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO notifications (id, user_id, budget_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.UserID, n.BudgetID, n.Kind, n.Message, formatTime(n.CreatedAt),
	)
	if isUniqueViolation(err, "notifications.id") {
		return fmt.Errorf("notification %s: %w", n.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID string) ([]core.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, budget_id, kind, message, created_at FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id",
		userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		var (
			n         core.Notification
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.BudgetID, &n.Kind, &n.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}
