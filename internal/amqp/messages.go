package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// BudgetAlertMessage is published when a budget crosses its alert threshold.
// The consumer turns it into a notification record.
type BudgetAlertMessage struct {
	BudgetID       string          `json:"budget_id"`
	UserID         string          `json:"user_id"`
	BudgetName     string          `json:"budget_name,omitempty"`
	PercentageUsed decimal.Decimal `json:"percentage_used"`
	Threshold      int             `json:"threshold"`
	Status         string          `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewBudgetAlertMessage snapshots the alerting fields of b.
func NewBudgetAlertMessage(b core.Budget, now time.Time) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		BudgetID:       b.ID,
		UserID:         b.UserID,
		BudgetName:     b.Name,
		PercentageUsed: b.Stats.PercentageUsed,
		Threshold:      b.Settings.AlertThreshold,
		Status:         string(b.Status),
		Timestamp:      now,
	}
}

func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
