// Package events announces created payment obligations to the payment-tracking service.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/condo-quotas/internal/model"
)

// ObligationsCreatedType is the type of the message published after a finalization commits.
const ObligationsCreatedType = "obligations.created"

// ObligationLine is one obligation in an ObligationsCreated message.
type ObligationLine struct {
	DueDate string  `json:"due_date"`
	Period  string  `json:"period"`
	ID      int64   `json:"id"`
	UnitID  int64   `json:"unit_id"`
	Amount  float64 `json:"amount"`
}

// ObligationsCreated lists the obligations written by one finalization run.
// BudgetID is zero for standalone quotas.
type ObligationsCreated struct {
	Type        string           `json:"type"`
	RunID       string           `json:"run_id"`
	CreatedAt   time.Time        `json:"created_at"`
	Obligations []ObligationLine `json:"obligations"`
	ScheduleID  int64            `json:"schedule_id"`
	BudgetID    int64            `json:"budget_id,omitempty"`
	Standalone  bool             `json:"standalone"`
}

// NewObligationsCreated builds the message for a committed snapshot.
func NewObligationsCreated(runID string, snapshot model.ScheduleSnapshot, obligations []model.PaymentObligation, now time.Time) ObligationsCreated {
	msg := ObligationsCreated{
		Type:        ObligationsCreatedType,
		RunID:       runID,
		CreatedAt:   now.UTC(),
		ScheduleID:  snapshot.ID,
		Standalone:  snapshot.Standalone,
		Obligations: make([]ObligationLine, len(obligations)),
	}
	if snapshot.BudgetID != nil {
		msg.BudgetID = *snapshot.BudgetID
	}
	for i, o := range obligations {
		msg.Obligations[i] = ObligationLine{
			ID:      o.ID,
			UnitID:  o.UnitID,
			Amount:  o.Amount,
			Period:  o.Period,
			DueDate: o.DueDate.Format("2006-01-02"),
		}
	}
	return msg
}

// ToJSON encodes the message.
func (m ObligationsCreated) ToJSON() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Type, err)
	}
	return body, nil
}

// Publisher delivers obligation events.
type Publisher interface {
	PublishObligationsCreated(ctx context.Context, msg ObligationsCreated) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// PublishObligationsCreated does nothing.
func (Nop) PublishObligationsCreated(context.Context, ObligationsCreated) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
