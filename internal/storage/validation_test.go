package storage

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Veraticus/condo-quotas/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	tests := []struct {
		category *model.BudgetCategory
		wantErr  error
		name     string
	}{
		{
			name:     "valid all scope",
			category: &model.BudgetCategory{BudgetID: 1, Name: "Cleaning", PlannedAmount: 100},
		},
		{
			name:     "nil category",
			category: nil,
			wantErr:  ErrNilParameter,
		},
		{
			name:     "missing budget",
			category: &model.BudgetCategory{Name: "Cleaning"},
			wantErr:  ErrInvalidCategory,
		},
		{
			name:     "blank name",
			category: &model.BudgetCategory{BudgetID: 1, Name: " "},
			wantErr:  ErrInvalidCategory,
		},
		{
			name:     "infinite amount",
			category: &model.BudgetCategory{BudgetID: 1, Name: "Cleaning", PlannedAmount: math.Inf(1)},
			wantErr:  ErrInvalidCategory,
		},
		{
			name:     "unknown scope",
			category: &model.BudgetCategory{BudgetID: 1, Name: "Cleaning", Scope: "everyone"},
			wantErr:  ErrInvalidCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCategory(tt.category)
			if tt.wantErr == nil && err != nil {
				t.Errorf("validateCategory() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("validateCategory() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateObligation(t *testing.T) {
	issue := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	valid := model.PaymentObligation{
		UnitID:    1,
		Amount:    10,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 0, 14),
		Period:    "2025-03",
		Status:    model.ObligationPending,
	}

	tests := []struct {
		mutate  func(*model.PaymentObligation)
		wantErr error
		name    string
	}{
		{name: "valid", mutate: func(*model.PaymentObligation) {}},
		{name: "missing unit", mutate: func(o *model.PaymentObligation) { o.UnitID = 0 }, wantErr: ErrInvalidObligation},
		{name: "negative amount", mutate: func(o *model.PaymentObligation) { o.Amount = -1 }, wantErr: ErrInvalidObligation},
		{name: "due before issue", mutate: func(o *model.PaymentObligation) { o.DueDate = issue.AddDate(0, 0, -1) }, wantErr: ErrInvalidObligation},
		{name: "missing period", mutate: func(o *model.PaymentObligation) { o.Period = "" }, wantErr: ErrInvalidObligation},
		{name: "unknown status", mutate: func(o *model.PaymentObligation) { o.Status = "void" }, wantErr: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obligation := valid
			tt.mutate(&obligation)
			err := validateObligation(obligation)
			if tt.wantErr == nil && err != nil {
				t.Errorf("validateObligation() unexpected error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("validateObligation() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateItem(t *testing.T) {
	if err := validateItem(model.ScheduleItem{ScheduleID: 1, UnitID: 2, MonthIndex: 11, Amount: 0}); err != nil {
		t.Errorf("zero amount item should be valid: %v", err)
	}
	if err := validateItem(model.ScheduleItem{UnitID: 2}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("item without schedule: got %v", err)
	}
	if err := validateItem(model.ScheduleItem{ScheduleID: 1, UnitID: 2, MonthIndex: -1}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("negative month index: got %v", err)
	}
	if err := validateItem(model.ScheduleItem{ScheduleID: 1, UnitID: 2, Amount: math.NaN()}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("NaN amount: got %v", err)
	}
}
