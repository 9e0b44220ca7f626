package sheets

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/quota"
)

func testSchedule(t *testing.T) *quota.Schedule {
	t.Helper()
	s, err := quota.BuildSchedule(quota.ScheduleInput{
		Budget: model.Budget{ID: 7, CondominiumID: 1, Year: 2025, TotalAmount: 1200, ReserveFundPercentage: 10},
		Units: []model.Unit{
			{ID: 2, CondominiumID: 1, Number: "B", Type: model.UnitTypeResidential, Weight: 400},
			{ID: 1, CondominiumID: 1, Number: "A", Type: model.UnitTypeResidential, Weight: 600},
		},
		Categories: []model.BudgetCategory{
			{ID: 9, BudgetID: 7, Name: "Cleaning", PlannedAmount: 1200, Scope: model.ScopeAll, ContributesToFCR: true},
		},
	})
	require.NoError(t, err)
	return s
}

func TestScheduleReport(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	report := NewScheduleReport(testSchedule(t), "Edificio Aurora 2025", now)

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "A", report.Rows[0].Unit)
	assert.Equal(t, "66", report.Rows[0].Monthly[0].String())
	assert.Equal(t, "792", report.Rows[0].Annual.String())
	assert.Equal(t, "1320", report.Total.String())

	totals := report.MonthTotals()
	for _, total := range totals {
		assert.Equal(t, "110", total.String())
	}

	require.Len(t, report.Categories, 1)
	assert.Equal(t, CategoryRow{
		Name:         "Cleaning",
		Scope:        report.Categories[0].Scope,
		Divisor:      "participants",
		Monthly:      report.Categories[0].Monthly,
		Total:        report.Categories[0].Total,
		Participants: 2,
	}, report.Categories[0])
	assert.Equal(t, "110", report.Categories[0].Monthly.String())
	// Total is the planned amount; the monthly charge also carries the reserve.
	assert.Equal(t, "1200", report.Categories[0].Total.String())
	assert.Equal(t, "1320", report.Categories[0].Monthly.Mul(decimal.NewFromInt(12)).String())
}

func TestScheduleReportValues(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 30, 0, 0, time.UTC)
	report := NewScheduleReport(testSchedule(t), "Edificio Aurora 2025", now)
	values := report.Values()
	layout := report.Layout()

	assert.Equal(t, []any{"Edificio Aurora 2025"}, values[0])
	assert.Equal(t, []any{"Generated 2025-01-10 09:30"}, values[1])

	header := values[layout.HeaderRow]
	require.Len(t, header, quota.MonthsPerYear+2)
	assert.Equal(t, "Unit", header[0])
	assert.Equal(t, "Feb", header[1])
	assert.Equal(t, "Jan", header[12])
	assert.Equal(t, "Annual total", header[13])

	first := values[layout.HeaderRow+1]
	assert.Equal(t, "A", first[0])
	assert.InDelta(t, 66.0, first[1], 1e-9)
	assert.InDelta(t, 792.0, first[13], 1e-9)

	total := values[layout.TotalRow]
	assert.Equal(t, "Total", total[0])
	assert.InDelta(t, 110.0, total[1], 1e-9)
	assert.InDelta(t, 1320.0, total[13], 1e-9)

	assert.Equal(t, "Category", values[layout.CategoryHeaderRow][0])
	assert.Len(t, values, int(layout.CategoryHeaderRow)+2)
	assert.Equal(t, "Cleaning", values[layout.CategoryHeaderRow+1][0])
}

func TestMockPublisher(t *testing.T) {
	mock := &MockPublisher{SpreadsheetID: "sheet-1"}
	s := testSchedule(t)

	id, err := mock.Publish(context.Background(), s, "first")
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", id)

	mock.PublishFunc = func(context.Context, *quota.Schedule, string) (string, error) {
		return "", errors.New("quota exceeded")
	}
	_, err = mock.Publish(context.Background(), s, "second")
	require.Error(t, err)

	assert.Equal(t, 2, mock.CallCount())
	assert.Equal(t, "second", mock.Calls[1].Title)
	assert.Same(t, s, mock.Calls[0].Schedule)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

	require.NoError(t, saveToken(path, token))
	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.Equal(t, "access", loaded.AccessToken)

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestClassifyAPIError(t *testing.T) {
	limited := classifyAPIError(&googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"})
	assert.ErrorIs(t, limited, common.ErrRateLimit)
	assert.True(t, common.IsRetryable(limited))

	denied := classifyAPIError(&googleapi.Error{Code: http.StatusForbidden, Message: "no access"})
	assert.False(t, common.IsRetryable(denied))
	var apiErr *googleapi.Error
	assert.True(t, errors.As(denied, &apiErr))

	plain := errors.New("connection reset")
	assert.Same(t, plain, classifyAPIError(plain))
	assert.NoError(t, classifyAPIError(nil))
}
