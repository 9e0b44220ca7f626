package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiscalMonth(t *testing.T) {
	tests := []struct {
		index int
		want  time.Time
	}{
		{index: 0, want: time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)},
		{index: 5, want: time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{index: 10, want: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)},
		{index: 11, want: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := FiscalMonth(2025, tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "index %d", tt.index)
	}

	_, err := FiscalMonth(2025, 12)
	assert.Error(t, err)
	_, err = FiscalMonth(2025, -1)
	assert.Error(t, err)
}

func TestMonthLabels(t *testing.T) {
	labels := MonthLabels()
	assert.Equal(t, "Feb", labels[0])
	assert.Equal(t, "Dec", labels[10])
	assert.Equal(t, "Jan", labels[11])

	// Labels follow the fiscal month mapping.
	for i, label := range labels {
		month, err := FiscalMonth(2025, i)
		require.NoError(t, err)
		assert.Equal(t, month.Format("Jan"), label)
	}
}

func TestCalendarMonth(t *testing.T) {
	start := time.Date(2025, time.November, 20, 14, 30, 0, 0, time.Local)

	assert.Equal(t, time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC), CalendarMonth(start, 0))
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), CalendarMonth(start, 2))
	assert.Equal(t, time.Date(2035, time.October, 1, 0, 0, 0, 0, time.UTC), CalendarMonth(start, 119))
}
