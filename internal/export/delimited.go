// Package export renders computed quota schedules as delimited text and spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/condo-quotas/internal/quota"
)

// Delimiter separates fields in delimited exports.
const Delimiter = ';'

// Header labels.
const (
	UnitHeader   = "Unit"
	AnnualHeader = "Annual total"
)

// Amount rounds v to cents.
func Amount(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FormatAmount renders v with two decimals and a comma decimal separator.
func FormatAmount(v float64) string {
	return strings.Replace(Amount(v).StringFixed(2), ".", ",", 1)
}

// Header returns the column labels of a schedule matrix.
func Header() []string {
	labels := quota.MonthLabels()
	header := make([]string, 0, quota.MonthsPerYear+2)
	header = append(header, UnitHeader)
	header = append(header, labels[:]...)
	return append(header, AnnualHeader)
}

// Records returns one record per schedule row, in schedule order.
func Records(s *quota.Schedule, format func(float64) string) [][]string {
	records := make([][]string, 0, len(s.Rows))
	for _, row := range s.Rows {
		record := make([]string, 0, quota.MonthsPerYear+2)
		record = append(record, row.Unit.Number)
		for _, amount := range row.Monthly {
			record = append(record, format(amount))
		}
		records = append(records, append(record, format(row.Annual)))
	}
	return records
}

// WriteDelimited writes the schedule as semicolon separated text with a header line.
func WriteDelimited(w io.Writer, s *quota.Schedule) error {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter

	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(Records(s, FormatAmount)); err != nil {
		return fmt.Errorf("failed to write schedule rows: %w", err)
	}
	return nil
}
