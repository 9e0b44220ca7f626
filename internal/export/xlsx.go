package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/condo-quotas/internal/quota"
)

// Sheet names of the XLSX export.
const (
	ScheduleSheet   = "Schedule"
	CategoriesSheet = "Categories"
)

// CategoriesHeader labels the category summary sheet.
var CategoriesHeader = []string{
	"Category", "Scope", "Participants", "Divisor", "Monthly total", "Planned amount", "Warning",
}

// builtin number format 4 is "#,##0.00".
const amountNumFmt = 4

// WriteXLSX writes the schedule matrix and a category summary as an XLSX workbook.
func WriteXLSX(w io.Writer, s *quota.Schedule) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	index, err := f.NewSheet(ScheduleSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(CategoriesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: amountNumFmt})
	if err != nil {
		return fmt.Errorf("failed to create amount style: %w", err)
	}

	if err := writeScheduleSheet(f, s, headerStyle, amountStyle); err != nil {
		return err
	}
	if err := writeCategoriesSheet(f, s, headerStyle, amountStyle); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any, style int) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	if style == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(values), row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	return f.SetCellStyle(sheet, cell, last, style)
}

func writeScheduleSheet(f *excelize.File, s *quota.Schedule, headerStyle, amountStyle int) error {
	header := Header()
	values := make([]any, len(header))
	for i, h := range header {
		values[i] = h
	}
	if err := writeRow(f, ScheduleSheet, 1, values, headerStyle); err != nil {
		return err
	}

	for i, row := range s.Rows {
		values := make([]any, 0, len(header))
		values = append(values, row.Unit.Number)
		for _, amount := range row.Monthly {
			values = append(values, Amount(amount).InexactFloat64())
		}
		values = append(values, Amount(row.Annual).InexactFloat64())
		if err := writeRow(f, ScheduleSheet, i+2, values, 0); err != nil {
			return err
		}
	}

	if len(s.Rows) > 0 {
		first, _ := excelize.CoordinatesToCellName(2, 2)
		last, _ := excelize.CoordinatesToCellName(len(header), len(s.Rows)+1)
		if err := f.SetCellStyle(ScheduleSheet, first, last, amountStyle); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	return f.SetColWidth(ScheduleSheet, "A", "A", 12)
}

func writeCategoriesSheet(f *excelize.File, s *quota.Schedule, headerStyle, amountStyle int) error {
	values := make([]any, len(CategoriesHeader))
	for i, h := range CategoriesHeader {
		values[i] = h
	}
	if err := writeRow(f, CategoriesSheet, 1, values, headerStyle); err != nil {
		return err
	}

	for i, summary := range s.Summary {
		warning := ""
		if summary.Warning != nil {
			warning = summary.Warning.Error()
		}
		row := []any{
			summary.Category.Name,
			summary.ScopeLabel,
			summary.Participants,
			summary.Divisor.Kind.String(),
			Amount(summary.Charge.Total).InexactFloat64(),
			Amount(summary.Total).InexactFloat64(),
			warning,
		}
		if err := writeRow(f, CategoriesSheet, i+2, row, 0); err != nil {
			return err
		}
	}

	if len(s.Summary) > 0 {
		last, _ := excelize.CoordinatesToCellName(6, len(s.Summary)+1)
		if err := f.SetCellStyle(CategoriesSheet, "E2", last, amountStyle); err != nil {
			return fmt.Errorf("failed to style amounts: %w", err)
		}
	}
	return f.SetColWidth(CategoriesSheet, "A", "B", 24)
}
