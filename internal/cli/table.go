package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/condo-quotas/internal/export"
	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/quota"
)

// RenderTable lays out rows under a header. Columns after the first are right aligned.
// The last row is rendered bold when boldLast is set.
func RenderTable(header []string, rows [][]string, boldLast bool) string {
	widths := make([]int, len(header))
	for i, label := range header {
		widths[i] = lipgloss.Width(label)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	line := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			align := lipgloss.Right
			if i == 0 {
				align = lipgloss.Left
			}
			parts[i] = lipgloss.NewStyle().Width(widths[i]).Align(align).Render(cell)
		}
		return strings.Join(parts, "  ")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(line(header)))
	b.WriteString("\n")
	for i, row := range rows {
		text := line(row)
		if boldLast && i == len(rows)-1 {
			text = TableTotalStyle.Render(text)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSchedule renders the unit matrix of a schedule with a totals line, followed by
// warnings for categories that could not be distributed.
func RenderSchedule(s *quota.Schedule) string {
	rows := export.Records(s, export.FormatAmount)

	var monthly [quota.MonthsPerYear]float64
	for _, row := range s.Rows {
		for i, amount := range row.Monthly {
			monthly[i] += amount
		}
	}
	total := make([]string, 0, quota.MonthsPerYear+2)
	total = append(total, "Total")
	for _, amount := range monthly {
		total = append(total, export.FormatAmount(amount))
	}
	rows = append(rows, append(total, export.FormatAmount(s.Total())))

	var b strings.Builder
	b.WriteString(FormatTitle(fmt.Sprintf("Quota schedule %d", s.Budget.Year)))
	b.WriteString("\n")
	b.WriteString(RenderTable(export.Header(), rows, true))
	for _, warning := range s.Warnings() {
		b.WriteString(FormatWarning(warning.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderCategories renders how each category was distributed.
func RenderCategories(s *quota.Schedule) string {
	rows := make([][]string, 0, len(s.Summary))
	for _, summary := range s.Summary {
		rows = append(rows, []string{
			summary.Category.Name,
			summary.ScopeLabel,
			fmt.Sprintf("%d", summary.Participants),
			summary.Divisor.Kind.String(),
			export.FormatAmount(summary.Charge.Total),
			export.FormatAmount(summary.Total),
		})
	}
	return RenderTable([]string{"Category", "Scope", "Units", "Divisor", "Monthly", "Planned"}, rows, false)
}

// RenderSnapshots renders saved schedules, one line each.
func RenderSnapshots(snapshots []model.ScheduleSnapshot) string {
	if len(snapshots) == 0 {
		return FormatInfo("No saved schedules")
	}
	rows := make([][]string, 0, len(snapshots))
	for _, s := range snapshots {
		kind, period := "budget", fmt.Sprintf("%d", s.BudgetYear)
		if s.Standalone {
			kind, period = "standalone", fmt.Sprintf("%d months", s.DurationMonths)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.ID),
			kind,
			s.Title,
			period,
			fmt.Sprintf("v%d", s.Version),
			string(s.Status),
			s.GeneratedAt.Format("2006-01-02 15:04"),
			export.FormatAmount(s.TotalAmount),
			s.Notes,
		})
	}
	return RenderTable([]string{"ID", "Type", "Title", "Period", "Version", "Status", "Generated", "Total", "Notes"}, rows, false)
}
