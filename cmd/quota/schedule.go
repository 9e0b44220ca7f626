package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/export"
	"github.com/Veraticus/condo-quotas/internal/quota"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview and export a budget's quota schedule",
		Long: `Compute the twelve-month quota schedule of a budget without saving anything.

Months run from February of the budget year to January of the next.`,
	}

	cmd.AddCommand(scheduleShowCmd())
	cmd.AddCommand(scheduleExportCmd())

	return cmd
}

func scheduleShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the schedule matrix",
		RunE:  runScheduleShow,
	}
	addBudgetFlags(cmd)
	cmd.Flags().Bool("categories", false, "also print how each category was distributed")
	return cmd
}

func runScheduleShow(cmd *cobra.Command, _ []string) error {
	s, err := previewSchedule(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, cli.RenderSchedule(s))
	if showCategories, _ := cmd.Flags().GetBool("categories"); showCategories {
		fmt.Fprintln(out)
		fmt.Fprint(out, cli.RenderCategories(s))
	}
	return nil
}

func scheduleExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the schedule as delimited text or an XLSX workbook",
		Long: `Export the schedule matrix.

The csv format separates fields with semicolons and uses a comma as decimal separator.
The xlsx format adds a sheet describing each category. Without --output the csv format
is written to stdout; the format defaults to the output file's extension.`,
		RunE: runScheduleExport,
	}
	addBudgetFlags(cmd)
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().String("format", "", "csv or xlsx")
	return cmd
}

func exportFormat(format, output string) (string, error) {
	if format == "" {
		format = "csv"
		if strings.EqualFold(filepath.Ext(output), ".xlsx") {
			format = "xlsx"
		}
	}
	switch format {
	case "csv":
		return format, nil
	case "xlsx":
		if output == "" {
			return "", common.NewUserError("xlsx export needs --output", nil)
		}
		return format, nil
	default:
		return "", common.NewUserError(fmt.Sprintf("unknown export format %q", format), nil)
	}
}

func runScheduleExport(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	format, err := exportFormat(format, output)
	if err != nil {
		return err
	}

	s, err := previewSchedule(cmd)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output) // #nosec G304
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil {
				slog.Warn("failed to close export file", "error", closeErr)
			}
		}()
		w = f
	}

	if err := writeSchedule(w, s, format); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatSuccess("Schedule exported to "+output))
	}
	return nil
}

func writeSchedule(w io.Writer, s *quota.Schedule, format string) error {
	if format == "xlsx" {
		return export.WriteXLSX(w, s)
	}
	return export.WriteDelimited(w, s)
}

// previewSchedule computes the schedule of the budget selected by the command's flags.
func previewSchedule(cmd *cobra.Command) (*quota.Schedule, error) {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	budgetID, err := resolveBudget(ctx, cmd, a.storage)
	if err != nil {
		return nil, err
	}
	return a.engine.Preview(ctx, budgetID)
}
