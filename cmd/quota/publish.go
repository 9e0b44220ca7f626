package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/config"
	"github.com/Veraticus/condo-quotas/internal/sheets"
)

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write a budget's schedule to Google Sheets",
		Long: `Write the schedule matrix and category summary of a budget to a Google Sheets tab.

The tab is replaced on every run. Without sheets.spreadsheet_id a new spreadsheet is
created and its ID printed; put it in the config to reuse it.`,
		RunE: runPublish,
	}
	addBudgetFlags(cmd)
	cmd.Flags().String("tab", "", "tab name (overrides sheets.tab_name)")
	cmd.Flags().String("title", "", "title written above the matrix")
	return cmd
}

func runPublish(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadSheetsConfig()
	if err != nil {
		return fmt.Errorf("google sheets is not configured: %w", err)
	}
	if tab := flagString(cmd, "tab"); tab != "" {
		cfg.TabName = tab
	}

	s, err := previewSchedule(cmd)
	if err != nil {
		return err
	}

	title := flagString(cmd, "title")
	if title == "" {
		title = fmt.Sprintf("Quota schedule %d", s.Budget.Year)
	}

	var publisher sheets.SchedulePublisher
	publisher, err = sheets.NewPublisher(ctx, *cfg, slog.Default())
	if err != nil {
		return err
	}

	spreadsheetID, err := publisher.Publish(ctx, s, title)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Published to spreadsheet %s, tab %q", spreadsheetID, cfg.TabName)))
	return nil
}
