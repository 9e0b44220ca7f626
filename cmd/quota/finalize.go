package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/engine"
	"github.com/Veraticus/condo-quotas/internal/export"
)

func finalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Save a budget's schedule and create its payment obligations",
		Long: `Compute the budget's schedule and save it as a finalized snapshot together with one
pending payment obligation per unit and month. Everything is written in one transaction.

A budget can only be finalized once. To regenerate it, clear its schedules first with
'quota schedules clear'; paid obligations are kept.`,
		RunE: runFinalize,
	}
	addBudgetFlags(cmd)
	cmd.Flags().Bool("no-progress", false, "do not draw a progress bar")
	return cmd
}

func runFinalize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	budgetID, err := resolveBudget(ctx, cmd, a.storage)
	if err != nil {
		return err
	}

	var opts engine.FinalizeOptions
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		opts.Progress = cli.NewProgress(cmd.ErrOrStderr(), "Writing obligations...")
	}

	result, err := a.engine.Finalize(ctx, budgetID, opts)
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Schedule:     #%d (version %d)\nUnits:        %d\nObligations:  %d\nAnnual total: %s",
		result.Snapshot.ID,
		result.Snapshot.Version,
		len(result.Schedule.Rows),
		len(result.Obligations),
		export.FormatAmount(result.Snapshot.TotalAmount))
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(fmt.Sprintf("Budget %d finalized", result.Snapshot.BudgetYear), summary))

	for _, warning := range result.Schedule.Warnings() {
		fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning(warning.Error()))
	}
	return nil
}
