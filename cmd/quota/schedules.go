package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/export"
	"github.com/Veraticus/condo-quotas/internal/model"
)

func schedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "Manage saved schedules",
	}

	cmd.AddCommand(schedulesListCmd())
	cmd.AddCommand(schedulesShowCmd())
	cmd.AddCommand(schedulesClearCmd())

	return cmd
}

func schedulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved schedules, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var condoID int64
			if name, _ := cmd.Flags().GetString("condominium"); name != "" {
				if condoID, err = a.storage.FindCondominium(ctx, name); err != nil {
					return common.NewUserError(fmt.Sprintf("unknown condominium %q", name), err)
				}
			}

			snapshots, err := a.engine.ListSchedules(ctx, condoID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.RenderSnapshots(snapshots))
			return nil
		},
	}
	cmd.Flags().String("condominium", "", "only schedules of this condominium")
	return cmd
}

func schedulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <schedule-id>",
		Short: "Show the obligations of a saved schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return common.NewUserError("schedule ID must be a number", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			detail, err := a.engine.GetSchedule(ctx, scheduleID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderSnapshots([]model.ScheduleSnapshot{*detail.Snapshot}))

			rows := make([][]string, 0, len(detail.Obligations))
			for _, o := range detail.Obligations {
				rows = append(rows, []string{
					strconv.FormatInt(o.UnitID, 10),
					o.Period,
					o.DueDate.Format("2006-01-02"),
					export.FormatAmount(o.Amount),
					string(o.Status),
				})
			}
			fmt.Fprint(out, cli.RenderTable([]string{"Unit", "Period", "Due", "Amount", "Status"}, rows, false))
			return nil
		},
	}
}

func schedulesClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a budget's schedules and pending obligations",
		Long: `Delete every saved schedule of a budget together with its items and the obligations
that are still pending, so the budget can be finalized again. Paid and overdue
obligations are kept. A backup of the database is taken first unless --no-backup is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			if noBackup, _ := cmd.Flags().GetBool("no-backup"); !noBackup {
				backup, err := backupBeforeClear(ctx, a.storage)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Backup saved as "+backup.ID))
			}

			result, err := a.engine.ClearSchedules(ctx, budgetID)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Removed %d schedule(s), %d item(s) and %d pending obligation(s)",
				result.Schedules, result.Items, result.Obligations)))
			return nil
		},
	}
	addBudgetFlags(cmd)
	cmd.Flags().Bool("no-backup", false, "skip the automatic database backup")
	return cmd
}
