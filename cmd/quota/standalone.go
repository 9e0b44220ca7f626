package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/engine"
	"github.com/Veraticus/condo-quotas/internal/export"
	"github.com/Veraticus/condo-quotas/internal/model"
)

func standaloneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "standalone",
		Short: "Charge a one-off amount over consecutive months",
		Long: `Split a one-off amount evenly over a number of months starting with the current month
and apportion each month across all units of the condominium by weight.`,
		Example: `  quota standalone --condominium "Edificio Aurora" --title "Elevator repair" --amount 3000 --months 6`,
		RunE:    runStandalone,
	}
	cmd.Flags().String("condominium", "", "condominium name")
	cmd.Flags().String("title", "", "title shown on the obligations")
	cmd.Flags().Float64("amount", 0, "total amount")
	cmd.Flags().Int("months", 1, "number of months (1-120)")
	cmd.Flags().String("notes", "", "optional notes")
	_ = cmd.MarkFlagRequired("condominium")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func runStandalone(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	name, _ := cmd.Flags().GetString("condominium")
	condoID, err := a.storage.FindCondominium(ctx, name)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("unknown condominium %q", name), err)
	}

	req := model.StandaloneQuota{CondominiumID: condoID}
	req.Title, _ = cmd.Flags().GetString("title")
	req.TotalAmount, _ = cmd.Flags().GetFloat64("amount")
	req.DurationMonths, _ = cmd.Flags().GetInt("months")
	req.Notes, _ = cmd.Flags().GetString("notes")

	result, err := a.engine.CreateStandalone(ctx, req, engine.FinalizeOptions{})
	if err != nil {
		return err
	}

	first, last := "-", "-"
	if n := len(result.Obligations); n > 0 {
		first, last = result.Obligations[0].Period, result.Obligations[n-1].Period
	}
	summary := fmt.Sprintf("Schedule:      #%d\nMonthly total: %s\nPeriods:       %s to %s\nObligations:   %d",
		result.Snapshot.ID,
		export.FormatAmount(result.Plan.MonthlyTotal),
		first, last,
		len(result.Obligations))
	fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(req.Title, summary))
	return nil
}
