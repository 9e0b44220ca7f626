package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/storage"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list and restore database backups",
		Long: `Backups are full copies of the database kept in a "backups" directory next to it.
'schedules clear' takes one automatically; the five most recent automatic backups are kept.`,
	}
	cmd.AddCommand(backupCreateCmd(), backupListCmd(), backupRestoreCmd())
	return cmd
}

func backupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [id]",
		Short: "Back up the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			description, _ := cmd.Flags().GetString("description")

			return withBackups(ctx, func(bm *storage.BackupManager) error {
				info, err := bm.Create(ctx, id, description)
				if errors.Is(err, storage.ErrBackupExists) {
					return common.NewUserError(fmt.Sprintf("a backup named %q already exists", id), err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Created backup %s (%s)", info.ID, formatSize(info.Size))))
				return nil
			})
		},
	}
	cmd.Flags().StringP("description", "d", "", "note stored with the backup")
	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackups(cmd.Context(), func(bm *storage.BackupManager) error {
				backups, err := bm.List()
				if err != nil {
					return err
				}
				if len(backups) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No backups in "+bm.Dir()))
					return nil
				}

				rows := make([][]string, 0, len(backups))
				for _, b := range backups {
					kind := "manual"
					if b.Auto {
						kind = "auto"
					}
					rows = append(rows, []string{
						b.ID,
						b.CreatedAt.Local().Format(time.DateTime),
						kind,
						strconv.Itoa(b.RowCounts["quota_schedules"]),
						strconv.Itoa(b.RowCounts["payment_obligations"]),
						formatSize(b.Size),
						b.Description,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
					[]string{"ID", "Created", "Kind", "Schedules", "Obligations", "Size", "Description"}, rows, false))
				return nil
			})
		},
	}
}

func backupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Replace the database with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			// Restore closes the handle on success; a second Close is a no-op.
			defer func() { _ = store.Close() }()

			bm, err := store.Backups()
			if err != nil {
				return err
			}
			if err := bm.Restore(ctx, args[0]); err != nil {
				if errors.Is(err, storage.ErrBackupNotFound) {
					return common.NewUserError(fmt.Sprintf("no backup named %q; see 'quota backup list'", args[0]), err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Restored backup "+args[0]))
			return nil
		},
	}
}

func withBackups(ctx context.Context, fn func(*storage.BackupManager) error) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bm, err := store.Backups()
	if err != nil {
		return err
	}
	return fn(bm)
}

func backupBeforeClear(ctx context.Context, store *storage.SQLiteStorage) (*storage.BackupInfo, error) {
	bm, err := store.Backups()
	if err != nil {
		return nil, err
	}
	return bm.AutoBackup(ctx, "clear")
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
