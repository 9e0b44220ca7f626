package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/condo-quotas/internal/cli"
	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/config"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "quota",
		Short: "🏢 Condominium quota schedules",
		Long: `quota distributes a condominium's annual budget across its units by weight,
turns the result into monthly payment obligations, and exports the schedule.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/quota/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "database path (default: $HOME/.local/share/quota/quota.db)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(finalizeCmd())
	rootCmd.AddCommand(standaloneCmd())
	rootCmd.AddCommand(schedulesCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(backupCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx := cli.NewInterruptHandler(os.Stderr).HandleInterrupts(context.Background())
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(userMessage(err)))
		os.Exit(1)
	}
}

// userMessage turns an error into a line for the terminal.
func userMessage(err error) string {
	var userErr *common.UserError
	if errors.As(err, &userErr) {
		return userErr.Error()
	}
	switch {
	case errors.Is(err, common.ErrAlreadyFinalized):
		return err.Error() + " (run `quota schedules clear` first to regenerate it)"
	case errors.Is(err, common.ErrLockTimeout):
		return err.Error() + " (another finalization of the same budget is running)"
	default:
		return err.Error()
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := config.ConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve config directory: %w", err)
		}
		viper.AddConfigPath(configDir)
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("QUOTA")
	viper.AutomaticEnv()
	if err := setDefaults(); err != nil {
		return err
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}
	return common.SetupLogger(os.Stderr, level, viper.GetString("logging.format"))
}

func setDefaults() error {
	dataDir, err := config.DataDir()
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}
	viper.SetDefault("database.path", filepath.Join(dataDir, "quota.db"))
	viper.SetDefault("lock.backend", "memory")
	viper.SetDefault("lock.ttl", "30s")
	viper.SetDefault("lock.wait", "10s")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("amqp.exchange", "quota")
	viper.SetDefault("amqp.routing_key", "obligations.created")
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quota %s\n", version)
		},
	}
}
