package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/config"
	"github.com/Veraticus/condo-quotas/internal/engine"
	"github.com/Veraticus/condo-quotas/internal/events"
	"github.com/Veraticus/condo-quotas/internal/lock"
	"github.com/Veraticus/condo-quotas/internal/service"
	"github.com/Veraticus/condo-quotas/internal/storage"
)

// initStorage opens and migrates the configured database.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.ExpandPath(viper.GetString("database.path"))

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// newLocker builds the finalization locker selected by lock.backend.
func newLocker() (lock.Locker, func(), error) {
	switch backend := viper.GetString("lock.backend"); backend {
	case "", "memory":
		return lock.NewMemory(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
		locker := lock.NewRedis(client, lock.RedisOptions{
			TTL:  viper.GetDuration("lock.ttl"),
			Wait: viper.GetDuration("lock.wait"),
		})
		return locker, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("%w: lock backend %q", common.ErrInvalidConfig, backend)
	}
}

// newPublisher connects to the broker when amqp.url is set.
func newPublisher() (events.Publisher, error) {
	url := viper.GetString("amqp.url")
	if url == "" {
		return events.Nop{}, nil
	}
	publisher, err := events.NewAMQPPublisher(url, viper.GetString("amqp.exchange"), viper.GetString("amqp.routing_key"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	return publisher, nil
}

// app bundles what the schedule commands need.
type app struct {
	storage *storage.SQLiteStorage
	engine  *engine.Engine
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp wires storage, locker and publisher into an engine. Callers must Close it.
func newApp(ctx context.Context) (*app, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{storage: store, closers: []func(){func() { _ = store.Close() }}}

	locker, closeLocker, err := newLocker()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeLocker)

	publisher, err := newPublisher()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("failed to close publisher", "error", err)
		}
	})

	a.engine = engine.New(store, locker, publisher)
	return a, nil
}

// addBudgetFlags registers the flags that select a budget.
func addBudgetFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("budget", 0, "budget ID")
	cmd.Flags().String("condominium", "", "condominium name (with --year)")
	cmd.Flags().Int("year", 0, "budget year (with --condominium)")
}

// resolveBudget returns the budget ID chosen by --budget, or by --condominium and --year.
func resolveBudget(ctx context.Context, cmd *cobra.Command, store service.Storage) (int64, error) {
	budgetID, _ := cmd.Flags().GetInt64("budget")
	if budgetID > 0 {
		return budgetID, nil
	}

	name, _ := cmd.Flags().GetString("condominium")
	year, _ := cmd.Flags().GetInt("year")
	if name == "" || year == 0 {
		return 0, common.NewUserError("select a budget with --budget, or --condominium and --year", nil)
	}

	condoID, err := store.FindCondominium(ctx, name)
	if err != nil {
		return 0, common.NewUserError(fmt.Sprintf("unknown condominium %q", name), err)
	}
	budget, err := store.GetBudgetByYear(ctx, condoID, year)
	if err != nil {
		return 0, common.NewUserError(fmt.Sprintf("no %d budget for %s", year, name), err)
	}
	return budget.ID, nil
}
