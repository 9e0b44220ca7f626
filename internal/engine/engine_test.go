package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/condo-quotas/internal/common"
	"github.com/Veraticus/condo-quotas/internal/events"
	"github.com/Veraticus/condo-quotas/internal/lock"
	"github.com/Veraticus/condo-quotas/internal/model"
	"github.com/Veraticus/condo-quotas/internal/service"
	"github.com/Veraticus/condo-quotas/internal/testutil"
)

var errDisk = errors.New("disk I/O error")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestEngine(store service.Storage, locker lock.Locker, publisher events.Publisher, now time.Time) *Engine {
	return NewWithConfig(store, locker, publisher, Config{
		Clock: fixedClock(now),
		RunID: func() string { return "run-1" },
	})
}

type recordingPublisher struct {
	err      error
	messages []events.ObligationsCreated
	mu       sync.Mutex
}

func (p *recordingPublisher) PublishObligationsCreated(_ context.Context, msg events.ObligationsCreated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// failingStorage injects errors into the transactions it hands out.
type failingStorage struct {
	service.Storage
	failOn string
}

func (s *failingStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if s.failOn == "begin" {
		return nil, errDisk
	}
	tx, err := s.Storage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Transaction: tx, failOn: s.failOn}, nil
}

type failingTx struct {
	service.Transaction
	failOn          string
	obligationCalls int
}

func (t *failingTx) SaveScheduleItems(ctx context.Context, items []model.ScheduleItem) error {
	if t.failOn == "items" {
		return errDisk
	}
	return t.Transaction.SaveScheduleItems(ctx, items)
}

func (t *failingTx) SaveObligations(ctx context.Context, obligations []model.PaymentObligation) error {
	t.obligationCalls++
	// Fail on the second unit so the first unit's rows are already written.
	if t.failOn == "obligations" && t.obligationCalls == 2 {
		return errDisk
	}
	return t.Transaction.SaveObligations(ctx, obligations)
}

func (t *failingTx) Commit() error {
	if t.failOn == "commit" {
		return errDisk
	}
	return t.Transaction.Commit()
}

func TestEngine_Preview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	e := newTestEngine(db.Storage, nil, nil, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	schedule, err := e.Preview(ctx, s.Budget.ID)
	require.NoError(t, err)
	require.Len(t, schedule.Rows, 2)
	assert.Equal(t, "A", schedule.Rows[0].Unit.Number)
	assert.InDelta(t, 66.0, schedule.Rows[0].Monthly[0], 1e-9)
	assert.InDelta(t, 528.0, schedule.Rows[1].Annual, 1e-9)

	byYear, err := e.PreviewYear(ctx, s.CondominiumID, 2025)
	require.NoError(t, err)
	assert.InDelta(t, schedule.Total(), byYear.Total(), 1e-9)

	snapshots, err := e.ListSchedules(ctx, s.CondominiumID)
	require.NoError(t, err)
	assert.Empty(t, snapshots, "preview must not persist")
}

func TestEngine_PreviewErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage, nil, nil)
	ctx := context.Background()

	_, err := e.Preview(ctx, 0)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.Preview(ctx, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = e.PreviewYear(ctx, 1, 2030)
	assert.Error(t, err)
}

func TestEngine_Finalize(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	publisher := &recordingPublisher{}
	e := newTestEngine(db.Storage, nil, publisher, time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()

	var progress []int
	result, err := e.Finalize(ctx, s.Budget.ID, FinalizeOptions{
		Progress: func(done, total int) {
			assert.Equal(t, 2, total)
			progress = append(progress, done)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, progress)

	assert.Equal(t, "run-1", result.RunID)
	assert.Equal(t, 1, result.Snapshot.Version)
	assert.Equal(t, model.ScheduleFinalized, result.Snapshot.Status)
	assert.Equal(t, "Generated automatically on 2025-01-10", result.Snapshot.Notes)
	assert.InDelta(t, 1320.0, result.Snapshot.TotalAmount, 1e-9)
	assert.Equal(t, 24, result.Items)
	require.Len(t, result.Obligations, 24)

	detail, err := e.GetSchedule(ctx, result.Snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budget 2025", detail.Snapshot.Title)
	require.NotNil(t, detail.Snapshot.BudgetID)
	assert.Equal(t, s.Budget.ID, *detail.Snapshot.BudgetID)
	assert.Len(t, detail.Items, 24)
	require.Len(t, detail.Obligations, 24)

	unitA := s.Units["A"]
	first := detail.Obligations[0]
	assert.Equal(t, unitA.ID, first.UnitID)
	assert.Equal(t, "2025-02", first.Period)
	assert.InDelta(t, 66.0, first.Amount, 1e-9)
	assert.Equal(t, 15, first.DueDate.Day())
	assert.Equal(t, "Budget 2025 quota", first.Notes)
	assert.Equal(t, "2026-01", detail.Obligations[11].Period)

	require.Len(t, publisher.messages, 1)
	msg := publisher.messages[0]
	assert.Equal(t, events.ObligationsCreatedType, msg.Type)
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, result.Snapshot.ID, msg.ScheduleID)
	assert.Equal(t, s.Budget.ID, msg.BudgetID)
	assert.Len(t, msg.Obligations, 24)
	assert.NotZero(t, msg.Obligations[0].ID)
}

func TestEngine_FinalizeTwiceIsRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	publisher := &recordingPublisher{}
	e := newTestEngine(db.Storage, nil, publisher, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
	require.NoError(t, err)

	_, err = e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
	require.ErrorIs(t, err, common.ErrAlreadyFinalized)

	obligations, err := db.Storage.GetUnitObligations(ctx, s.Units["A"].ID)
	require.NoError(t, err)
	assert.Len(t, obligations, 12)

	snapshots, err := e.ListSchedules(ctx, s.CondominiumID)
	require.NoError(t, err)
	assert.Len(t, snapshots, 1)
	assert.Len(t, publisher.messages, 1)
}

func TestEngine_ClearAndRefinalize(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	e := newTestEngine(db.Storage, nil, nil, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
	require.NoError(t, err)

	paid := first.Obligations[0]
	require.NoError(t, db.Storage.UpdateObligationStatus(ctx, paid.ID, model.ObligationPaid))

	cleared, err := e.ClearSchedules(ctx, s.Budget.ID)
	require.NoError(t, err)
	assert.Equal(t, service.ClearResult{Schedules: 1, Items: 24, Obligations: 23}, cleared)

	second, err := e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Snapshot.Version)
	assert.Len(t, second.Obligations, 24)

	obligations, err := db.Storage.GetUnitObligations(ctx, paid.UnitID)
	require.NoError(t, err)
	assert.Len(t, obligations, 13)

	var kept int
	for _, o := range obligations {
		if o.ID == paid.ID {
			kept++
			assert.Equal(t, model.ObligationPaid, o.Status)
			assert.Zero(t, o.ScheduleID)
		}
	}
	assert.Equal(t, 1, kept)
}

func TestEngine_ClearSchedulesErrors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	e := New(db.Storage, nil, nil)

	_, err := e.ClearSchedules(context.Background(), 0)
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = e.ClearSchedules(context.Background(), 99)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEngine_FinalizeRollsBack(t *testing.T) {
	for _, failOn := range []string{"begin", "items", "obligations", "commit"} {
		t.Run(failOn, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			s := db.SeedAurora2025(10)
			publisher := &recordingPublisher{}
			ctx := context.Background()
			now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

			failing := newTestEngine(&failingStorage{Storage: db.Storage, failOn: failOn}, nil, publisher, now)
			_, err := failing.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrPersistence)
			assert.ErrorIs(t, err, errDisk)

			var persistErr *common.PersistenceError
			require.ErrorAs(t, err, &persistErr)
			assert.Equal(t, s.Budget.ID, persistErr.BudgetID)
			if failOn == "obligations" {
				assert.Equal(t, s.Units["B"].ID, persistErr.UnitID)
			}

			snapshots, err := db.Storage.ListSchedules(ctx, s.CondominiumID)
			require.NoError(t, err)
			assert.Empty(t, snapshots)
			for _, unit := range s.Units {
				obligations, err := db.Storage.GetUnitObligations(ctx, unit.ID)
				require.NoError(t, err)
				assert.Empty(t, obligations)
			}
			assert.Empty(t, publisher.messages)

			// The version counter rolled back with everything else.
			result, err := newTestEngine(db.Storage, nil, nil, now).Finalize(ctx, s.Budget.ID, FinalizeOptions{})
			require.NoError(t, err)
			assert.Equal(t, 1, result.Snapshot.Version)
		})
	}
}

func TestEngine_PublishFailureKeepsCommit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	publisher := &recordingPublisher{err: errors.New("broker unavailable")}
	e := newTestEngine(db.Storage, nil, publisher, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	result, err := e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
	require.NoError(t, err)

	obligations, err := db.Storage.GetObligations(ctx, result.Snapshot.ID)
	require.NoError(t, err)
	assert.Len(t, obligations, 24)
	assert.Len(t, publisher.messages, 1)
}

func TestEngine_ConcurrentFinalize(t *testing.T) {
	newRedisLocker := func(t *testing.T) lock.Locker {
		t.Helper()
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return lock.NewRedis(client, lock.RedisOptions{Wait: 5 * time.Second, PollInterval: 5 * time.Millisecond})
	}

	lockers := map[string]func(*testing.T) lock.Locker{
		"memory": func(*testing.T) lock.Locker { return lock.NewMemory() },
		"redis":  newRedisLocker,
	}

	for name, newLocker := range lockers {
		t.Run(name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			s := db.SeedAurora2025(10)
			e := newTestEngine(db.Storage, newLocker(t), nil, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
			ctx := context.Background()

			const runs = 4
			errs := make([]error, runs)
			var wg sync.WaitGroup
			for i := 0; i < runs; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
				}(i)
			}
			wg.Wait()

			var succeeded, rejected int
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, common.ErrAlreadyFinalized):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, succeeded)
			assert.Equal(t, runs-1, rejected)

			obligations, err := db.Storage.GetUnitObligations(ctx, s.Units["A"].ID)
			require.NoError(t, err)
			assert.Len(t, obligations, 12)
		})
	}
}

func TestEngine_FinalizeLockTimeout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	locker := lock.NewMemory()
	e := New(db.Storage, locker, nil)

	held, err := locker.Acquire(context.Background(), lock.BudgetKey(s.Budget.ID))
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
	assert.ErrorIs(t, err, common.ErrLockTimeout)
}

func TestEngine_CreateStandalone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	publisher := &recordingPublisher{}
	e := newTestEngine(db.Storage, nil, publisher, time.Date(2025, 11, 20, 14, 0, 0, 0, time.UTC))
	ctx := context.Background()

	result, err := e.CreateStandalone(ctx, model.StandaloneQuota{
		CondominiumID:  s.CondominiumID,
		Title:          "Elevator repair",
		Notes:          "Approved at the October assembly",
		TotalAmount:    300,
		DurationMonths: 3,
	}, FinalizeOptions{})
	require.NoError(t, err)

	assert.Nil(t, result.Schedule)
	require.NotNil(t, result.Plan)
	assert.InDelta(t, 100.0, result.Plan.MonthlyTotal, 1e-9)
	assert.True(t, result.Snapshot.Standalone)
	assert.Nil(t, result.Snapshot.BudgetID)
	assert.Equal(t, 6, result.Items)
	require.Len(t, result.Obligations, 6)

	detail, err := e.GetSchedule(ctx, result.Snapshot.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Snapshot.BudgetID)
	assert.True(t, detail.Snapshot.Standalone)
	assert.Equal(t, "Elevator repair", detail.Snapshot.Title)
	assert.Equal(t, 3, detail.Snapshot.DurationMonths)
	assert.InDelta(t, 300.0, detail.Snapshot.TotalAmount, 1e-9)
	assert.Len(t, detail.Items, 6)
	require.Len(t, detail.Obligations, 6)

	periods := make(map[int64][]string)
	amounts := make(map[int64]float64)
	for _, o := range detail.Obligations {
		periods[o.UnitID] = append(periods[o.UnitID], o.Period)
		amounts[o.UnitID] += o.Amount
		assert.Equal(t, model.ObligationPending, o.Status)
		assert.Equal(t, 15, o.DueDate.Day())
		assert.InDelta(t, map[int64]float64{s.Units["A"].ID: 60, s.Units["B"].ID: 40}[o.UnitID], o.Amount, 1e-9)
	}
	rollover := []string{"2025-11", "2025-12", "2026-01"}
	assert.ElementsMatch(t, rollover, periods[s.Units["A"].ID])
	assert.ElementsMatch(t, rollover, periods[s.Units["B"].ID])
	assert.InDelta(t, 180.0, amounts[s.Units["A"].ID], 1e-9)
	assert.InDelta(t, 120.0, amounts[s.Units["B"].ID], 1e-9)

	require.Len(t, publisher.messages, 1)
	msg := publisher.messages[0]
	assert.Equal(t, result.Snapshot.ID, msg.ScheduleID)
	assert.Len(t, msg.Obligations, 6)

	// The budget itself is untouched and can still be finalized.
	_, err = e.Finalize(ctx, s.Budget.ID, FinalizeOptions{})
	require.NoError(t, err)
	snapshots, err := e.ListSchedules(ctx, s.CondominiumID)
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
}

func TestEngine_CreateStandaloneZeroWeights(t *testing.T) {
	db := testutil.SetupTestDB(t)
	condoID := db.Condominium("Edificio Boreal")
	db.Unit(condoID, "P1", model.UnitTypeParking, 0)
	db.Unit(condoID, "P2", model.UnitTypeParking, 0)
	publisher := &recordingPublisher{}
	e := newTestEngine(db.Storage, nil, publisher, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	_, err := e.CreateStandalone(ctx, model.StandaloneQuota{
		CondominiumID:  condoID,
		Title:          "Gate motor",
		TotalAmount:    300,
		DurationMonths: 3,
	}, FinalizeOptions{})
	require.ErrorIs(t, err, common.ErrDegenerateWeights)

	snapshots, err := e.ListSchedules(ctx, condoID)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
	assert.Empty(t, publisher.messages)
}

func TestEngine_CreateStandaloneValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := db.SeedAurora2025(10)
	e := newTestEngine(db.Storage, nil, nil, time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	tests := []struct {
		name string
		req  model.StandaloneQuota
	}{
		{"blank title", model.StandaloneQuota{CondominiumID: s.CondominiumID, Title: "   ", TotalAmount: 300, DurationMonths: 3}},
		{"no condominium", model.StandaloneQuota{Title: "Roof", TotalAmount: 300, DurationMonths: 3}},
		{"zero amount", model.StandaloneQuota{CondominiumID: s.CondominiumID, Title: "Roof", DurationMonths: 3}},
		{"zero months", model.StandaloneQuota{CondominiumID: s.CondominiumID, Title: "Roof", TotalAmount: 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.CreateStandalone(ctx, tt.req, FinalizeOptions{})
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}

	snapshots, err := e.ListSchedules(ctx, s.CondominiumID)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
