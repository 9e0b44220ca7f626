package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func steppingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestBackups_InMemoryRejected(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.Backups()
	assert.ErrorIs(t, err, ErrInMemoryBackup)
}

func TestBackupManager_CreateAndList(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	seedCondominium(t, store)

	bm, err := store.Backups()
	require.NoError(t, err)
	bm.now = steppingClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	first, err := bm.Create(ctx, "before-import", "manual")
	require.NoError(t, err)
	assert.Equal(t, 2, first.RowCounts["units"])
	assert.Equal(t, 1, first.RowCounts["budgets"])
	assert.Equal(t, ExpectedSchemaVersion, first.SchemaVersion)
	assert.Positive(t, first.Size)
	assert.FileExists(t, filepath.Join(bm.Dir(), "before-import.db"))

	second, err := bm.Create(ctx, "", "generated id")
	require.NoError(t, err)
	assert.Equal(t, "backup-20250301-090002", second.ID)

	_, err = bm.Create(ctx, "before-import", "again")
	assert.ErrorIs(t, err, ErrBackupExists)

	_, err = bm.Create(ctx, "../escape", "")
	assert.Error(t, err)

	backups, err := bm.List()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, second.ID, backups[0].ID)
	assert.False(t, backups[0].Auto)
}

func TestBackupManager_AutoBackupPrunes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	bm, err := store.Backups()
	require.NoError(t, err)
	bm.now = steppingClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	bm.keepAuto = 2

	_, err = bm.Create(ctx, "manual", "")
	require.NoError(t, err)
	for range 4 {
		_, err := bm.AutoBackup(ctx, "clear")
		require.NoError(t, err)
	}

	backups, err := bm.List()
	require.NoError(t, err)
	auto := 0
	for _, b := range backups {
		if b.Auto {
			auto++
		}
	}
	assert.Equal(t, 2, auto)
	assert.Len(t, backups, 3)
}

func TestBackupManager_Restore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "quota.db")
	ctx := context.Background()

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	s := seedCondominium(t, store)

	bm, err := store.Backups()
	require.NoError(t, err)
	_, err = bm.Create(ctx, "seeded", "")
	require.NoError(t, err)

	_, err = store.CreateCondominium(ctx, "Edificio Boreal")
	require.NoError(t, err)

	require.NoError(t, bm.Restore(ctx, "seeded"))

	reopened, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	_, err = reopened.FindCondominium(ctx, "Edificio Boreal")
	assert.Error(t, err)
	id, err := reopened.FindCondominium(ctx, "Edificio Aurora")
	require.NoError(t, err)
	assert.Equal(t, s.condominiumID, id)

	_, statErr := os.Stat(dbPath + ".pre-restore")
	assert.True(t, os.IsNotExist(statErr))
}

func TestBackupManager_RestoreAndDeleteMissing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	bm, err := store.Backups()
	require.NoError(t, err)

	assert.ErrorIs(t, bm.Restore(context.Background(), "nope"), ErrBackupNotFound)
	assert.ErrorIs(t, bm.Delete("nope"), ErrBackupNotFound)
}
