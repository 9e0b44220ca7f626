package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultAutoBackups is how many automatic backups are kept before the oldest are pruned.
const DefaultAutoBackups = 5

// Backup errors.
var (
	ErrBackupNotFound  = errors.New("backup not found")
	ErrBackupExists    = errors.New("backup already exists")
	ErrBackupCorrupted = errors.New("backup integrity check failed")
	ErrInMemoryBackup  = errors.New("in-memory databases cannot be backed up")
)

// backupTables are counted into every backup's metadata.
var backupTables = []string{"condominiums", "units", "budgets", "quota_schedules", "payment_obligations"}

// BackupInfo describes a database copy stored next to the database file.
type BackupInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	Size          int64          `json:"size"`
	SchemaVersion int            `json:"schema_version"`
	Auto          bool           `json:"auto"`
}

// BackupManager snapshots the database into a backups directory. Each backup is a
// standalone SQLite file plus a JSON sidecar.
type BackupManager struct {
	db       *sql.DB
	now      func() time.Time
	dbPath   string
	dir      string
	keepAuto int
}

// Backups returns a manager writing to a "backups" directory beside the database.
func (s *SQLiteStorage) Backups() (*BackupManager, error) {
	if s.dbPath == "" || s.dbPath == ":memory:" {
		return nil, ErrInMemoryBackup
	}
	dbPath, err := filepath.Abs(s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}
	dir := filepath.Join(filepath.Dir(dbPath), "backups")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}
	return &BackupManager{db: s.db, dbPath: dbPath, dir: dir, keepAuto: DefaultAutoBackups, now: time.Now}, nil
}

// Dir returns the directory holding the backups.
func (bm *BackupManager) Dir() string {
	return bm.dir
}

// Create copies the live database under the given ID. An empty ID is generated from the
// current time.
func (bm *BackupManager) Create(ctx context.Context, id, description string) (*BackupInfo, error) {
	return bm.create(ctx, id, description, false)
}

// AutoBackup takes a backup ahead of a destructive operation and prunes old automatic
// backups beyond the retention limit.
func (bm *BackupManager) AutoBackup(ctx context.Context, operation string) (*BackupInfo, error) {
	now := bm.now()
	id := fmt.Sprintf("auto-%s-%s", operation, now.Format("20060102-150405.000"))
	info, err := bm.create(ctx, id, "Automatic backup before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic backup: %w", err)
	}
	if err := bm.prune(); err != nil {
		slog.Warn("failed to prune automatic backups", "error", err)
	}
	return info, nil
}

func (bm *BackupManager) create(ctx context.Context, id, description string, auto bool) (*BackupInfo, error) {
	if id == "" {
		id = "backup-" + bm.now().Format("20060102-150405")
	}
	if err := validateBackupID(id); err != nil {
		return nil, err
	}

	path := bm.path(id)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrBackupExists)
	}

	info := BackupInfo{ID: id, Description: description, CreatedAt: bm.now(), Auto: auto, RowCounts: bm.rowCounts(ctx)}
	if err := bm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&info.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	// VACUUM INTO writes a consistent, compacted copy even while WAL frames are pending.
	if _, err := bm.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("failed to back up database: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}
	info.Size = stat.Size()

	if err := writeJSONAtomic(bm.metaPath(id), info); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.Error("failed to remove backup after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save backup metadata: %w", err)
	}

	slog.Info("created database backup", "id", id, "size", info.Size, "auto", auto)
	return &info, nil
}

// List returns every backup, newest first. Unreadable metadata files are skipped.
func (bm *BackupManager) List() ([]BackupInfo, error) {
	entries, err := os.ReadDir(bm.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backups directory: %w", err)
	}

	backups := make([]BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		info, err := readBackupInfo(filepath.Join(bm.dir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable backup metadata", "file", entry.Name(), "error", err)
			continue
		}
		backups = append(backups, *info)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Restore replaces the database file with a backup. The storage that produced this manager
// is closed and must be reopened afterwards.
func (bm *BackupManager) Restore(ctx context.Context, id string) error {
	if err := validateBackupID(id); err != nil {
		return err
	}
	path := bm.path(id)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, ErrBackupNotFound)
		}
		return fmt.Errorf("failed to access backup: %w", err)
	}
	if err := verifyIntegrity(ctx, path); err != nil {
		return fmt.Errorf("%s: %w: %w", id, ErrBackupCorrupted, err)
	}

	// Fold the WAL into the main file so the displaced copy is complete.
	if _, err := bm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	if err := bm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	displaced := bm.dbPath + ".pre-restore"
	if err := copyFile(bm.dbPath, displaced); err != nil {
		return fmt.Errorf("failed to keep current database: %w", err)
	}
	if err := copyFile(path, bm.dbPath); err != nil {
		if rbErr := copyFile(displaced, bm.dbPath); rbErr != nil {
			slog.Error("failed to put back database after restore failure", "error", rbErr)
		}
		return fmt.Errorf("failed to restore backup: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(bm.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove stale journal file", "file", bm.dbPath+suffix, "error", err)
		}
	}
	if err := os.Remove(displaced); err != nil {
		slog.Warn("failed to remove pre-restore copy", "error", err)
	}

	slog.Info("restored database backup", "id", id)
	return nil
}

// Delete removes a backup and its metadata.
func (bm *BackupManager) Delete(id string) error {
	if err := validateBackupID(id); err != nil {
		return err
	}
	if err := os.Remove(bm.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, ErrBackupNotFound)
		}
		return fmt.Errorf("failed to remove backup: %w", err)
	}
	if err := os.Remove(bm.metaPath(id)); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove backup metadata", "id", id, "error", err)
	}
	return nil
}

func (bm *BackupManager) prune() error {
	backups, err := bm.List()
	if err != nil {
		return err
	}
	kept := 0
	for _, b := range backups {
		if !b.Auto {
			continue
		}
		kept++
		if kept > bm.keepAuto {
			if err := bm.Delete(b.ID); err != nil {
				slog.Debug("failed to delete old automatic backup", "id", b.ID, "error", err)
			}
		}
	}
	return nil
}

func (bm *BackupManager) rowCounts(ctx context.Context) map[string]int {
	counts := make(map[string]int, len(backupTables))
	for _, table := range backupTables {
		var n int
		// #nosec G202 - table names come from a fixed list
		if err := bm.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			continue
		}
		counts[table] = n
	}
	return counts
}

func (bm *BackupManager) path(id string) string {
	return filepath.Join(bm.dir, id+".db")
}

func (bm *BackupManager) metaPath(id string) string {
	return filepath.Join(bm.dir, id+".meta.json")
}

func validateBackupID(id string) error {
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") || strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid backup id %q", id)
	}
	return nil
}

func readBackupInfo(path string) (*BackupInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is built from the backups directory
	if err != nil {
		return nil, err
	}
	var info BackupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func verifyIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return errors.New(result)
	}
	return nil
}

// copyFile writes through a temporary file and renames it into place.
func copyFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	tmp := dst + ".tmp"
	out, err := os.Create(filepath.Clean(tmp))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
