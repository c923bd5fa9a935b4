// Package backup creates and restores snapshots of the corpus
// database. Snapshots use SQLite's VACUUM INTO, which yields a
// consistent point-in-time copy even under WAL mode, and every
// snapshot is integrity-checked before it is trusted.
package backup

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Info describes one snapshot file.
type Info struct {
	Path      string
	CreatedAt time.Time
	Size      int64
}

// Snapshot writes a verified snapshot of the database at dbPath into
// dir, named corpus-<timestamp>.db.
func Snapshot(dbPath, dir string) (Info, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Info{}, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	// Nanosecond component keeps rapid successive snapshots distinct.
	dest := filepath.Join(dir, fmt.Sprintf("corpus-%s.db", time.Now().UTC().Format("20060102-150405.000000000")))

	source, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return Info{}, fmt.Errorf("failed to open corpus database: %w", err)
	}
	defer func() { _ = source.Close() }()

	if err := source.Ping(); err != nil {
		return Info{}, fmt.Errorf("failed to read corpus database: %w", err)
	}
	if _, err := source.Exec(fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return Info{}, fmt.Errorf("failed to write snapshot: %w", err)
	}

	if err := Verify(dest); err != nil {
		_ = os.Remove(dest)
		return Info{}, err
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	return Info{Path: dest, CreatedAt: stat.ModTime(), Size: stat.Size()}, nil
}

// Verify runs SQLite's integrity check against a snapshot file.
func Verify(path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("snapshot integrity check failed: %s", result)
	}
	return nil
}

// Restore copies a verified snapshot over the database at dbPath. The
// database must not be open elsewhere during a restore.
func Restore(snapshotPath, dbPath string) error {
	if err := Verify(snapshotPath); err != nil {
		return err
	}

	src, err := os.Open(snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy snapshot: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return fmt.Errorf("failed to sync database file: %w", err)
	}

	return Verify(dbPath)
}

// List returns the snapshots in dir, newest first.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var snapshots []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "corpus-") || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, Info{
			Path:      filepath.Join(dir, entry.Name()),
			CreatedAt: stat.ModTime(),
			Size:      stat.Size(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// Prune deletes all but the keep newest snapshots in dir.
func Prune(dir string, keep int) error {
	if keep < 1 {
		keep = 1
	}
	snapshots, err := List(dir)
	if err != nil {
		return err
	}

	if len(snapshots) <= keep {
		return nil
	}

	var lastErr error
	for _, old := range snapshots[keep:] {
		if err := os.Remove(old.Path); err != nil {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete some snapshots: %w", lastErr)
	}
	return nil
}
