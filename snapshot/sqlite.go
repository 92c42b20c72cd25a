package snapshot

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/native"
)

type migration struct {
	UpSQL   string
	Version int
}

var migrations = []migration{
	{
		Version: 1,
		UpSQL: `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	session_id INTEGER NOT NULL,
	savedata   BLOB NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_created_at ON snapshots(created_at);
`,
	},
	{
		Version: 2,
		UpSQL: `
ALTER TABLE snapshots ADD COLUMN savedata_type INTEGER NOT NULL DEFAULT 1;
`,
	},
}

func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if !stderrors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// SQLiteStore keeps snapshots in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and brings its
// schema up to date.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "create snapshot db dir")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "ping sqlite")
	}
	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "migrate snapshot db")
	}
	return &SQLiteStore{db: db}, nil
}

// Fixed-width so created_at sorts lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func (s *SQLiteStore) Put(ctx context.Context, snap Snapshot) error {
	if err := validate(snap); err != nil {
		return err
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.Savedata == nil {
		snap.Savedata = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO snapshots(id, label, session_id, savedata, savedata_type, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	label=excluded.label,
	session_id=excluded.session_id,
	savedata=excluded.savedata,
	savedata_type=excluded.savedata_type,
	created_at=excluded.created_at
`, snap.ID, snap.Label, snap.Session, snap.Savedata, uint32(snap.SavedataType), ts(snap.CreatedAt))
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindNative, err, "insert snapshot")
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Snapshot, error) {
	var (
		snap    Snapshot
		created string
		sdType  uint32
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, label, session_id, savedata, savedata_type, created_at FROM snapshots WHERE id = ?
`, id).Scan(&snap.ID, &snap.Label, &snap.Session, &snap.Savedata, &sdType, &created)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, notFound(id)
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "select snapshot")
	}
	snap.SavedataType = native.SavedataType(sdType)
	snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Snapshot{}, errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "parse created_at")
	}
	return snap, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, label, session_id, savedata_type, created_at FROM snapshots ORDER BY created_at, id
`)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			created string
			sdType  uint32
		)
		if err := rows.Scan(&snap.ID, &snap.Label, &snap.Session, &sdType, &created); err != nil {
			return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "scan snapshot")
		}
		snap.SavedataType = native.SavedataType(sdType)
		if snap.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, errors.Wrap(errors.PhaseStore, errors.KindInvalidData, err, "parse created_at")
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseStore, errors.KindNative, err, "list snapshots")
	}
	return out, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(errors.PhaseStore, errors.KindNative, err, "delete snapshot")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
