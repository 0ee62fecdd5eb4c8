package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists audit records in a local sqlite database.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (or creates) the database at dbPath and
// initializes the schema.
func NewSQLiteRecorder(ctx context.Context, dbPath string) (*SQLiteRecorder, error) {
	// WAL mode allows readers alongside the single writer.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping audit database: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	return r, nil
}

// Close closes the database connection.
func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func (r *SQLiteRecorder) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS audits (
		audit_id    INTEGER PRIMARY KEY AUTOINCREMENT,
		action      TEXT NOT NULL,
		reason      TEXT NOT NULL DEFAULT '',
		collection  TEXT NOT NULL,
		identity    TEXT NOT NULL DEFAULT '',
		role        TEXT NOT NULL DEFAULT '',
		at_unix     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audits_collection ON audits(collection, at_unix);
	`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Record inserts one audit entry. A zero At is stamped with the current
// time.
func (r *SQLiteRecorder) Record(ctx context.Context, rec Record) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audits (action, reason, collection, identity, role, at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Action, rec.Reason, rec.Collection, rec.User.Identity, rec.User.Role, at.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// List returns records for a collection, newest first. Used by tests and
// operational queries.
func (r *SQLiteRecorder) List(ctx context.Context, collection string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT action, reason, collection, identity, role, at_unix
		 FROM audits WHERE collection = ? ORDER BY at_unix DESC, audit_id DESC`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var atUnix int64
		if err := rows.Scan(&rec.Action, &rec.Reason, &rec.Collection, &rec.User.Identity, &rec.User.Role, &atUnix); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		rec.At = time.Unix(atUnix, 0).UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
