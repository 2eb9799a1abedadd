// Package persistence checkpoints sessions to a local SQLite file so a
// crashed or restarted controller can resume mid-scenario. Snapshots are
// full-state upserts; the log and vitals journals are append-only and
// survive snapshot clears for after-action review.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	_ "modernc.org/sqlite"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoSnapshot reports that a session has no saved checkpoint.
var ErrNoSnapshot = errors.New("no snapshot for session")

const ddl = `
CREATE TABLE IF NOT EXISTS snapshots (
	session    TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);
CREATE TABLE IF NOT EXISTS journal_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	session   TEXT NOT NULL,
	wall_time TEXT NOT NULL,
	sim_time  INTEGER NOT NULL,
	message   TEXT NOT NULL,
	category  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS journal_vitals (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	session  TEXT NOT NULL,
	sim_time INTEGER NOT NULL,
	hr       INTEGER NOT NULL,
	bp_sys   INTEGER NOT NULL,
	spo2     INTEGER NOT NULL,
	rr       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_journal_log_session ON journal_log(session, id);
CREATE INDEX IF NOT EXISTS idx_journal_vitals_session ON journal_vitals(session, id);
`

// SnapshotStore persists session checkpoints and journals.
type SnapshotStore struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot database: %w", err)
	}
	// modernc's driver serialises writes itself; a single connection
	// avoids SQLITE_BUSY churn under the autosave loop.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying snapshot schema: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

func (p *SnapshotStore) Close() error { return p.db.Close() }

// SaveSnapshot upserts the full session state.
func (p *SnapshotStore) SaveSnapshot(ctx context.Context, session string, state store.State) error {
	payload, err := json.Marshal(store.ToWire(state))
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO snapshots (session, state, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(session) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`,
		session, string(payload))
	if err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot rebuilds the saved state for a session, or ErrNoSnapshot.
func (p *SnapshotStore) LoadSnapshot(ctx context.Context, session string) (store.State, error) {
	var payload string
	err := p.db.QueryRowContext(ctx,
		`SELECT state FROM snapshots WHERE session = ?`, session).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return store.State{}, ErrNoSnapshot
	}
	if err != nil {
		return store.State{}, fmt.Errorf("reading snapshot: %w", err)
	}
	var w store.WireState
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return store.State{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return store.FromWire(w), nil
}

// ClearSnapshot removes a session's checkpoint. Journals are kept.
func (p *SnapshotStore) ClearSnapshot(ctx context.Context, session string) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE session = ?`, session); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}
	return nil
}

// AppendLogEntries journals clinical log lines.
func (p *SnapshotStore) AppendLogEntries(ctx context.Context, session string, entries []schemas.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting log journal transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journal_log (session, wall_time, sim_time, message, category)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing log journal insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, session, e.WallTime.UTC().Format("2006-01-02T15:04:05.000Z"), e.SimTime, e.Message, e.Category); err != nil {
			return fmt.Errorf("journaling log entry: %w", err)
		}
	}
	return tx.Commit()
}

// AppendVitalsSamples journals trend samples.
func (p *SnapshotStore) AppendVitalsSamples(ctx context.Context, session string, samples []schemas.VitalsSample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting vitals journal transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journal_vitals (session, sim_time, hr, bp_sys, spo2, rr)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing vitals journal insert: %w", err)
	}
	defer stmt.Close()
	for _, v := range samples {
		if _, err := stmt.ExecContext(ctx, session, v.SimTime, v.HR, v.BPSys, v.SpO2, v.RR); err != nil {
			return fmt.Errorf("journaling vitals sample: %w", err)
		}
	}
	return tx.Commit()
}

// JournalCounts reports how many rows each journal holds for a session,
// used to append only the tail on autosave.
func (p *SnapshotStore) JournalCounts(ctx context.Context, session string) (logRows, vitalsRows int, err error) {
	if err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal_log WHERE session = ?`, session).Scan(&logRows); err != nil {
		return 0, 0, fmt.Errorf("counting log journal: %w", err)
	}
	if err = p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal_vitals WHERE session = ?`, session).Scan(&vitalsRows); err != nil {
		return 0, 0, fmt.Errorf("counting vitals journal: %w", err)
	}
	return logRows, vitalsRows, nil
}
