package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"

	_ "modernc.org/sqlite"
)

// appState holds the parts of a snapshot stored as a single blob.
type appState struct {
	FixedBills []core.FixedBill      `json:"fixedBills"`
	Schedules  []core.PaySchedule    `json:"schedules"`
	Masters    ledger.Masters        `json:"masters"`
	History    []ledger.HistoryEntry `json:"history"`
}

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SaveSnapshot replaces the stored state with snap in one transaction.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, snap ledger.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"bases", "blocks", "bands"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	now := r.now().UTC()
	for _, b := range snap.Bases {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode base %s: %w", b.ID, err)
		}
		var order sql.NullInt64
		if b.SortOrder != nil {
			order = sql.NullInt64{Int64: int64(*b.SortOrder), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bases (id, name, type, sort_order, data, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, b.Name, string(b.Type), order, string(data), now); err != nil {
			return fmt.Errorf("insert base %s: %w", b.ID, err)
		}
	}

	for _, b := range snap.Bands {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode band %s: %w", b.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bands (id, start_date, end_date, sort_order, data) VALUES (?, ?, ?, ?, ?)`,
			b.ID, b.Start.String(), b.End.String(), b.Order, string(data)); err != nil {
			return fmt.Errorf("insert band %s: %w", b.ID, err)
		}
	}

	for i, b := range snap.Blocks {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode block %s: %w", b.ID, err)
		}
		var band sql.NullString
		if b.BandID != "" {
			band = sql.NullString{String: b.BandID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO blocks (id, type, date, owners, band_id, is_template, position, data, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, string(b.Type), b.Date.String(), blockOwners(b), band, b.IsTemplate, i, string(data), now); err != nil {
			return fmt.Errorf("insert block %s: %w", b.ID, err)
		}
	}

	state, err := json.Marshal(appState{
		FixedBills: snap.FixedBills,
		Schedules:  snap.Schedules,
		Masters:    snap.Masters,
		History:    snap.History,
	})
	if err != nil {
		return fmt.Errorf("encode app state: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO app_state (id, version, data, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET version = excluded.version, data = excluded.data, updated_at = excluded.updated_at`,
		snap.Version, string(state), now); err != nil {
		return fmt.Errorf("save app state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"bases", len(snap.Bases),
		"blocks", len(snap.Blocks),
		"bands", len(snap.Bands))
	return nil
}

// LoadSnapshot reads the stored state. found is false when nothing was saved yet.
func (r *SQLiteRepository) LoadSnapshot(ctx context.Context) (ledger.Snapshot, bool, error) {
	var (
		version int
		data    string
		updated time.Time
	)
	err := r.db.QueryRowContext(ctx, `SELECT version, data, updated_at FROM app_state WHERE id = 1`).
		Scan(&version, &data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Snapshot{}, false, nil
	}
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("load app state: %w", err)
	}

	var state appState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("decode app state: %w", err)
	}

	snap := ledger.Snapshot{
		Version:    version,
		ExportedAt: updated,
		FixedBills: state.FixedBills,
		Schedules:  state.Schedules,
		Masters:    state.Masters,
		History:    state.History,
	}

	if snap.Bases, err = queryJSON[core.Base](ctx, r.db,
		`SELECT data FROM bases ORDER BY sort_order IS NULL, sort_order, rowid`); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("load bases: %w", err)
	}
	if snap.Bands, err = queryJSON[core.Band](ctx, r.db,
		`SELECT data FROM bands ORDER BY start_date, sort_order`); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("load bands: %w", err)
	}
	if snap.Blocks, err = queryJSON[core.Block](ctx, r.db,
		`SELECT data FROM blocks ORDER BY position`); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("load blocks: %w", err)
	}

	return snap, true, nil
}

func queryJSON[T any](ctx context.Context, db *sql.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// blockOwners joins the distinct row owners for the owner index.
func blockOwners(b core.Block) string {
	seen := map[string]bool{}
	var owners []string
	for _, r := range b.Rows {
		if r.Owner == "" || seen[r.Owner] {
			continue
		}
		seen[r.Owner] = true
		owners = append(owners, r.Owner)
	}
	return strings.Join(owners, ",")
}

func (r *SQLiteRepository) GetPreference(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return []byte(value), true, nil
}

func (r *SQLiteRepository) SetPreference(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value), r.now().UTC())
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) RecordEvent(ctx context.Context, e ledger.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO ledger_events (kind, entity_id, block_id, row_id, payload, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.Kind), e.EntityID, e.BlockID, e.RowID, string(payload), e.At.UTC(), r.now().UTC())
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	slog.DebugContext(ctx, "Ledger event recorded",
		"kind", e.Kind,
		"block_id", e.BlockID,
		"row_id", e.RowID)
	return nil
}

func (r *SQLiteRepository) ListEvents(ctx context.Context, limit int) ([]ledger.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT payload FROM ledger_events ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := []ledger.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e ledger.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
