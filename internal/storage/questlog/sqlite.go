package questlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ohmynofan/questline-bot/internal/domain/model"
	_ "modernc.org/sqlite"
)

// Entry is the local record of one account's runs on one day.
type Entry struct {
	Address           string
	RunDate           string
	RunID             string
	SessionKind       model.SessionKind
	DailyRewardStatus string
	MinigameStatus    string
	GamesPlayed       int
	Credits           int64
	LastError         string
	UpdatedAt         time.Time
}

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	createStmt := `CREATE TABLE IF NOT EXISTS quest_runs (
        address TEXT NOT NULL,
        run_date TEXT NOT NULL,
        run_id TEXT NOT NULL DEFAULT '',
        session_kind TEXT NOT NULL DEFAULT 'none',
        daily_status TEXT NOT NULL DEFAULT '',
        minigame_status TEXT NOT NULL DEFAULT '',
        games_played INTEGER NOT NULL DEFAULT 0,
        credits INTEGER NOT NULL DEFAULT 0,
        runs INTEGER NOT NULL DEFAULT 0,
        last_error TEXT,
        updated_at TEXT NOT NULL,
        PRIMARY KEY(address, run_date)
    )`
	if _, err := s.db.Exec(createStmt); err != nil {
		return err
	}
	return s.ensureColumns()
}

// ensureColumns upgrades databases created before a column existed.
func (s *Store) ensureColumns() error {
	columns := map[string]bool{}
	rows, err := s.db.Query(`PRAGMA table_info(quest_runs)`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		columns[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	added := map[string]string{
		"minigame_status": `ALTER TABLE quest_runs ADD COLUMN minigame_status TEXT NOT NULL DEFAULT ''`,
		"runs":            `ALTER TABLE quest_runs ADD COLUMN runs INTEGER NOT NULL DEFAULT 0`,
	}
	for name, stmt := range added {
		if columns[name] {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record upserts the outcome of one account run. Credits accumulate over
// the day's runs; the other columns keep the latest values.
func (s *Store) Record(ctx context.Context, state model.AccountState, runID string, runErr string, now time.Time) error {
	addr := normalizeAddress(state.Address)
	if addr == "" || addr == "-" {
		return errors.New("questlog: account address unknown")
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO quest_runs(address, run_date, run_id, session_kind, daily_status, minigame_status, games_played, credits, runs, last_error, updated_at)
    VALUES(?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
    ON CONFLICT(address, run_date) DO UPDATE SET
        run_id = excluded.run_id,
        session_kind = excluded.session_kind,
        daily_status = excluded.daily_status,
        minigame_status = excluded.minigame_status,
        games_played = MAX(games_played, excluded.games_played),
        credits = credits + excluded.credits,
        runs = runs + 1,
        last_error = excluded.last_error,
        updated_at = excluded.updated_at`,
		addr, model.Today(now), runID, string(state.SessionKind), state.DailyRewardStatus, state.MinigameStatus,
		state.GamesPlayed, state.Credits, nullable(runErr), now.UTC().Format(time.RFC3339))
	return err
}

// Today returns the entry for address on the UTC day of now, or nil.
func (s *Store) Today(ctx context.Context, address string, now time.Time) (*Entry, error) {
	e := Entry{Address: normalizeAddress(address), RunDate: model.Today(now)}

	var kind, updated string
	var lastErr sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT run_id, session_kind, daily_status, minigame_status, games_played, credits, last_error, updated_at
    FROM quest_runs WHERE address = ? AND run_date = ?`, e.Address, e.RunDate).
		Scan(&e.RunID, &kind, &e.DailyRewardStatus, &e.MinigameStatus, &e.GamesPlayed, &e.Credits, &lastErr, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	e.SessionKind = model.SessionKind(kind)
	if lastErr.Valid {
		e.LastError = lastErr.String
	}
	if t, perr := time.Parse(time.RFC3339, updated); perr == nil {
		e.UpdatedAt = t
	}
	return &e, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
