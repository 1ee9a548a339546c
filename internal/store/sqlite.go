package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"FountainProtocol/internal/model"
)

// SQLiteStore persists oracle states and snapshots to a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
	mu  sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(log *slog.Logger, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the dashboard read while the oracle writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite store opened", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS oracle_states (
			date             TEXT PRIMARY KEY,
			cumulative_score TEXT NOT NULL,
			active_holders   INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS daily_snapshots (
			date                      TEXT PRIMARY KEY,
			active_holders            INTEGER NOT NULL,
			new_donors                INTEGER NOT NULL,
			previous_active_holders   INTEGER NOT NULL,
			previous_cumulative_score TEXT NOT NULL,
			growth_rate               TEXT NOT NULL,
			cumulative_score          TEXT NOT NULL,
			growth_multiplier         TEXT NOT NULL,
			donor_booster             INTEGER NOT NULL,
			final_entitlement         INTEGER NOT NULL,
			total_allocated           INTEGER NOT NULL,
			computed_at               INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

const stateColumns = `date, cumulative_score, active_holders, updated_at`

const snapshotColumns = `date, active_holders, new_donors, previous_active_holders,
	previous_cumulative_score, growth_rate, cumulative_score, growth_multiplier,
	donor_booster, final_entitlement, total_allocated, computed_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) GetPriorState(ctx context.Context, date string) (*model.OracleState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM oracle_states WHERE date < ? ORDER BY date DESC LIMIT 1`, date)
	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prior state: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore) PutState(ctx context.Context, st *model.OracleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertState(ctx, s.db, st)
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, date string) (*model.DailySnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM daily_snapshots WHERE date = ?`, date)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap *model.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertSnapshot(ctx, s.db, snap)
}

// CommitDay inserts the state and snapshot in one transaction.
func (s *SQLiteStore) CommitDay(ctx context.Context, st *model.OracleState, snap *model.DailySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertSnapshot(ctx, tx, snap); err != nil {
		return err
	}
	if err := insertState(ctx, tx, st); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit day %s: %w", snap.Date, err)
	}
	return nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]*model.DailySnapshot, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM daily_snapshots ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*model.DailySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.log.Info("closing sqlite store")
	return s.db.Close()
}

func insertState(ctx context.Context, db execer, st *model.OracleState) error {
	_, err := db.ExecContext(ctx, `INSERT INTO oracle_states (`+stateColumns+`) VALUES (?,?,?,?)`,
		st.Date, st.CumulativeScore.String(), st.ActiveHolders, st.UpdatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert state %s: %w", st.Date, err)
	}
	return nil
}

func insertSnapshot(ctx context.Context, db execer, snap *model.DailySnapshot) error {
	_, err := db.ExecContext(ctx, `INSERT INTO daily_snapshots (`+snapshotColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		snap.Date, snap.ActiveHolders, snap.NewDonors, snap.PreviousActiveHolders,
		snap.PreviousCumulativeScore.String(), snap.GrowthRate.String(),
		snap.CumulativeScore.String(), snap.GrowthMultiplier.String(),
		snap.DonorBooster, snap.FinalEntitlement, snap.TotalAllocated,
		snap.ComputedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert snapshot %s: %w", snap.Date, err)
	}
	return nil
}

func scanState(row scanner) (*model.OracleState, error) {
	var (
		st        model.OracleState
		score     string
		updatedAt int64
	)
	if err := row.Scan(&st.Date, &score, &st.ActiveHolders, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if st.CumulativeScore, err = decimal.NewFromString(score); err != nil {
		return nil, fmt.Errorf("parse cumulative_score: %w", err)
	}
	st.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &st, nil
}

func scanSnapshot(row scanner) (*model.DailySnapshot, error) {
	var (
		snap                               model.DailySnapshot
		prevScore, rate, score, multiplier string
		computedAt                         int64
	)
	if err := row.Scan(
		&snap.Date, &snap.ActiveHolders, &snap.NewDonors, &snap.PreviousActiveHolders,
		&prevScore, &rate, &score, &multiplier,
		&snap.DonorBooster, &snap.FinalEntitlement, &snap.TotalAllocated, &computedAt,
	); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"previous_cumulative_score", prevScore, &snap.PreviousCumulativeScore},
		{"growth_rate", rate, &snap.GrowthRate},
		{"cumulative_score", score, &snap.CumulativeScore},
		{"growth_multiplier", multiplier, &snap.GrowthMultiplier},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	snap.ComputedAt = time.Unix(0, computedAt).UTC()
	return &snap, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
