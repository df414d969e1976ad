package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/cpusim/internal/logging"
	"github.com/me/cpusim/pkg/model"

	_ "modernc.org/sqlite"
)

// timeLayout is a fixed-width UTC form of RFC 3339 so created_at sorts
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Every connection to ":memory:" sees its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.Component(logger, "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID, "stats", len(run.Stats))

	timeslicesJSON, err := json.Marshal(run.Params.Timeslices)
	if err != nil {
		return fmt.Errorf("marshal timeslices: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, policy, seed, io_request_chance, io_completion_chance, timeslices, total_ticks, processes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Params.Policy), run.Params.Seed,
		run.Params.IORequestChance, run.Params.IOCompletionChance, string(timeslicesJSON),
		run.TotalTicks, run.Processes, run.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO process_stats (run_id, seq, process_id, arrival, service, ready_time, io_time, cpu_time, completion)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare stats: %w", err)
	}
	defer stmt.Close()

	for i, ps := range run.Stats {
		if _, err := stmt.ExecContext(ctx, run.ID, i, ps.ProcessID, ps.Arrival, ps.Service,
			ps.ReadyTime, ps.IOTime, ps.CPUTime, ps.Completion); err != nil {
			return fmt.Errorf("insert stats for process %d: %w", ps.ProcessID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	row := s.db.QueryRowContext(ctx,
		`SELECT id, policy, seed, io_request_chance, io_completion_chance, timeslices, total_ticks, processes, created_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT process_id, arrival, service, ready_time, io_time, cpu_time, completion
		 FROM process_stats WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ps model.ProcessStats
		if err := rows.Scan(&ps.ProcessID, &ps.Arrival, &ps.Service,
			&ps.ReadyTime, &ps.IOTime, &ps.CPUTime, &ps.Completion); err != nil {
			return nil, err
		}
		run.Stats = append(run.Stats, ps)
	}
	return run, rows.Err()
}

func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset, "policy", opts.Policy)
	opts.Clamp()

	whereSQL := ""
	var args []any
	if opts.Policy != "" {
		whereSQL = " WHERE policy = ?"
		args = append(args, string(opts.Policy))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := `SELECT id, policy, seed, io_request_chance, io_completion_chance, timeslices, total_ticks, processes, created_at
		FROM runs` + whereSQL + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, listQuery, append(args, opts.Limit, opts.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "runs", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*model.Run, error) {
	var run model.Run
	var policy, timeslicesJSON, createdAt string
	if err := sc.Scan(&run.ID, &policy, &run.Params.Seed,
		&run.Params.IORequestChance, &run.Params.IOCompletionChance, &timeslicesJSON,
		&run.TotalTicks, &run.Processes, &createdAt); err != nil {
		return nil, err
	}
	run.Params.Policy = model.Policy(policy)
	if err := json.Unmarshal([]byte(timeslicesJSON), &run.Params.Timeslices); err != nil {
		return nil, fmt.Errorf("unmarshal timeslices: %w", err)
	}
	run.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return &run, nil
}
