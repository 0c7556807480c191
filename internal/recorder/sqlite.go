package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"MacroTracker/internal/logger"
	"MacroTracker/internal/model"
)

// SQLiteRecorder persists macro logs to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets readers (exports, dashboards) run while the tracker writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Get().Infow("sqlite recorder opened", "path", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS macro_logs (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL,
			date                 TEXT NOT NULL,
			macro_id             TEXT NOT NULL,
			points_moved         REAL,
			direction            TEXT CHECK (direction IN ('BULLISH','BEARISH','CONSOLIDATION')),
			displacement_quality TEXT CHECK (displacement_quality IN ('CLEAN','CHOPPY')),
			liquidity_sweep      TEXT CHECK (liquidity_sweep IN ('HIGHS','LOWS','BOTH','NONE')),
			tv_links             TEXT NOT NULL DEFAULT '[]',
			created_at           INTEGER NOT NULL,
			updated_at           INTEGER NOT NULL,
			UNIQUE (user_id, date, macro_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_macro_logs_user_date ON macro_logs(user_id, date)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

const selectColumns = `id, user_id, date, macro_id, points_moved, direction,
	displacement_quality, liquidity_sweep, tv_links, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLog(row rowScanner) (model.MacroLog, error) {
	var (
		rec                      model.MacroLog
		points                   sql.NullFloat64
		direction, quality, sweep sql.NullString
		links                    string
		created, updated         int64
	)
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Date, &rec.MacroID, &points,
		&direction, &quality, &sweep, &links, &created, &updated); err != nil {
		return rec, err
	}
	if points.Valid {
		v := points.Float64
		rec.PointsMoved = &v
	}
	var err error
	if rec.Direction, err = nullEnum[model.Direction](direction); err != nil {
		return rec, err
	}
	if rec.DisplacementQuality, err = nullEnum[model.DisplacementQuality](quality); err != nil {
		return rec, err
	}
	if rec.LiquiditySweep, err = nullEnum[model.LiquiditySweep](sweep); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(links), &rec.TVLinks); err != nil {
		return rec, fmt.Errorf("decode tv_links: %w", err)
	}
	if rec.TVLinks == nil {
		rec.TVLinks = []string{}
	}
	rec.CreatedAt = time.UnixMilli(created)
	rec.UpdatedAt = time.UnixMilli(updated)
	return rec, nil
}

func nullEnum[T interface {
	~string
	Valid() bool
}](ns sql.NullString) (*T, error) {
	if !ns.Valid {
		return nil, nil
	}
	v, err := model.ParseEnum[T](ns.String)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func nullString[T ~string](p *T) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// modify reads the row, lets fn change it, and writes it back in one transaction.
func (r *SQLiteRecorder) modify(ctx context.Context, key model.LogKey, create bool, fn func(*model.MacroLog) bool) (model.MacroLog, error) {
	if err := key.Validate(); err != nil {
		return model.MacroLog{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.MacroLog{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := scanLog(tx.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM macro_logs WHERE user_id = ? AND date = ? AND macro_id = ?`,
		key.UserID, key.Date, key.MacroID))
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.MacroLog{}, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		if !create {
			return model.MacroLog{}, nil
		}
		rec = newLog(key, r.now())
	}

	if !fn(&rec) && found {
		return rec, nil
	}
	rec.UpdatedAt = r.now()

	links, err := json.Marshal(rec.TVLinks)
	if err != nil {
		return model.MacroLog{}, fmt.Errorf("encode tv_links: %w", err)
	}

	if found {
		_, err = tx.ExecContext(ctx, `UPDATE macro_logs SET
			points_moved = ?, direction = ?, displacement_quality = ?, liquidity_sweep = ?,
			tv_links = ?, updated_at = ?
			WHERE id = ?`,
			nullFloat(rec.PointsMoved), nullString(rec.Direction), nullString(rec.DisplacementQuality),
			nullString(rec.LiquiditySweep), string(links), rec.UpdatedAt.UnixMilli(), rec.ID,
		)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO macro_logs
			(id, user_id, date, macro_id, points_moved, direction, displacement_quality,
			 liquidity_sweep, tv_links, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			rec.ID, rec.UserID, rec.Date, rec.MacroID,
			nullFloat(rec.PointsMoved), nullString(rec.Direction), nullString(rec.DisplacementQuality),
			nullString(rec.LiquiditySweep), string(links),
			rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
		)
	}
	if err != nil {
		return model.MacroLog{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return model.MacroLog{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRecorder) Upsert(ctx context.Context, key model.LogKey, patch model.LogPatch) (model.MacroLog, error) {
	return r.modify(ctx, key, !patch.Empty(), func(rec *model.MacroLog) bool {
		patch.Apply(rec)
		return !patch.Empty()
	})
}

func (r *SQLiteRecorder) AddLink(ctx context.Context, key model.LogKey, url string) (model.MacroLog, error) {
	if url == "" {
		return model.MacroLog{}, fmt.Errorf("add link: empty url")
	}
	return r.modify(ctx, key, true, func(rec *model.MacroLog) bool {
		rec.TVLinks = append(rec.TVLinks, url)
		return true
	})
}

func (r *SQLiteRecorder) RemoveLink(ctx context.Context, key model.LogKey, index int) (model.MacroLog, error) {
	return r.modify(ctx, key, false, func(rec *model.MacroLog) bool {
		return removeLink(rec, index)
	})
}

func (r *SQLiteRecorder) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM macro_logs WHERE user_id = ? AND id = ?`, userID, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRecorder) ListByDate(ctx context.Context, userID, date string) ([]model.MacroLog, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM macro_logs
		WHERE user_id = ? AND date = ? ORDER BY date, macro_id`, userID, date)
}

func (r *SQLiteRecorder) ListAll(ctx context.Context, userID string) ([]model.MacroLog, error) {
	return r.query(ctx, `SELECT `+selectColumns+` FROM macro_logs
		WHERE user_id = ? ORDER BY date, macro_id`, userID)
}

func (r *SQLiteRecorder) query(ctx context.Context, q string, args ...any) ([]model.MacroLog, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query macro_logs: %w", err)
	}
	defer rows.Close()

	out := []model.MacroLog{}
	for rows.Next() {
		rec, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan macro_logs: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	logger.Get().Infow("closing sqlite recorder")
	return r.db.Close()
}
