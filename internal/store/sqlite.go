package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteDB implements the DB interface using SQLite.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (or creates) a SQLite database at path.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate creates the results table and its indexes.
func (s *SQLiteDB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			time DATETIME NOT NULL,
			kiosk_id TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			mode TEXT NOT NULL,
			card_id TEXT NOT NULL,
			card_title TEXT NOT NULL,
			pass INTEGER NOT NULL,
			total INTEGER NOT NULL,
			code TEXT NOT NULL,
			rescue INTEGER NOT NULL,
			crowd INTEGER NOT NULL,
			delay INTEGER NOT NULL,
			rule1_cond TEXT NOT NULL,
			rule1_action TEXT NOT NULL,
			rule2_cond TEXT NOT NULL,
			rule2_action TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_time ON results(time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_results_kiosk ON results(kiosk_id, time DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveResult inserts a completed run record.
func (s *SQLiteDB) SaveResult(rec *ResultRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	query := `INSERT INTO results (
		id, time, kiosk_id, difficulty, mode, card_id, card_title,
		pass, total, code, rescue, crowd, delay,
		rule1_cond, rule1_action, rule2_cond, rule2_action
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	passInt := 0
	if rec.Pass {
		passInt = 1
	}

	_, err := s.db.Exec(query,
		rec.ID, rec.Time.UTC().Format(time.RFC3339), rec.KioskID, rec.Difficulty, rec.Mode,
		rec.CardID, rec.CardTitle, passInt, rec.Total, rec.Code,
		rec.Rescue, rec.Crowd, rec.Delay,
		rec.Rule1.CondID, rec.Rule1.ActionID, rec.Rule2.CondID, rec.Rule2.ActionID,
	)

	return err
}

// ListResults returns up to limit records, newest first.
func (s *SQLiteDB) ListResults(limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		limit = 500
	}

	query := `SELECT id, time, kiosk_id, difficulty, mode, card_id, card_title,
		pass, total, code, rescue, crowd, delay,
		rule1_cond, rule1_action, rule2_cond, rule2_action
		FROM results ORDER BY time DESC, id LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var rec ResultRecord
		var passInt int
		var ts string

		err := rows.Scan(
			&rec.ID, &ts, &rec.KioskID, &rec.Difficulty, &rec.Mode,
			&rec.CardID, &rec.CardTitle, &passInt, &rec.Total, &rec.Code,
			&rec.Rescue, &rec.Crowd, &rec.Delay,
			&rec.Rule1.CondID, &rec.Rule1.ActionID, &rec.Rule2.CondID, &rec.Rule2.ActionID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.Time = t
		}
		rec.Pass = passInt == 1

		out = append(out, rec)
	}

	return out, rows.Err()
}
