// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/keydrill/internal/keys"
	"github.com/verte-zerg/keydrill/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for trainer data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS state_blobs (
			key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY,
			challenge_id TEXT NOT NULL,
			binding_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			mode TEXT NOT NULL,
			success INTEGER NOT NULL,
			reaction_ms INTEGER NOT NULL,
			input TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_recorded_at ON attempts(recorded_at);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_binding ON attempts(binding_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetBlob returns the stored blob for key. ok is false when nothing is stored.
func (s *Store) GetBlob(ctx context.Context, key string) (data []byte, ok bool, err error) {
	var text string
	err = s.db.QueryRowContext(ctx, `SELECT data FROM state_blobs WHERE key = ?`, key).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(text), true, nil
}

// PutBlob stores data under key, replacing any previous value.
func (s *Store) PutBlob(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state_blobs (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UnixMilli())
	return err
}

// DeleteBlob removes key.
func (s *Store) DeleteBlob(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM state_blobs WHERE key = ?`, key)
	return err
}

// InsertAttempt appends one attempt to the history.
func (s *Store) InsertAttempt(ctx context.Context, a model.Attempt) (int64, error) {
	input, err := json.Marshal(a.Input)
	if err != nil {
		return 0, fmt.Errorf("encode input: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO attempts (challenge_id, binding_id, tool, mode, success, reaction_ms, input, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ChallengeID,
		a.BindingID,
		a.Tool,
		string(a.Mode),
		boolInt(a.Success),
		a.ReactionMs,
		string(input),
		a.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ClearAttempts drops the whole history.
func (s *Store) ClearAttempts(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM attempts`)
	return err
}

// ListAttempts returns attempts filtered by stats config, oldest first.
func (s *Store) ListAttempts(ctx context.Context, cfg model.StatsConfig) ([]model.Attempt, error) {
	where, args := attemptFilter(cfg)
	limit := ""
	if cfg.Last > 0 {
		limit = "LIMIT ?"
		args = append(args, cfg.Last)
	}
	query := fmt.Sprintf(`SELECT challenge_id, binding_id, tool, mode, success, reaction_ms, input, recorded_at
		FROM (
			SELECT * FROM attempts
			WHERE %s
			ORDER BY recorded_at DESC, id DESC
			%s
		)
		ORDER BY recorded_at ASC, id ASC`, where, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		var mode, input string
		var success int
		var recordedAt int64
		if err := rows.Scan(&a.ChallengeID, &a.BindingID, &a.Tool, &mode, &success, &a.ReactionMs, &input, &recordedAt); err != nil {
			return nil, err
		}
		a.Mode = model.GameMode(mode)
		a.Success = success != 0
		a.RecordedAt = time.UnixMilli(recordedAt).UTC()
		var chords []keys.Chord
		if err := json.Unmarshal([]byte(input), &chords); err == nil {
			a.Input = chords
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attempts, nil
}

// AggregateBindings sums attempts per binding.
func (s *Store) AggregateBindings(ctx context.Context, cfg model.StatsConfig) ([]model.BindingAggregate, error) {
	where, args := attemptFilter(cfg)
	query := fmt.Sprintf(`SELECT binding_id, COUNT(*) AS attempts, SUM(success) AS successes,
		SUM(CASE WHEN success = 1 THEN reaction_ms ELSE 0 END) AS reaction_sum_ms
		FROM attempts
		WHERE %s
		GROUP BY binding_id
		ORDER BY binding_id`, where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.BindingAggregate
	for rows.Next() {
		var agg model.BindingAggregate
		if err := rows.Scan(&agg.BindingID, &agg.Attempts, &agg.Successes, &agg.ReactionSumMs); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func attemptFilter(cfg model.StatsConfig) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Tool != "" {
		clauses = append(clauses, "tool = ?")
		args = append(args, cfg.Tool)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "recorded_at >= ?")
		args = append(args, cfg.Since.UnixMilli())
	}
	return strings.Join(clauses, " AND "), args
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
