// Package sqlite implements the score store on a single database file, the
// default deployment shape. One write connection serializes all mutations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/game-companion/scoreboard/internal/domain"
	"github.com/game-companion/scoreboard/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS scores (
	user_id      INTEGER PRIMARY KEY,
	username     TEXT NOT NULL DEFAULT '',
	first_name   TEXT NOT NULL DEFAULT '',
	best_score   INTEGER NOT NULL,
	games_played INTEGER NOT NULL DEFAULT 1,
	created_at   TIMESTAMP NOT NULL,
	last_played  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scores_best ON scores(best_score DESC);
`

// Store provides score persistence backed by a sqlite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database file and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes every read-decide-write sequence.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite store ready", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Submit applies one submission inside a transaction: insert on first sight,
// raise best_score only when beaten, always bump games_played.
func (s *Store) Submit(ctx context.Context, sub ledger.Submission) (domain.Outcome, domain.ScoreRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var best int64
	err = tx.QueryRowContext(ctx,
		`SELECT best_score FROM scores WHERE user_id = ?`, sub.UserID,
	).Scan(&best)

	var outcome domain.Outcome
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scores (user_id, username, first_name, best_score, games_played, created_at, last_played)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			sub.UserID, sub.Username, sub.FirstName, sub.Score, sub.At, sub.At,
		)
		if err != nil {
			return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("inserting record: %w", err)
		}
		outcome = domain.OutcomeFirstScore

	case err != nil:
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("reading record: %w", err)

	case sub.Score > best:
		_, err = tx.ExecContext(ctx,
			`UPDATE scores
			 SET best_score = ?, username = ?, first_name = ?,
			     games_played = games_played + 1, last_played = ?
			 WHERE user_id = ?`,
			sub.Score, sub.Username, sub.FirstName, sub.At, sub.UserID,
		)
		if err != nil {
			return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("updating record: %w", err)
		}
		outcome = domain.OutcomeNewHighScore

	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE scores SET games_played = games_played + 1, last_played = ? WHERE user_id = ?`,
			sub.At, sub.UserID,
		)
		if err != nil {
			return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("updating record: %w", err)
		}
		outcome = domain.OutcomeNotImproved
	}

	record, err := scanRecord(tx.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, best_score, games_played, created_at, last_played
		 FROM scores WHERE user_id = ?`, sub.UserID,
	))
	if err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("reading back record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("committing transaction: %w", err)
	}
	return outcome, record, nil
}

// Get returns the record for a user, or domain.ErrUserNotFound.
func (s *Store) Get(ctx context.Context, userID int64) (domain.ScoreRecord, error) {
	record, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT user_id, username, first_name, best_score, games_played, created_at, last_played
		 FROM scores WHERE user_id = ?`, userID,
	))
	if err == sql.ErrNoRows {
		return domain.ScoreRecord{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// TopN returns the n best records ordered by best_score descending. Ties go
// to the earliest-created record, then the lower user id.
func (s *Store) TopN(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, username, first_name, best_score, games_played, created_at, last_played
		 FROM scores
		 ORDER BY best_score DESC, created_at ASC, user_id ASC
		 LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing top scores: %w", err)
	}
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CountHigher returns how many records have a strictly greater best score.
func (s *Store) CountHigher(ctx context.Context, score int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM scores WHERE best_score > ?`, score,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting higher scores: %w", err)
	}
	return count, nil
}

// Count returns the total number of records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scores`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.ScoreRecord, error) {
	var rec domain.ScoreRecord
	err := row.Scan(&rec.UserID, &rec.Username, &rec.FirstName, &rec.BestScore, &rec.GamesPlayed, &rec.CreatedAt, &rec.LastPlayed)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return rec, nil
}
