// Package postgres implements the score store on PostgreSQL for deployments
// that outgrow the single-file default.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/game-companion/scoreboard/internal/config"
	"github.com/game-companion/scoreboard/internal/domain"
	"github.com/game-companion/scoreboard/internal/ledger"
)

// Store provides PostgreSQL-backed score persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open creates a connection pool and runs migrations.
func Open(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS scores (
			user_id      BIGINT PRIMARY KEY,
			username     TEXT NOT NULL DEFAULT '',
			first_name   TEXT NOT NULL DEFAULT '',
			best_score   BIGINT NOT NULL,
			games_played BIGINT NOT NULL DEFAULT 1,
			created_at   TIMESTAMPTZ NOT NULL,
			last_played  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_best ON scores(best_score DESC)`,
	}

	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	s.logger.Info("database migrations completed")
	return nil
}

// Submit applies one submission. A conditional insert handles first sight;
// otherwise the existing row is locked and updated, so concurrent submissions
// for the same user cannot lose an increment or apply a stale max.
func (s *Store) Submit(ctx context.Context, sub ledger.Submission) (domain.Outcome, domain.ScoreRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO scores (user_id, username, first_name, best_score, games_played, created_at, last_played)
		 VALUES ($1, $2, $3, $4, 1, $5, $5)
		 ON CONFLICT (user_id) DO NOTHING`,
		sub.UserID, sub.Username, sub.FirstName, sub.Score, sub.At,
	)
	if err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("inserting record: %w", err)
	}

	var outcome domain.Outcome
	if tag.RowsAffected() == 1 {
		outcome = domain.OutcomeFirstScore
	} else {
		var best int64
		err = tx.QueryRow(ctx,
			`SELECT best_score FROM scores WHERE user_id = $1 FOR UPDATE`, sub.UserID,
		).Scan(&best)
		if err != nil {
			return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("locking record: %w", err)
		}

		if sub.Score > best {
			_, err = tx.Exec(ctx,
				`UPDATE scores
				 SET best_score = $1, username = $2, first_name = $3,
				     games_played = games_played + 1, last_played = $4
				 WHERE user_id = $5`,
				sub.Score, sub.Username, sub.FirstName, sub.At, sub.UserID,
			)
			outcome = domain.OutcomeNewHighScore
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE scores SET games_played = games_played + 1, last_played = $1 WHERE user_id = $2`,
				sub.At, sub.UserID,
			)
			outcome = domain.OutcomeNotImproved
		}
		if err != nil {
			return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("updating record: %w", err)
		}
	}

	record, err := scanRecord(tx.QueryRow(ctx,
		`SELECT user_id, username, first_name, best_score, games_played, created_at, last_played
		 FROM scores WHERE user_id = $1`, sub.UserID,
	))
	if err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("reading back record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("committing transaction: %w", err)
	}
	return outcome, record, nil
}

// Get returns the record for a user, or domain.ErrUserNotFound.
func (s *Store) Get(ctx context.Context, userID int64) (domain.ScoreRecord, error) {
	record, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT user_id, username, first_name, best_score, games_played, created_at, last_played
		 FROM scores WHERE user_id = $1`, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScoreRecord{}, domain.ErrUserNotFound
		}
		return domain.ScoreRecord{}, fmt.Errorf("getting record: %w", err)
	}
	return record, nil
}

// TopN returns the n best records, ties going to the earliest-created record.
func (s *Store) TopN(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, username, first_name, best_score, games_played, created_at, last_played
		 FROM scores
		 ORDER BY best_score DESC, created_at ASC, user_id ASC
		 LIMIT $1`, n,
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
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scores WHERE best_score > $1`, score,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting higher scores: %w", err)
	}
	return count, nil
}

// Count returns the total number of records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM scores`).Scan(&count); err != nil {
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
