// Package ledger owns the score table semantics: highest-score-wins upserts,
// play counting, and rank computation. Storage backends only provide atomic
// row operations; everything callers see goes through the Ledger.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/game-companion/scoreboard/internal/config"
	"github.com/game-companion/scoreboard/internal/domain"
	"github.com/game-companion/scoreboard/internal/metrics"
)

// Store is the durable score table. Submit must apply the read-decide-write
// atomically with respect to concurrent Submit calls for the same user.
type Store interface {
	Submit(ctx context.Context, sub Submission) (domain.Outcome, domain.ScoreRecord, error)
	Get(ctx context.Context, userID int64) (domain.ScoreRecord, error)
	TopN(ctx context.Context, n int) ([]domain.ScoreRecord, error)
	CountHigher(ctx context.Context, score int64) (int64, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// Submission is a validated score report handed to the store.
type Submission struct {
	UserID    int64
	Username  string
	FirstName string
	Score     int64
	At        time.Time
}

// Broadcaster receives a fresh leaderboard snapshot after a submission that
// changed the ranking. Implemented by the websocket hub.
type Broadcaster interface {
	BroadcastLeaderboardUpdate(entries []domain.LeaderboardEntry, totalPlayers int64)
}

// Ledger provides the score ledger operations over a Store.
type Ledger struct {
	store       Store
	cfg         *config.LeaderboardConfig
	logger      *slog.Logger
	broadcaster Broadcaster
}

// New creates a ledger over the given store.
func New(store Store, cfg *config.LeaderboardConfig, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// SetBroadcaster attaches a live-update sink. Optional; nil disables
// broadcasting.
func (l *Ledger) SetBroadcaster(b Broadcaster) {
	l.broadcaster = b
}

// SubmitScore records one game-over report. The player's record is created on
// first sight, the best score only ever raised, and the play counter always
// incremented.
func (l *Ledger) SubmitScore(ctx context.Context, sub domain.ScoreSubmission) (domain.SubmitResult, error) {
	if err := sub.Validate(); err != nil {
		return domain.SubmitResult{}, err
	}

	start := time.Now()
	outcome, record, err := l.store.Submit(ctx, Submission{
		UserID:    sub.UserID,
		Username:  sub.Username,
		FirstName: sub.FirstName,
		Score:     *sub.Score,
		At:        start,
	})
	if err != nil {
		metrics.StorageErrorsTotal.Inc()
		return domain.SubmitResult{}, fmt.Errorf("submitting score for user %d: %w", sub.UserID, err)
	}
	metrics.SubmitLatency.Observe(time.Since(start).Seconds())
	metrics.SubmissionsTotal.WithLabelValues(outcome.String()).Inc()

	l.logger.Info("score submitted",
		"user_id", sub.UserID,
		"score", *sub.Score,
		"outcome", outcome.String(),
		"best_score", record.BestScore,
		"games_played", record.GamesPlayed,
	)

	if outcome != domain.OutcomeNotImproved {
		l.broadcastUpdate(ctx)
	}

	return domain.SubmitResult{Outcome: outcome, Record: record}, nil
}

// GetLeaderboard returns the top limit players ordered by best score
// descending, with 1-based ranks and resolved display names. An empty table
// yields an empty slice.
func (l *Ledger) GetLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = l.cfg.DefaultLimit
	}
	if limit > l.cfg.MaxLimit {
		limit = l.cfg.MaxLimit
	}

	records, err := l.store.TopN(ctx, limit)
	if err != nil {
		metrics.StorageErrorsTotal.Inc()
		return nil, fmt.Errorf("listing top %d: %w", limit, err)
	}

	entries := make([]domain.LeaderboardEntry, len(records))
	for i, rec := range records {
		rank := int64(i + 1)
		entry := domain.LeaderboardEntry{
			Rank:  rank,
			Name:  rec.DisplayName(rank),
			Score: rec.BestScore,
		}
		if l.cfg.IncludeGamesPlayed {
			games := rec.GamesPlayed
			entry.GamesPlayed = &games
		}
		if l.cfg.IncludeLastPlayed {
			played := rec.LastPlayed
			entry.LastPlayed = &played
		}
		entries[i] = entry
	}
	return entries, nil
}

// GetUserStats returns a player's best score, play count, rank and the total
// player count. Returns domain.ErrUserNotFound for unknown players; callers
// render that as an unranked empty state, not a fault.
func (l *Ledger) GetUserStats(ctx context.Context, userID int64) (domain.UserStats, error) {
	record, err := l.store.Get(ctx, userID)
	if err != nil {
		return domain.UserStats{}, l.wrapLookupErr(err, userID)
	}

	higher, err := l.store.CountHigher(ctx, record.BestScore)
	if err != nil {
		metrics.StorageErrorsTotal.Inc()
		return domain.UserStats{}, fmt.Errorf("ranking user %d: %w", userID, err)
	}
	total, err := l.store.Count(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.Inc()
		return domain.UserStats{}, fmt.Errorf("counting players: %w", err)
	}

	stats := domain.UserStats{
		Score:        record.BestScore,
		GamesPlayed:  record.GamesPlayed,
		Rank:         higher + 1,
		TotalPlayers: total,
	}
	if l.cfg.IncludeLastPlayed {
		played := record.LastPlayed
		stats.LastPlayed = &played
	}
	return stats, nil
}

// GetRank returns a player's 1-based rank, consistent with the leaderboard
// ordering: 1 + the number of strictly greater best scores.
func (l *Ledger) GetRank(ctx context.Context, userID int64) (int64, error) {
	record, err := l.store.Get(ctx, userID)
	if err != nil {
		return 0, l.wrapLookupErr(err, userID)
	}
	higher, err := l.store.CountHigher(ctx, record.BestScore)
	if err != nil {
		metrics.StorageErrorsTotal.Inc()
		return 0, fmt.Errorf("ranking user %d: %w", userID, err)
	}
	return higher + 1, nil
}

// GetTotalPlayers returns the number of distinct players on record.
func (l *Ledger) GetTotalPlayers(ctx context.Context) (int64, error) {
	total, err := l.store.Count(ctx)
	if err != nil {
		metrics.StorageErrorsTotal.Inc()
		return 0, fmt.Errorf("counting players: %w", err)
	}
	return total, nil
}

func (l *Ledger) wrapLookupErr(err error, userID int64) error {
	if err == domain.ErrUserNotFound {
		return err
	}
	metrics.StorageErrorsTotal.Inc()
	return fmt.Errorf("looking up user %d: %w", userID, err)
}

func (l *Ledger) broadcastUpdate(ctx context.Context) {
	if l.broadcaster == nil {
		return
	}
	entries, err := l.GetLeaderboard(ctx, l.cfg.DefaultLimit)
	if err != nil {
		l.logger.Warn("failed to build leaderboard for broadcast", "error", err)
		return
	}
	total, err := l.store.Count(ctx)
	if err != nil {
		l.logger.Warn("failed to count players for broadcast", "error", err)
		return
	}
	l.broadcaster.BroadcastLeaderboardUpdate(entries, total)
}
