// Package redisdb implements the score store on Redis: one hash per player
// plus a sorted set indexing best scores. The submit path runs as a Lua
// script, so the read-decide-write is a single atomic evaluation.
package redisdb

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/game-companion/scoreboard/internal/config"
	"github.com/game-companion/scoreboard/internal/domain"
	"github.com/game-companion/scoreboard/internal/ledger"
)

const (
	rankingKey   = "scores:ranking"
	recordKeyFmt = "scores:user:%d"
	timeLayout   = time.RFC3339Nano
)

// Outcome codes returned by the submit script.
const (
	scriptFirstScore  = 1
	scriptNewHigh     = 2
	scriptNotImproved = 3
)

var submitScript = redis.NewScript(`
local key = KEYS[1]
local ranking = KEYS[2]
local id = ARGV[1]
local score = tonumber(ARGV[2])
local username = ARGV[3]
local first_name = ARGV[4]
local now = ARGV[5]

local best = redis.call('HGET', key, 'best_score')
if not best then
	redis.call('HSET', key, 'username', username, 'first_name', first_name,
		'best_score', score, 'games_played', 1, 'created_at', now, 'last_played', now)
	redis.call('ZADD', ranking, score, id)
	return {1, score, 1}
end

local games = redis.call('HINCRBY', key, 'games_played', 1)
redis.call('HSET', key, 'last_played', now)

if score > tonumber(best) then
	redis.call('HSET', key, 'best_score', score, 'username', username, 'first_name', first_name)
	redis.call('ZADD', ranking, score, id)
	return {2, score, games}
end
return {3, tonumber(best), games}
`)

// Store provides Redis-backed score persistence.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &Store{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func recordKey(userID int64) string {
	return fmt.Sprintf(recordKeyFmt, userID)
}

// Submit runs the atomic submit script and reads back the full record.
func (s *Store) Submit(ctx context.Context, sub ledger.Submission) (domain.Outcome, domain.ScoreRecord, error) {
	res, err := submitScript.Run(ctx, s.client,
		[]string{recordKey(sub.UserID), rankingKey},
		sub.UserID,
		sub.Score,
		sub.Username,
		sub.FirstName,
		sub.At.UTC().Format(timeLayout),
	).Int64Slice()
	if err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("running submit script: %w", err)
	}
	if len(res) != 3 {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("unexpected submit script reply: %v", res)
	}

	var outcome domain.Outcome
	switch res[0] {
	case scriptFirstScore:
		outcome = domain.OutcomeFirstScore
	case scriptNewHigh:
		outcome = domain.OutcomeNewHighScore
	case scriptNotImproved:
		outcome = domain.OutcomeNotImproved
	default:
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("unknown outcome code %d", res[0])
	}

	record, err := s.Get(ctx, sub.UserID)
	if err != nil {
		return domain.OutcomeUnknown, domain.ScoreRecord{}, fmt.Errorf("reading back record: %w", err)
	}
	return outcome, record, nil
}

// Get returns the record for a user, or domain.ErrUserNotFound.
func (s *Store) Get(ctx context.Context, userID int64) (domain.ScoreRecord, error) {
	fields, err := s.client.HGetAll(ctx, recordKey(userID)).Result()
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("getting record: %w", err)
	}
	if len(fields) == 0 {
		return domain.ScoreRecord{}, domain.ErrUserNotFound
	}
	return parseRecord(userID, fields)
}

// TopN returns the n best records from the sorted set index. Equal scores are
// ordered by the set's member ordering, which is stable between calls.
func (s *Store) TopN(ctx context.Context, n int) ([]domain.ScoreRecord, error) {
	ids, err := s.client.ZRevRange(ctx, rankingKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing ranking: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		uid, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing ranking member %q: %w", id, err)
		}
		cmds[i] = pipe.HGetAll(ctx, recordKey(uid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("fetching records: %w", err)
	}

	records := make([]domain.ScoreRecord, 0, len(ids))
	for i, cmd := range cmds {
		uid, _ := strconv.ParseInt(ids[i], 10, 64)
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			s.logger.Warn("ranking member without record", "user_id", uid)
			continue
		}
		record, err := parseRecord(uid, fields)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// CountHigher returns how many members have a strictly greater score.
func (s *Store) CountHigher(ctx context.Context, score int64) (int64, error) {
	count, err := s.client.ZCount(ctx, rankingKey,
		"("+strconv.FormatInt(score, 10), "+inf",
	).Result()
	if err != nil {
		return 0, fmt.Errorf("counting higher scores: %w", err)
	}
	return count, nil
}

// Count returns the total number of players in the ranking.
func (s *Store) Count(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, rankingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

func parseRecord(userID int64, fields map[string]string) (domain.ScoreRecord, error) {
	best, err := strconv.ParseInt(fields["best_score"], 10, 64)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("parsing best_score for user %d: %w", userID, err)
	}
	games, err := strconv.ParseInt(fields["games_played"], 10, 64)
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("parsing games_played for user %d: %w", userID, err)
	}

	rec := domain.ScoreRecord{
		UserID:      userID,
		Username:    fields["username"],
		FirstName:   fields["first_name"],
		BestScore:   best,
		GamesPlayed: games,
	}
	if t, err := time.Parse(timeLayout, fields["created_at"]); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(timeLayout, fields["last_played"]); err == nil {
		rec.LastPlayed = t
	}
	return rec, nil
}
