package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/game-companion/scoreboard/internal/domain"
	"github.com/game-companion/scoreboard/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func submission(userID, score int64, at time.Time) ledger.Submission {
	return ledger.Submission{
		UserID:    userID,
		Username:  "handle",
		FirstName: "Name",
		Score:     score,
		At:        at,
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "scores.db"), testLogger())
	require.NoError(t, err)
	defer s.Close()

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	records, err := s.TopN(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = s.Get(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")
	ctx := context.Background()

	s, err := Open(path, testLogger())
	require.NoError(t, err)
	_, _, err = s.Submit(ctx, submission(1, 42, time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, testLogger())
	require.NoError(t, err)
	defer s.Close()

	record, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), record.BestScore)
	assert.Equal(t, int64(1), record.GamesPlayed)
	assert.Equal(t, "handle", record.Username)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestTopNTiebreak(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "scores.db"), testLogger())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	base := time.Now()
	for i, userID := range []int64{5, 3, 9} {
		_, _, err := s.Submit(ctx, submission(userID, 100, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	records, err := s.TopN(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Earliest record wins the tie
	assert.Equal(t, int64(5), records[0].UserID)
	assert.Equal(t, int64(3), records[1].UserID)
	assert.Equal(t, int64(9), records[2].UserID)
}

func TestNotImprovedKeepsNames(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "scores.db"), testLogger())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	sub := submission(1, 50, time.Now())
	sub.Username = "original"
	sub.FirstName = "Original"
	_, _, err = s.Submit(ctx, sub)
	require.NoError(t, err)

	// A losing submission bumps the counter but leaves the display fields
	sub = submission(1, 10, time.Now())
	sub.Username = "imposter"
	sub.FirstName = "Imposter"
	outcome, record, err := s.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotImproved, outcome)
	assert.Equal(t, "original", record.Username)
	assert.Equal(t, "Original", record.FirstName)
	assert.Equal(t, int64(2), record.GamesPlayed)
}

func TestCountHigherIsStrict(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "scores.db"), testLogger())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	for userID, score := range map[int64]int64{1: 50, 2: 70, 3: 70} {
		_, _, err := s.Submit(ctx, submission(userID, score, time.Now()))
		require.NoError(t, err)
	}

	count, err := s.CountHigher(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = s.CountHigher(ctx, 70)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
