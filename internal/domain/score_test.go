package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	rec := ScoreRecord{FirstName: "Alice", Username: "alice90"}
	assert.Equal(t, "Alice", rec.DisplayName(1))

	rec.FirstName = ""
	assert.Equal(t, "alice90", rec.DisplayName(1))

	rec.Username = ""
	assert.Equal(t, "Player 7", rec.DisplayName(7))
}

func TestOutcomeMessages(t *testing.T) {
	assert.Equal(t, "First score saved!", OutcomeFirstScore.Message())
	assert.Equal(t, "New high score saved!", OutcomeNewHighScore.Message())
	assert.Equal(t, "Score updated (not a high score)", OutcomeNotImproved.Message())
}

func TestSubmissionValidate(t *testing.T) {
	score := int64(10)

	sub := ScoreSubmission{UserID: 1, Score: &score}
	assert.NoError(t, sub.Validate())

	sub = ScoreSubmission{Score: &score}
	assert.ErrorIs(t, sub.Validate(), ErrMissingFields)

	sub = ScoreSubmission{UserID: 1}
	assert.ErrorIs(t, sub.Validate(), ErrMissingFields)

	zero := int64(0)
	sub = ScoreSubmission{UserID: 1, Score: &zero}
	assert.NoError(t, sub.Validate())
}

func TestSubmissionDecodeDistinguishesAbsentScore(t *testing.T) {
	var sub ScoreSubmission
	require.NoError(t, json.Unmarshal([]byte(`{"user_id": 1, "score": 0}`), &sub))
	require.NotNil(t, sub.Score)
	assert.Equal(t, int64(0), *sub.Score)

	sub = ScoreSubmission{}
	require.NoError(t, json.Unmarshal([]byte(`{"user_id": 1}`), &sub))
	assert.Nil(t, sub.Score)
}
