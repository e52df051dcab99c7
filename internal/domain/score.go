package domain

import (
	"fmt"
	"time"
)

// ScoreRecord is one row of the scores table: a player's best result and how
// often they have played. BestScore never decreases; GamesPlayed grows by one
// per accepted submission.
type ScoreRecord struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	BestScore   int64     `json:"best_score"`
	GamesPlayed int64     `json:"games_played"`
	CreatedAt   time.Time `json:"created_at"`
	LastPlayed  time.Time `json:"last_played"`
}

// DisplayName resolves the name shown on leaderboards: first name if present,
// else username, else a positional placeholder.
func (r ScoreRecord) DisplayName(rank int64) string {
	if r.FirstName != "" {
		return r.FirstName
	}
	if r.Username != "" {
		return r.Username
	}
	return fmt.Sprintf("Player %d", rank)
}

// Outcome classifies what a submission did to the player's record.
type Outcome int

const (
	OutcomeUnknown Outcome = iota
	OutcomeFirstScore
	OutcomeNewHighScore
	OutcomeNotImproved
)

// Message returns the user-facing confirmation text for the outcome.
func (o Outcome) Message() string {
	switch o {
	case OutcomeFirstScore:
		return "First score saved!"
	case OutcomeNewHighScore:
		return "New high score saved!"
	case OutcomeNotImproved:
		return "Score updated (not a high score)"
	default:
		return "Score received"
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeFirstScore:
		return "first_score"
	case OutcomeNewHighScore:
		return "new_high_score"
	case OutcomeNotImproved:
		return "not_improved"
	default:
		return "unknown"
	}
}

// ScoreSubmission is the wire form of a game-over report, shared by the HTTP
// gateway and the Kafka consumer. Score is a pointer so an absent field can be
// told apart from an explicit zero; zero and negative scores are accepted.
type ScoreSubmission struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Score     *int64 `json:"score"`
}

// Validate checks the required fields. A user_id of 0 counts as missing.
func (s ScoreSubmission) Validate() error {
	if s.UserID == 0 || s.Score == nil {
		return ErrMissingFields
	}
	return nil
}

// SubmitResult is what a submission produced: the outcome and the record as it
// stands after the write.
type SubmitResult struct {
	Outcome Outcome     `json:"outcome"`
	Record  ScoreRecord `json:"record"`
}

// LeaderboardEntry is one row of the ranked top-N view. GamesPlayed and
// LastPlayed are only populated when the deployment is configured to expose
// them.
type LeaderboardEntry struct {
	Rank        int64      `json:"rank"`
	Name        string     `json:"name"`
	Score       int64      `json:"score"`
	GamesPlayed *int64     `json:"games_played,omitempty"`
	LastPlayed  *time.Time `json:"last_played,omitempty"`
}

// UserStats is the per-player projection served by the stats endpoint and the
// chat layer. Rank is 1 + the number of players with a strictly greater best
// score.
type UserStats struct {
	Score        int64      `json:"score"`
	GamesPlayed  int64      `json:"games_played"`
	Rank         int64      `json:"rank"`
	TotalPlayers int64      `json:"total_players"`
	LastPlayed   *time.Time `json:"last_played,omitempty"`
}
