package domain

import (
	"encoding/json"
	"time"
)

// PlayerHistoryCap is the maximum number of records returned for a player's history
const PlayerHistoryCap = 100

// DefaultTopLimit is the leaderboard size used when the caller gives none
const DefaultTopLimit = 10

// ScoreRecord is a completed game run. Records are immutable once stored.
type ScoreRecord struct {
	ID          string    `json:"id"`
	PlayerName  string    `json:"player_name"`
	Difficulty  string    `json:"difficulty"`
	TimeSeconds int64     `json:"time_seconds"`
	Moves       int64     `json:"moves"`
	Completed   bool      `json:"completed"`
	Timestamp   time.Time `json:"timestamp"`
}

// ScoreSubmission is a score as submitted by the game client. Fields are
// pointers so that a missing field can be told apart from a zero value.
type ScoreSubmission struct {
	PlayerName  *string `json:"player_name"`
	Difficulty  *string `json:"difficulty"`
	TimeSeconds *int64  `json:"time_seconds"`
	Moves       *int64  `json:"moves"`
	Completed   *bool   `json:"completed"`
}

// NewScore is a validated score submission
type NewScore struct {
	PlayerName  string
	Difficulty  string
	TimeSeconds int64
	Moves       int64
	Completed   bool
}

// DecodeScoreSubmission parses and validates a JSON score submission
func DecodeScoreSubmission(data []byte) (NewScore, error) {
	var submission ScoreSubmission
	if err := json.Unmarshal(data, &submission); err != nil {
		return NewScore{}, NewValidationError("body", err.Error())
	}
	return submission.Validate()
}

// Validate checks that every field is present. Values are otherwise
// accepted as-is: negative times and unknown difficulties are stored.
func (s ScoreSubmission) Validate() (NewScore, error) {
	if s.PlayerName == nil || *s.PlayerName == "" {
		return NewScore{}, NewValidationError("player_name", "field required")
	}
	if s.Difficulty == nil {
		return NewScore{}, NewValidationError("difficulty", "field required")
	}
	if s.TimeSeconds == nil {
		return NewScore{}, NewValidationError("time_seconds", "field required")
	}
	if s.Moves == nil {
		return NewScore{}, NewValidationError("moves", "field required")
	}
	if s.Completed == nil {
		return NewScore{}, NewValidationError("completed", "field required")
	}

	return NewScore{
		PlayerName:  *s.PlayerName,
		Difficulty:  *s.Difficulty,
		TimeSeconds: *s.TimeSeconds,
		Moves:       *s.Moves,
		Completed:   *s.Completed,
	}, nil
}

// TopScoresQuery selects the fastest runs, optionally for one difficulty.
// An empty Difficulty applies no filter.
type TopScoresQuery struct {
	Limit      int
	Difficulty string
}
