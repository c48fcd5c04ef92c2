package events

import (
	"time"
)

// Type names an event emitted by a game session.
type Type string

const (
	PlayerJoined    Type = "player_joined"
	PlayerLeft      Type = "player_left"
	PhaseChanged    Type = "phase_changed"
	AnswerSubmitted Type = "answer_submitted"
	SessionReset    Type = "session_reset"
)

// Event is one committed change to a session. Payload is one of the
// payload types below.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload"`
}

// PlayerJoinedPayload is the payload for a PlayerJoined event
type PlayerJoinedPayload struct {
	PlayerID    string `json:"player_id"`
	PlayerCount int    `json:"player_count"`
}

// PlayerLeftPayload is the payload for a PlayerLeft event
type PlayerLeftPayload struct {
	PlayerID    string `json:"player_id"`
	Score       int    `json:"score"`
	PlayerCount int    `json:"player_count"`
}

// PhaseChangedPayload is the payload for a PhaseChanged event
type PhaseChangedPayload struct {
	From           string         `json:"from"`
	To             string         `json:"to"`
	QuestionNumber int            `json:"question_number"`
	QuestionID     int64          `json:"question_id,omitempty"`
	FinalScores    map[string]int `json:"final_scores,omitempty"`
}

// AnswerSubmittedPayload is the payload for an AnswerSubmitted event
type AnswerSubmittedPayload struct {
	PlayerID     string `json:"player_id"`
	QuestionID   int64  `json:"question_id"`
	Status       string `json:"status"`
	PointsEarned int    `json:"points_earned"`
	FirstCorrect bool   `json:"first_correct"`
	NewScore     int    `json:"new_score"`
}

// SessionResetPayload is the payload for a SessionReset event
type SessionResetPayload struct {
	Reason string `json:"reason"`
}
