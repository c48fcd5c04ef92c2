package models

import "time"

// Phase is the global stage of the round state machine.
type Phase string

const (
	PhaseWaiting        Phase = "waiting"
	PhaseCountdown      Phase = "countdown"
	PhasePlaying        Phase = "playing"
	PhaseTimesUp        Phase = "times_up"
	PhaseRoundCompleted Phase = "round_completed"
	PhaseFinished       Phase = "finished"
)

// InQuestion reports whether a question is live or being wrapped up.
func (p Phase) InQuestion() bool {
	return p == PhasePlaying || p == PhaseTimesUp || p == PhaseRoundCompleted
}

// Settings holds the sizing and timing of a game.
type Settings struct {
	RequiredPlayers        int
	MaxQuestions           int
	QuestionDuration       time.Duration
	CountdownDuration      time.Duration
	TimesUpDuration        time.Duration
	RoundCompletedDuration time.Duration
	HeartbeatTimeout       time.Duration
	RetainDepartedScores   bool
}

// DefaultSettings returns the stock game settings.
func DefaultSettings() Settings {
	return Settings{
		RequiredPlayers:        2,
		MaxQuestions:           10,
		QuestionDuration:       10 * time.Second,
		CountdownDuration:      3 * time.Second,
		TimesUpDuration:        3 * time.Second,
		RoundCompletedDuration: 2 * time.Second,
		HeartbeatTimeout:       30 * time.Second,
	}
}

// RoundState tracks the phase machine and per-question bookkeeping.
type RoundState struct {
	Phase                 Phase           `json:"phase"`
	PhaseStartedAt        time.Time       `json:"phase_started_at"`
	CurrentQuestionNumber int             `json:"current_question_number"`
	QuestionIDCounter     int64           `json:"question_id_counter"`
	FirstCorrectPlayerID  string          `json:"first_correct_player_id,omitempty"`
	AnsweredPlayerIDs     map[string]bool `json:"answered_player_ids"`
}

// HasAnswered reports whether playerID answered the current question.
func (r *RoundState) HasAnswered(playerID string) bool {
	return r.AnsweredPlayerIDs[playerID]
}

// Elapsed returns the time spent in the current phase.
func (r *RoundState) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.PhaseStartedAt)
}

// Remaining returns how much of d is left in the current phase, floored at zero.
func (r *RoundState) Remaining(now time.Time, d time.Duration) time.Duration {
	left := d - r.Elapsed(now)
	if left < 0 {
		return 0
	}
	return left
}
