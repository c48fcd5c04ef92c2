package game

import (
	"time"

	"github.com/mcdev12/colortap/go/internal/models"
)

// Per-caller status names. Several views share one phase.
const (
	ViewWaiting               = "waiting"
	ViewCountdown             = "countdown"
	ViewPlaying               = "playing"
	ViewTimesUp               = "timesup"
	ViewRoundCompletedWaiting = "roundcompleted_waiting"
	ViewRoundCompletedAll     = "roundcompleted_all"
	ViewFinished              = "finished"
)

// Status is what one caller sees when polling.
type Status struct {
	View                    string         `json:"status"`
	Phase                   models.Phase   `json:"phase"`
	GameStarted             bool           `json:"game_started"`
	CountdownStarted        bool           `json:"countdown_started"`
	PlayerCount             int            `json:"player_count"`
	RequiredPlayers         int            `json:"required_players"`
	PlayersNeeded           int            `json:"players_needed"`
	CountdownRemaining      float64        `json:"countdown_remaining,omitempty"`
	QuestionNumber          int            `json:"current_question_number,omitempty"`
	MaxQuestions            int            `json:"max_questions"`
	QuestionTimeRemaining   float64        `json:"question_time_remaining,omitempty"`
	TimesUpRemaining        float64        `json:"timesup_remaining,omitempty"`
	RoundCompletedRemaining float64        `json:"roundcompleted_remaining,omitempty"`
	AllAnswered             bool           `json:"all_answered"`
	PlayerAnswered          bool           `json:"player_answered"`
	Players                 []string       `json:"players,omitempty"`
	AnsweredPlayers         []string       `json:"answered_players,omitempty"`
	WaitingForPlayers       []string       `json:"waiting_for_players,omitempty"`
	Scores                  map[string]int `json:"scores,omitempty"`
	FinalScores             map[string]int `json:"final_scores,omitempty"`
}

// QuestionView is the live question plus its timing.
type QuestionView struct {
	models.Question
	TimeRemaining  float64 `json:"time_remaining"`
	QuestionNumber int     `json:"question_number"`
	MaxQuestions   int     `json:"max_questions"`
}

// BuildStatus derives playerID's view of s at now. An empty playerID is an
// anonymous caller and never counts as having answered.
func BuildStatus(s *models.Session, settings models.Settings, playerID string, now time.Time) *Status {
	r := &s.Round
	answered := playerID != "" && r.HasAnswered(playerID)
	st := &Status{
		Phase:           r.Phase,
		PlayerCount:     s.ConnectedCount(),
		RequiredPlayers: settings.RequiredPlayers,
		MaxQuestions:    settings.MaxQuestions,
		PlayerAnswered:  answered,
	}
	if needed := settings.RequiredPlayers - st.PlayerCount; needed > 0 {
		st.PlayersNeeded = needed
	}

	switch r.Phase {
	case models.PhaseWaiting:
		st.View = ViewWaiting
	case models.PhaseCountdown:
		st.View = ViewCountdown
		st.CountdownStarted = true
		st.CountdownRemaining = r.Remaining(now, settings.CountdownDuration).Seconds()
	case models.PhasePlaying:
		st.View = ViewPlaying
		st.QuestionTimeRemaining = r.Remaining(now, settings.QuestionDuration).Seconds()
		st.AllAnswered = s.AllAnswered()
	case models.PhaseTimesUp:
		st.TimesUpRemaining = r.Remaining(now, settings.TimesUpDuration).Seconds()
		st.View = ViewTimesUp
		if answered {
			st.View = ViewRoundCompletedWaiting
		}
	case models.PhaseRoundCompleted:
		st.View = ViewRoundCompletedAll
		st.AllAnswered = true
		st.RoundCompletedRemaining = r.Remaining(now, settings.RoundCompletedDuration).Seconds()
	case models.PhaseFinished:
		st.View = ViewFinished
		st.FinalScores = s.FinalScores
	}

	if r.Phase.InQuestion() {
		st.GameStarted = true
		st.QuestionNumber = r.CurrentQuestionNumber
		st.Players = s.PlayerIDs()
		st.AnsweredPlayers = s.AnsweredIDs()
		st.WaitingForPlayers = s.PendingIDs()
		st.Scores = s.Scores()
	}
	if r.Phase == models.PhaseFinished {
		st.GameStarted = true
	}
	return st
}

// BuildQuestionView returns the live question, or ErrNoActiveQuestion.
func BuildQuestionView(s *models.Session, settings models.Settings, now time.Time) (*QuestionView, error) {
	if !s.Round.Phase.InQuestion() || s.Question == nil {
		return nil, ErrNoActiveQuestion
	}
	remaining := 0.0
	if s.Round.Phase == models.PhasePlaying {
		remaining = s.Round.Remaining(now, settings.QuestionDuration).Seconds()
	}
	return &QuestionView{
		Question:       *s.Question,
		TimeRemaining:  remaining,
		QuestionNumber: s.Round.CurrentQuestionNumber,
		MaxQuestions:   settings.MaxQuestions,
	}, nil
}
