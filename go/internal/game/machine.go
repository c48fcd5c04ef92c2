package game

import (
	"time"

	"github.com/mcdev12/colortap/go/internal/models"
)

// maxStepsPerEvaluation bounds how many phases one evaluation can walk
// through, e.g. when a duration is configured as zero.
const maxStepsPerEvaluation = 8

// Transition records one phase change made by an evaluation.
type Transition struct {
	From           models.Phase `json:"from"`
	To             models.Phase `json:"to"`
	QuestionNumber int          `json:"question_number"`
	QuestionID     int64        `json:"question_id,omitempty"`
	At             time.Time    `json:"at"`
}

// RoundStateMachine drives the session through its phases from wall-clock
// time and membership/answer counts. It is level-triggered: callers evaluate
// it on every poll, inside the store's exclusion, so exactly one caller
// commits a given advance.
type RoundStateMachine struct {
	settings  models.Settings
	questions *QuestionGenerator
}

// NewRoundStateMachine creates a state machine that draws questions from gen.
func NewRoundStateMachine(settings models.Settings, gen *QuestionGenerator) *RoundStateMachine {
	return &RoundStateMachine{settings: settings, questions: gen}
}

// Evaluate applies every transition that is due at now and returns them in order.
func (m *RoundStateMachine) Evaluate(s *models.Session, now time.Time) []Transition {
	var transitions []Transition
	for i := 0; i < maxStepsPerEvaluation; i++ {
		from := s.Round.Phase
		if !m.step(s, now) {
			break
		}
		t := Transition{
			From:           from,
			To:             s.Round.Phase,
			QuestionNumber: s.Round.CurrentQuestionNumber,
			At:             now,
		}
		if s.Question != nil {
			t.QuestionID = s.Question.ID
		}
		transitions = append(transitions, t)
	}
	return transitions
}

func (m *RoundStateMachine) step(s *models.Session, now time.Time) bool {
	r := &s.Round
	elapsed := r.Elapsed(now)

	switch r.Phase {
	case models.PhaseWaiting:
		if s.ConnectedCount() >= m.settings.RequiredPlayers {
			enter(s, models.PhaseCountdown, now)
			return true
		}
	case models.PhaseCountdown:
		if elapsed >= m.settings.CountdownDuration {
			m.advance(s, now)
			return true
		}
	case models.PhasePlaying:
		if s.AllAnswered() {
			enter(s, models.PhaseRoundCompleted, now)
			return true
		}
		if elapsed >= m.settings.QuestionDuration {
			enter(s, models.PhaseTimesUp, now)
			return true
		}
	case models.PhaseTimesUp:
		if elapsed >= m.settings.TimesUpDuration {
			m.advance(s, now)
			return true
		}
	case models.PhaseRoundCompleted:
		if elapsed >= m.settings.RoundCompletedDuration {
			m.advance(s, now)
			return true
		}
	}
	return false
}

// advance moves to the next question, or finishes the game after the last one.
func (m *RoundStateMachine) advance(s *models.Session, now time.Time) {
	r := &s.Round
	if r.CurrentQuestionNumber >= m.settings.MaxQuestions {
		s.FinalScores = s.Scores()
		enter(s, models.PhaseFinished, now)
		return
	}

	r.CurrentQuestionNumber++
	r.QuestionIDCounter++
	s.Question = m.questions.Next(r.QuestionIDCounter)
	r.AnsweredPlayerIDs = make(map[string]bool)
	r.FirstCorrectPlayerID = ""
	enter(s, models.PhasePlaying, now)
}

func enter(s *models.Session, phase models.Phase, now time.Time) {
	s.Round.Phase = phase
	s.Round.PhaseStartedAt = now
}
