package game

import (
	"math"
	"time"

	"github.com/mcdev12/colortap/go/internal/models"
)

const (
	// FirstCorrectBonus is awarded once per question to the first correct answer.
	FirstCorrectBonus = 50

	// PointsPerSecond converts remaining question time into points.
	PointsPerSecond = 10
)

// AnswerStatus is the outcome kind of an answer submission.
type AnswerStatus string

const (
	AnswerCorrect         AnswerStatus = "correct"
	AnswerIncorrect       AnswerStatus = "incorrect"
	AnswerGameNotActive   AnswerStatus = "game_not_active"
	AnswerQuestionExpired AnswerStatus = "question_expired"
	AnswerAlreadyAnswered AnswerStatus = "already_answered"
)

// Submission is one player's answer to one question.
type Submission struct {
	PlayerID   string `json:"player_id"`
	QuestionID int64  `json:"question_id"`
	Answer     string `json:"answer"`
}

// AnswerResult is returned for every submission. Only Status is meaningful
// for the rejection kinds.
type AnswerResult struct {
	Status        AnswerStatus `json:"status"`
	Correct       bool         `json:"correct"`
	NewScore      int          `json:"new_score"`
	PointsEarned  int          `json:"points_earned"`
	TimePoints    int          `json:"time_points"`
	BonusPoints   int          `json:"bonus_points"`
	FirstCorrect  bool         `json:"first_correct"`
	TimeRemaining float64      `json:"time_remaining"`
}

// ScoringEngine validates and scores answers against the live question.
type ScoringEngine struct {
	settings models.Settings
}

// NewScoringEngine creates a scoring engine for the given settings.
func NewScoringEngine(settings models.Settings) ScoringEngine {
	return ScoringEngine{settings: settings}
}

// TimePoints converts seconds remaining into points, rounding down.
func TimePoints(remaining float64) int {
	if remaining <= 0 {
		return 0
	}
	return int(math.Floor(remaining * PointsPerSecond))
}

// Submit scores sub at now. A player can be scored at most once per question.
func (e ScoringEngine) Submit(s *models.Session, sub Submission, now time.Time) (AnswerResult, error) {
	player, ok := s.Players[sub.PlayerID]
	if !ok {
		return AnswerResult{}, ErrUnknownPlayer
	}

	if s.Round.Phase != models.PhasePlaying || s.Question == nil {
		return AnswerResult{Status: AnswerGameNotActive}, nil
	}
	if sub.QuestionID != s.Question.ID {
		return AnswerResult{Status: AnswerQuestionExpired}, nil
	}
	if s.Round.HasAnswered(sub.PlayerID) {
		return AnswerResult{Status: AnswerAlreadyAnswered, NewScore: player.Score}, nil
	}

	remaining := s.Round.Remaining(now, e.settings.QuestionDuration).Seconds()
	timePoints := TimePoints(remaining)
	s.Round.AnsweredPlayerIDs[sub.PlayerID] = true

	if sub.Answer != s.Question.CorrectAnswer {
		return AnswerResult{
			Status:        AnswerIncorrect,
			NewScore:      player.Score,
			TimeRemaining: remaining,
		}, nil
	}

	first := s.Round.FirstCorrectPlayerID == ""
	bonus := 0
	if first {
		s.Round.FirstCorrectPlayerID = sub.PlayerID
		bonus = FirstCorrectBonus
	}
	player.Score += timePoints + bonus

	return AnswerResult{
		Status:        AnswerCorrect,
		Correct:       true,
		NewScore:      player.Score,
		PointsEarned:  timePoints + bonus,
		TimePoints:    timePoints,
		BonusPoints:   bonus,
		FirstCorrect:  first,
		TimeRemaining: remaining,
	}, nil
}
