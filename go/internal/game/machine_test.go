package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/colortap/go/internal/models"
)

func newMachineSession(t *testing.T, players ...string) *models.Session {
	t.Helper()
	s := models.NewSession("m", testEpoch)
	for _, id := range players {
		s.Players[id] = &models.Player{ID: id, LastHeartbeat: testEpoch, JoinedAt: testEpoch}
	}
	return s
}

func TestRoundStateMachine_LobbyToPlaying(t *testing.T) {
	settings := models.DefaultSettings()
	m := NewRoundStateMachine(settings, NewSeededQuestionGenerator(1))
	s := newMachineSession(t, "a")

	assert.Empty(t, m.Evaluate(s, testEpoch))
	assert.Equal(t, models.PhaseWaiting, s.Round.Phase)

	s.Players["b"] = &models.Player{ID: "b", LastHeartbeat: testEpoch}
	tr := m.Evaluate(s, testEpoch)
	require.Len(t, tr, 1)
	assert.Equal(t, models.PhaseWaiting, tr[0].From)
	assert.Equal(t, models.PhaseCountdown, tr[0].To)

	assert.Empty(t, m.Evaluate(s, testEpoch.Add(settings.CountdownDuration-time.Millisecond)))

	now := testEpoch.Add(settings.CountdownDuration)
	tr = m.Evaluate(s, now)
	require.Len(t, tr, 1)
	assert.Equal(t, models.PhasePlaying, tr[0].To)
	assert.Equal(t, 1, tr[0].QuestionNumber)
	assert.Equal(t, int64(1), tr[0].QuestionID)
	assert.Equal(t, now, s.Round.PhaseStartedAt)
	require.NotNil(t, s.Question)
	assert.Empty(t, s.Round.AnsweredPlayerIDs)
}

func TestRoundStateMachine_PlayingExits(t *testing.T) {
	settings := models.DefaultSettings()

	tests := []struct {
		name     string
		answered []string
		after    time.Duration
		want     models.Phase
	}{
		{name: "nobody answered, time left", after: 5 * time.Second, want: models.PhasePlaying},
		{name: "some answered, time left", answered: []string{"a"}, after: 5 * time.Second, want: models.PhasePlaying},
		{name: "all answered", answered: []string{"a", "b"}, after: time.Second, want: models.PhaseRoundCompleted},
		{name: "all answered at expiry", answered: []string{"a", "b"}, after: settings.QuestionDuration, want: models.PhaseRoundCompleted},
		{name: "stragglers at expiry", answered: []string{"a"}, after: settings.QuestionDuration, want: models.PhaseTimesUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRoundStateMachine(settings, NewSeededQuestionGenerator(1))
			s := newMachineSession(t, "a", "b")
			s.Round.Phase = models.PhasePlaying
			s.Round.CurrentQuestionNumber = 1
			s.Round.QuestionIDCounter = 1
			s.Question = NewSeededQuestionGenerator(2).Next(1)
			for _, id := range tt.answered {
				s.Round.AnsweredPlayerIDs[id] = true
			}

			m.Evaluate(s, testEpoch.Add(tt.after))
			assert.Equal(t, tt.want, s.Round.Phase)
		})
	}
}

func TestRoundStateMachine_AdvanceAndFinish(t *testing.T) {
	settings := models.DefaultSettings()
	settings.MaxQuestions = 3
	m := NewRoundStateMachine(settings, NewSeededQuestionGenerator(1))
	s := newMachineSession(t, "a", "b")
	s.Players["a"].Score = 80
	s.Round.Phase = models.PhaseTimesUp
	s.Round.CurrentQuestionNumber = 2
	s.Round.QuestionIDCounter = 7
	s.Round.FirstCorrectPlayerID = "a"
	s.Round.AnsweredPlayerIDs["a"] = true

	m.Evaluate(s, testEpoch.Add(settings.TimesUpDuration))
	assert.Equal(t, models.PhasePlaying, s.Round.Phase)
	assert.Equal(t, 3, s.Round.CurrentQuestionNumber)
	assert.Equal(t, int64(8), s.Question.ID)
	assert.Empty(t, s.Round.FirstCorrectPlayerID)
	assert.Empty(t, s.Round.AnsweredPlayerIDs)

	s.Round.Phase = models.PhaseRoundCompleted
	s.Round.PhaseStartedAt = testEpoch
	tr := m.Evaluate(s, testEpoch.Add(settings.RoundCompletedDuration))
	require.Len(t, tr, 1)
	assert.Equal(t, models.PhaseFinished, tr[0].To)
	assert.Equal(t, 3, s.Round.CurrentQuestionNumber)
	assert.Equal(t, int64(8), s.Round.QuestionIDCounter)
	assert.Equal(t, map[string]int{"a": 80, "b": 0}, s.FinalScores)

	assert.Empty(t, m.Evaluate(s, testEpoch.Add(time.Hour)))
}

func TestRoundStateMachine_ZeroDurationsAreBounded(t *testing.T) {
	settings := models.DefaultSettings()
	settings.CountdownDuration = 0
	settings.QuestionDuration = 0
	settings.TimesUpDuration = 0
	settings.MaxQuestions = 100
	m := NewRoundStateMachine(settings, NewSeededQuestionGenerator(1))
	s := newMachineSession(t, "a", "b")

	tr := m.Evaluate(s, testEpoch)
	assert.Len(t, tr, maxStepsPerEvaluation)
	assert.NotEqual(t, models.PhaseFinished, s.Round.Phase)
}
