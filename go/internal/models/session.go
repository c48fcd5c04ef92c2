package models

import (
	"sort"
	"time"
)

// Session is the single logical game of a deployment. Generation is bumped
// on every committed update and is what shared stores compare-and-swap on.
type Session struct {
	ID             string             `json:"id"`
	Generation     int64              `json:"generation"`
	Players        map[string]*Player `json:"players"`
	DepartedScores map[string]int     `json:"departed_scores,omitempty"`
	Round          RoundState         `json:"round"`
	Question       *Question          `json:"question,omitempty"`
	FinalScores    map[string]int     `json:"final_scores,omitempty"`
}

// NewSession returns an empty session waiting for players.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:      id,
		Players: make(map[string]*Player),
		Round: RoundState{
			Phase:             PhaseWaiting,
			PhaseStartedAt:    now,
			AnsweredPlayerIDs: make(map[string]bool),
		},
	}
}

// Normalize fills nil maps, which happens after decoding a stored session.
func (s *Session) Normalize() {
	if s.Players == nil {
		s.Players = make(map[string]*Player)
	}
	if s.Round.AnsweredPlayerIDs == nil {
		s.Round.AnsweredPlayerIDs = make(map[string]bool)
	}
	if s.Round.Phase == "" {
		s.Round.Phase = PhaseWaiting
	}
}

// ConnectedCount returns the number of connected players.
func (s *Session) ConnectedCount() int {
	return len(s.Players)
}

// PlayerIDs returns connected player ids in sorted order.
func (s *Session) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AnsweredIDs returns the connected players who answered, sorted.
func (s *Session) AnsweredIDs() []string {
	ids := make([]string, 0, len(s.Round.AnsweredPlayerIDs))
	for id := range s.Round.AnsweredPlayerIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PendingIDs returns the connected players still to answer, sorted.
func (s *Session) PendingIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for _, id := range s.PlayerIDs() {
		if !s.Round.HasAnswered(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// AllAnswered is true when there is at least one connected player and every
// connected player has answered the current question.
func (s *Session) AllAnswered() bool {
	if len(s.Players) == 0 {
		return false
	}
	for id := range s.Players {
		if !s.Round.HasAnswered(id) {
			return false
		}
	}
	return true
}

// Scores returns connected player scores plus any retained departed scores.
func (s *Session) Scores() map[string]int {
	scores := make(map[string]int, len(s.Players)+len(s.DepartedScores))
	for id, score := range s.DepartedScores {
		scores[id] = score
	}
	for id, p := range s.Players {
		scores[id] = p.Score
	}
	return scores
}

// Clone returns a deep copy so callers can read without holding a lock.
func (s *Session) Clone() *Session {
	c := *s
	c.Players = make(map[string]*Player, len(s.Players))
	for id, p := range s.Players {
		cp := *p
		c.Players[id] = &cp
	}
	c.DepartedScores = copyScores(s.DepartedScores)
	c.FinalScores = copyScores(s.FinalScores)
	c.Round.AnsweredPlayerIDs = make(map[string]bool, len(s.Round.AnsweredPlayerIDs))
	for id, v := range s.Round.AnsweredPlayerIDs {
		c.Round.AnsweredPlayerIDs[id] = v
	}
	if s.Question != nil {
		q := *s.Question
		q.Options = append([]string(nil), s.Question.Options...)
		c.Question = &q
	}
	return &c
}

func copyScores(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
