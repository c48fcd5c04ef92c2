package game

import (
	"sort"
	"time"

	"github.com/mcdev12/colortap/go/internal/models"
)

// MembershipTracker maintains the connected player set from heartbeats.
type MembershipTracker struct {
	settings models.Settings
}

// NewMembershipTracker creates a tracker for the given settings.
func NewMembershipTracker(settings models.Settings) MembershipTracker {
	return MembershipTracker{settings: settings}
}

// JoinOutcome describes what a join changed.
type JoinOutcome struct {
	Added bool
	Reset bool
}

// SweepOutcome lists the evicted players and whether the session was reset.
type SweepOutcome struct {
	Removed []string
	Reset   bool
}

// RecordHeartbeat refreshes a known player's last-seen time. Unknown ids are ignored.
func (m MembershipTracker) RecordHeartbeat(s *models.Session, playerID string, now time.Time) bool {
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	p.LastHeartbeat = now
	return true
}

// Join adds playerID to the session. A finished session is reset first.
// Joining twice only refreshes the heartbeat.
func (m MembershipTracker) Join(s *models.Session, playerID string, now time.Time) JoinOutcome {
	var out JoinOutcome
	if s.Round.Phase == models.PhaseFinished {
		ResetSession(s, now)
		out.Reset = true
	}

	if p, ok := s.Players[playerID]; ok {
		p.LastHeartbeat = now
		return out
	}

	score := 0
	if m.settings.RetainDepartedScores {
		score = s.DepartedScores[playerID]
		delete(s.DepartedScores, playerID)
	}
	s.Players[playerID] = &models.Player{
		ID:            playerID,
		Score:         score,
		LastHeartbeat: now,
		JoinedAt:      now,
	}
	out.Added = true
	return out
}

// Sweep evicts every player not seen within the heartbeat timeout. Evicted
// players stop counting towards "all answered". If nobody is left outside of
// the lobby the session restarts.
func (m MembershipTracker) Sweep(s *models.Session, now time.Time) SweepOutcome {
	var out SweepOutcome
	for id, p := range s.Players {
		if p.Seen(now, m.settings.HeartbeatTimeout) {
			continue
		}
		delete(s.Players, id)
		delete(s.Round.AnsweredPlayerIDs, id)
		if m.settings.RetainDepartedScores {
			if s.DepartedScores == nil {
				s.DepartedScores = make(map[string]int)
			}
			s.DepartedScores[id] = p.Score
		}
		out.Removed = append(out.Removed, id)
	}
	sort.Strings(out.Removed)

	if len(s.Players) == 0 && s.Round.Phase != models.PhaseWaiting {
		ResetSession(s, now)
		out.Reset = true
	}
	return out
}

// ResetSession returns the session to the lobby. Connected players stay with
// zero scores; the question id counter keeps counting so ids are never reused.
func ResetSession(s *models.Session, now time.Time) {
	for _, p := range s.Players {
		p.Score = 0
		p.LastHeartbeat = now
	}
	s.DepartedScores = nil
	s.FinalScores = nil
	s.Question = nil
	s.Round = models.RoundState{
		Phase:             models.PhaseWaiting,
		PhaseStartedAt:    now,
		QuestionIDCounter: s.Round.QuestionIDCounter,
		AnsweredPlayerIDs: make(map[string]bool),
	}
}
