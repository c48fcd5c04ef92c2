package models

import "time"

// Player represents a connected participant in the session
type Player struct {
	ID            string    `json:"id"`
	Score         int       `json:"score"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	JoinedAt      time.Time `json:"joined_at"`
}

// Seen reports whether the player has polled within timeout of now.
func (p *Player) Seen(now time.Time, timeout time.Duration) bool {
	return now.Sub(p.LastHeartbeat) <= timeout
}
