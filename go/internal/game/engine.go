package game

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colortap/go/internal/events"
	"github.com/mcdev12/colortap/go/internal/models"
)

const (
	// AnonymousPlayerID is the reserved id internal pollers use.
	AnonymousPlayerID = "heartbeat"

	maxPlayerIDLength = 64
)

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Engine is the session facade the transport layer calls. Every mutating
// operation runs membership, scoring and the round machine inside a single
// Store.Update so they observe one consistent session.
type Engine struct {
	store      Store
	clock      Clock
	settings   models.Settings
	membership MembershipTracker
	scoring    ScoringEngine
	machine    *RoundStateMachine
	publisher  events.Publisher
	instanceID string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithPublisher sends committed events to p.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithQuestionGenerator replaces the random question source.
func WithQuestionGenerator(g *QuestionGenerator) Option {
	return func(e *Engine) { e.machine = NewRoundStateMachine(e.settings, g) }
}

// WithInstanceID sets the id reported in stats.
func WithInstanceID(id string) Option {
	return func(e *Engine) { e.instanceID = id }
}

// NewEngine creates an engine over store.
func NewEngine(store Store, settings models.Settings, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		clock:      clockwork.NewRealClock(),
		settings:   settings,
		membership: NewMembershipTracker(settings),
		scoring:    NewScoringEngine(settings),
		machine:    NewRoundStateMachine(settings, NewQuestionGenerator()),
		publisher:  events.NopPublisher{},
		instanceID: uuid.New().String()[:8],
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the game settings the engine runs with.
func (e *Engine) Settings() models.Settings {
	return e.settings
}

// JoinResult is returned by Join.
type JoinResult struct {
	PlayerID        string `json:"player_id"`
	PlayerCount     int    `json:"player_count"`
	RequiredPlayers int    `json:"required_players"`
	Status          string `json:"status"`
}

// Join adds a player to the session, resetting a finished game first.
func (e *Engine) Join(ctx context.Context, playerID string) (*JoinResult, error) {
	playerID, err := normalizePlayerID(playerID)
	if err != nil {
		return nil, err
	}

	var view string
	s, err := e.update(ctx, func(s *models.Session, now time.Time, rec *recorder) error {
		e.sweep(s, now, rec)
		out := e.membership.Join(s, playerID, now)
		if out.Reset {
			rec.add(events.SessionReset, events.SessionResetPayload{Reason: "join_after_finish"})
		}
		if out.Added {
			rec.add(events.PlayerJoined, events.PlayerJoinedPayload{
				PlayerID:    playerID,
				PlayerCount: s.ConnectedCount(),
			})
		}
		e.evaluate(s, now, rec)
		view = BuildStatus(s, e.settings, playerID, now).View
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &JoinResult{
		PlayerID:        playerID,
		PlayerCount:     s.ConnectedCount(),
		RequiredPlayers: e.settings.RequiredPlayers,
		Status:          view,
	}, nil
}

// Status records a heartbeat for playerID, advances the round if due, and
// returns the caller's view. An empty playerID polls anonymously.
func (e *Engine) Status(ctx context.Context, playerID string) (*Status, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == AnonymousPlayerID {
		playerID = ""
	}

	var st *Status
	_, err := e.update(ctx, func(s *models.Session, now time.Time, rec *recorder) error {
		if playerID != "" {
			e.membership.RecordHeartbeat(s, playerID, now)
		}
		e.sweep(s, now, rec)
		e.evaluate(s, now, rec)
		st = BuildStatus(s, e.settings, playerID, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Question returns the live question. It does not advance the round.
func (e *Engine) Question(ctx context.Context) (*QuestionView, error) {
	s, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return BuildQuestionView(s, e.settings, e.clock.Now())
}

// SubmitAnswer scores one answer. Rejections are reported through the
// result status; only unknown players and store failures are errors.
func (e *Engine) SubmitAnswer(ctx context.Context, sub Submission) (*AnswerResult, error) {
	playerID, err := normalizePlayerID(sub.PlayerID)
	if err != nil {
		return nil, err
	}
	sub.PlayerID = playerID

	var result AnswerResult
	_, err = e.update(ctx, func(s *models.Session, now time.Time, rec *recorder) error {
		e.membership.RecordHeartbeat(s, sub.PlayerID, now)
		e.evaluate(s, now, rec)

		res, err := e.scoring.Submit(s, sub, now)
		if err != nil {
			return err
		}
		result = res
		rec.add(events.AnswerSubmitted, events.AnswerSubmittedPayload{
			PlayerID:     sub.PlayerID,
			QuestionID:   sub.QuestionID,
			Status:       string(res.Status),
			PointsEarned: res.PointsEarned,
			FirstCorrect: res.FirstCorrect,
			NewScore:     res.NewScore,
		})

		e.evaluate(s, now, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("player_id", sub.PlayerID).
		Int64("question_id", sub.QuestionID).
		Str("status", string(result.Status)).
		Int("points_earned", result.PointsEarned).
		Int("new_score", result.NewScore).
		Msg("answer submitted")

	return &result, nil
}

// Reset returns the session to the lobby with zeroed scores.
func (e *Engine) Reset(ctx context.Context) error {
	_, err := e.update(ctx, func(s *models.Session, now time.Time, rec *recorder) error {
		ResetSession(s, now)
		rec.add(events.SessionReset, events.SessionResetPayload{Reason: "manual"})
		return nil
	})
	return err
}

// Sweep evicts timed-out players and applies any transition that is due.
func (e *Engine) Sweep(ctx context.Context) (SweepOutcome, error) {
	var out SweepOutcome
	_, err := e.update(ctx, func(s *models.Session, now time.Time, rec *recorder) error {
		out = e.sweep(s, now, rec)
		e.evaluate(s, now, rec)
		return nil
	})
	return out, err
}

// Snapshot returns a copy of the stored session.
func (e *Engine) Snapshot(ctx context.Context) (*models.Session, error) {
	s, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

// Stats describes this backend for operators and the router.
type Stats struct {
	InstanceID  string       `json:"instance_id"`
	SessionID   string       `json:"session_id"`
	StoreMode   string       `json:"store_mode"`
	Degraded    bool         `json:"degraded"`
	Phase       models.Phase `json:"phase"`
	PlayerCount int          `json:"player_count"`
	Generation  int64        `json:"generation"`
}

// Stats reads the session without modifying it.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	s, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	mode := e.store.Mode()
	return &Stats{
		InstanceID:  e.instanceID,
		SessionID:   s.ID,
		StoreMode:   mode,
		Degraded:    mode == StoreModeFallback,
		Phase:       s.Round.Phase,
		PlayerCount: s.ConnectedCount(),
		Generation:  s.Generation,
	}, nil
}

func (e *Engine) sweep(s *models.Session, now time.Time, rec *recorder) SweepOutcome {
	scores := s.Scores()
	out := e.membership.Sweep(s, now)
	for _, id := range out.Removed {
		rec.add(events.PlayerLeft, events.PlayerLeftPayload{
			PlayerID:    id,
			Score:       scores[id],
			PlayerCount: s.ConnectedCount(),
		})
	}
	if out.Reset {
		rec.add(events.SessionReset, events.SessionResetPayload{Reason: "no_players"})
	}
	return out
}

func (e *Engine) evaluate(s *models.Session, now time.Time, rec *recorder) {
	for _, t := range e.machine.Evaluate(s, now) {
		payload := events.PhaseChangedPayload{
			From:           string(t.From),
			To:             string(t.To),
			QuestionNumber: t.QuestionNumber,
			QuestionID:     t.QuestionID,
		}
		if t.To == models.PhaseFinished {
			payload.FinalScores = s.FinalScores
		}
		rec.add(events.PhaseChanged, payload)
	}
}

// update runs fn through the store. Events recorded by the attempt that
// commits are logged and published once the commit succeeds.
func (e *Engine) update(ctx context.Context, fn func(s *models.Session, now time.Time, rec *recorder) error) (*models.Session, error) {
	var rec *recorder
	s, err := e.store.Update(ctx, func(s *models.Session) error {
		now := e.clock.Now()
		rec = &recorder{sessionID: s.ID, at: now}
		return fn(s, now, rec)
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range rec.events {
		logEvent(ev)
		if err := e.publisher.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("failed to publish event")
		}
	}
	return s, nil
}

type recorder struct {
	sessionID string
	at        time.Time
	events    []events.Event
}

func (r *recorder) add(t events.Type, payload any) {
	r.events = append(r.events, events.Event{
		Type:      t,
		SessionID: r.sessionID,
		At:        r.at,
		Payload:   payload,
	})
}

func logEvent(ev events.Event) {
	switch p := ev.Payload.(type) {
	case events.PhaseChangedPayload:
		log.Info().
			Str("from", p.From).
			Str("to", p.To).
			Int("question_number", p.QuestionNumber).
			Int64("question_id", p.QuestionID).
			Msg("phase changed")
	case events.PlayerJoinedPayload:
		log.Info().Str("player_id", p.PlayerID).Int("player_count", p.PlayerCount).Msg("player joined")
	case events.PlayerLeftPayload:
		log.Info().Str("player_id", p.PlayerID).Int("player_count", p.PlayerCount).Msg("player timed out")
	case events.SessionResetPayload:
		log.Info().Str("reason", p.Reason).Msg("session reset")
	}
}

func normalizePlayerID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || id == AnonymousPlayerID || len(id) > maxPlayerIDLength {
		return "", ErrInvalidPlayerID
	}
	return id, nil
}
