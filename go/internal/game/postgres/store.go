package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/colortap/go/internal/game"
	"github.com/mcdev12/colortap/go/internal/models"
)

// ErrConflict is returned when an update keeps losing the generation race.
var ErrConflict = errors.New("session update conflict")

// DefaultMaxRetries bounds how often Update re-runs its closure.
const DefaultMaxRetries = 8

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS game_sessions (
			id         TEXT PRIMARY KEY,
			generation BIGINT NOT NULL DEFAULT 0,
			state      JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`

	insertSessionSQL = `
		INSERT INTO game_sessions (id, generation, state, updated_at)
		VALUES ($1, 0, $2::jsonb, now())
		ON CONFLICT (id) DO NOTHING`

	selectSessionSQL = `
		SELECT generation, state FROM game_sessions WHERE id = $1`

	updateSessionSQL = `
		UPDATE game_sessions
		SET generation = $1, state = $2::jsonb, updated_at = now()
		WHERE id = $3 AND generation = $4`
)

// Store keeps the session as one JSONB row shared by every backend process.
// Updates are optimistic: the row's generation must still match the one that
// was read, so exactly one of several racing processes commits a change such
// as advancing to the next question. Losers re-read and re-run their closure.
type Store struct {
	db         DB
	sessionID  string
	now        func() time.Time
	maxRetries int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRetries sets how many times Update re-runs after a lost race.
func WithMaxRetries(n int) Option {
	return func(s *Store) { s.maxRetries = n }
}

// WithNow sets the clock used to stamp a freshly created session.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store for sessionID.
func NewStore(db DB, sessionID string, opts ...Option) *Store {
	s := &Store{
		db:         db,
		sessionID:  sessionID,
		now:        time.Now,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ game.Store = (*Store)(nil)

// EnsureSchema creates the sessions table and the session row if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create game_sessions: %w", err)
	}
	return s.ensureRow(ctx)
}

func (s *Store) ensureRow(ctx context.Context) error {
	state, err := json.Marshal(models.NewSession(s.sessionID, s.now()))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if _, err := s.db.Exec(ctx, insertSessionSQL, s.sessionID, state); err != nil {
		return fmt.Errorf("insert session %s: %w", s.sessionID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (*models.Session, error) {
	sess, err := s.load(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := s.ensureRow(ctx); err != nil {
			return nil, err
		}
		sess, err = s.load(ctx)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) load(ctx context.Context) (*models.Session, error) {
	var (
		generation int64
		state      []byte
	)
	err := s.db.QueryRow(ctx, selectSessionSQL, s.sessionID).Scan(&generation, &state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("select session %s: %w", s.sessionID, err)
	}

	var sess models.Session
	if err := json.Unmarshal(state, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", s.sessionID, err)
	}
	sess.ID = s.sessionID
	sess.Generation = generation
	sess.Normalize()
	return &sess, nil
}

func (s *Store) Update(ctx context.Context, fn func(sess *models.Session) error) (*models.Session, error) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sess, err := s.Load(ctx)
		if err != nil {
			return nil, err
		}
		read := sess.Generation
		if err := fn(sess); err != nil {
			return nil, err
		}
		sess.Generation = read + 1

		state, err := json.Marshal(sess)
		if err != nil {
			return nil, fmt.Errorf("marshal session: %w", err)
		}
		tag, err := s.db.Exec(ctx, updateSessionSQL, sess.Generation, state, s.sessionID, read)
		if err != nil {
			return nil, fmt.Errorf("update session %s: %w", s.sessionID, err)
		}
		if tag.RowsAffected() == 1 {
			return sess, nil
		}

		log.Debug().
			Str("session_id", s.sessionID).
			Int64("generation", read).
			Int("attempt", attempt+1).
			Msg("lost session update race, retrying")
	}
	return nil, fmt.Errorf("session %s: %w", s.sessionID, ErrConflict)
}

func (s *Store) Mode() string {
	return game.StoreModePostgres
}
