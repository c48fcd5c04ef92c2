package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/colortap/go/internal/game"
	"github.com/mcdev12/colortap/go/internal/models"
)

type testServer struct {
	handler http.Handler
	h       *Handler
	clock   *clockwork.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := game.NewEngine(
		game.NewMemoryStore("default", clock.Now()),
		models.DefaultSettings(),
		game.WithClock(clock),
		game.WithQuestionGenerator(game.NewSeededQuestionGenerator(3)),
	)
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	cfg.Stream.Interval = 20 * time.Millisecond
	h := NewHandler(engine, nil, cfg)
	return &testServer{handler: h.Routes(), h: h, clock: clock}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHandler_Join(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/join", map[string]string{"player_username": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[game.JoinResult](t, rec)
	assert.Equal(t, "alice", res.PlayerID)
	assert.Equal(t, 1, res.PlayerCount)
	assert.Equal(t, 2, res.RequiredPlayers)

	rec = ts.do(t, http.MethodPost, "/join", map[string]string{"player_id": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.ViewCountdown, decode[game.JoinResult](t, rec).Status)
}

func TestHandler_ValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"join without id", http.MethodPost, "/join", `{}`, http.StatusBadRequest},
		{"join bad json", http.MethodPost, "/join", `{"player_id":`, http.StatusBadRequest},
		{"answer without answer", http.MethodPost, "/answer", `{"player_id":"a","question_id":1}`, http.StatusBadRequest},
		{"answer unknown player", http.MethodPost, "/answer", `{"player_id":"ghost","question_id":1,"answer":"RED"}`, http.StatusBadRequest},
		{"question outside play", http.MethodGet, "/question", ``, http.StatusBadRequest},
		{"unknown route", http.MethodGet, "/nope", ``, http.StatusNotFound},
		{"wrong method", http.MethodGet, "/join", ``, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, decode[map[string]string](t, rec), "error")
		})
	}
}

func TestHandler_GameFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/join", map[string]string{"player_id": "a"})
	ts.do(t, http.MethodPost, "/join", map[string]string{"player_id": "b"})

	ts.clock.Advance(3 * time.Second)
	rec := ts.do(t, http.MethodGet, "/status?player_id=a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[map[string]any](t, rec)
	assert.Equal(t, "playing", st["status"])
	assert.Equal(t, float64(1), st["current_question_number"])

	rec = ts.do(t, http.MethodGet, "/question", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[game.QuestionView](t, rec)
	assert.Len(t, q.Options, 5)
	assert.Equal(t, 1, q.QuestionNumber)

	ts.clock.Advance(4 * time.Second)
	rec = ts.do(t, http.MethodPost, "/answer", game.Submission{PlayerID: "a", QuestionID: q.ID, Answer: q.CorrectAnswer})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[game.AnswerResult](t, rec)
	assert.Equal(t, game.AnswerCorrect, res.Status)
	assert.Equal(t, 110, res.NewScore)

	rec = ts.do(t, http.MethodPost, "/answer", game.Submission{PlayerID: "a", QuestionID: q.ID, Answer: q.CorrectAnswer})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, game.AnswerAlreadyAnswered, decode[game.AnswerResult](t, rec).Status)

	rec = ts.do(t, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reset", decode[map[string]string](t, rec)["status"])
}

func TestHandler_AnonymousStatus(t *testing.T) {
	ts := newTestServer(t)
	for _, target := range []string{"/status", "/status?player_id=heartbeat"} {
		rec := ts.do(t, http.MethodGet, target, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		st := decode[game.Status](t, rec)
		assert.Equal(t, game.ViewWaiting, st.View)
		assert.Equal(t, 2, st.PlayersNeeded)
	}
}

func TestHandler_StatsAndHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/join", map[string]string{"player_id": "a"})

	rec := ts.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), stats["player_count"])
	assert.Equal(t, float64(1), stats["load_score"])
	assert.Equal(t, "memory", stats["store_mode"])
	assert.Equal(t, true, stats["healthy"])
	assert.NotEmpty(t, stats["instance_id"])

	rec = ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 1)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1001"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000"))
}

func TestConnectionTracker(t *testing.T) {
	var tr ConnectionTracker
	tr.ConnState(nil, http.StateNew)
	tr.ConnState(nil, http.StateNew)
	tr.ConnState(nil, http.StateActive)
	assert.Equal(t, 2, tr.Active())

	tr.ConnState(nil, http.StateHijacked)
	tr.streamOpened()
	assert.Equal(t, 2, tr.Active())
	assert.Equal(t, 1, tr.Streams())

	tr.streamClosed()
	tr.ConnState(nil, http.StateClosed)
	assert.Equal(t, 0, tr.Active())
}

func TestHandler_WebsocketStream(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/join", map[string]string{"player_id": "a"})

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?player_id=a"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var st game.Status
		require.NoError(t, conn.ReadJSON(&st))
		assert.Equal(t, game.ViewWaiting, st.View)
		assert.Equal(t, 1, st.PlayerCount)
	}

	ts.h.CloseStreams()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
			break
		}
	}
}
