package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/game-companion/scoreboard/internal/config"
	"github.com/game-companion/scoreboard/internal/ledger"
	"github.com/game-companion/scoreboard/internal/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "scores.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 100, IncludeGamesPlayed: true}
	h := NewHandler(ledger.New(store, cfg, logger), nil, logger)

	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func postScore(t *testing.T, srv *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := http.Post(srv.URL+"/api/score", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, srv *httptest.Server, path string, target any) *http.Response {
	t.Helper()

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
	return resp
}

func TestSaveScoreMessages(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postScore(t, srv, `{"user_id": 1, "username": "alice", "score": 10}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "First score saved!", body["message"])

	_, body = postScore(t, srv, `{"user_id": 1, "score": 5}`)
	assert.Equal(t, "Score updated (not a high score)", body["message"])

	_, body = postScore(t, srv, `{"user_id": 1, "score": 20}`)
	assert.Equal(t, "New high score saved!", body["message"])
}

func TestSaveScoreBadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "No data provided"},
		{"malformed json", "{not json", "No data provided"},
		{"missing score", `{"user_id": 1}`, "Missing user_id or score"},
		{"missing user_id", `{"score": 10}`, "Missing user_id or score"},
		{"zero user_id", `{"user_id": 0, "score": 10}`, "Missing user_id or score"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := postScore(t, srv, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
		})
	}

	// Zero is a valid score, distinct from a missing one
	resp, body := postScore(t, srv, `{"user_id": 2, "score": 0}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "First score saved!", body["message"])
}

func TestScorePreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/score", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/leaderboard", "/health"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"), path)
		assert.Equal(t, "Content-Type, Authorization", resp.Header.Get("Access-Control-Allow-Headers"), path)
	}
}

func TestGetLeaderboard(t *testing.T) {
	srv := newTestServer(t)

	// Empty table serves an empty array, not null
	var entries []map[string]any
	resp := getJSON(t, srv, "/api/leaderboard", &entries)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	postScore(t, srv, `{"user_id": 1, "first_name": "Alice", "score": 50}`)
	postScore(t, srv, `{"user_id": 2, "username": "bob", "score": 70}`)
	postScore(t, srv, `{"user_id": 3, "score": 30}`)

	resp = getJSON(t, srv, "/api/leaderboard", &entries)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, entries, 3)

	assert.Equal(t, float64(1), entries[0]["rank"])
	assert.Equal(t, "bob", entries[0]["name"])
	assert.Equal(t, float64(70), entries[0]["score"])
	assert.Equal(t, float64(1), entries[0]["games_played"])

	assert.Equal(t, "Alice", entries[1]["name"])
	assert.Equal(t, "Player 3", entries[2]["name"])

	// Limit trims the view
	getJSON(t, srv, "/api/leaderboard?limit=2", &entries)
	assert.Len(t, entries, 2)
}

func TestGetUserStats(t *testing.T) {
	srv := newTestServer(t)

	postScore(t, srv, `{"user_id": 1, "score": 50}`)
	postScore(t, srv, `{"user_id": 1, "score": 30}`)
	postScore(t, srv, `{"user_id": 2, "score": 70}`)

	var stats map[string]any
	resp := getJSON(t, srv, "/api/user_stats/1", &stats)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(50), stats["score"])
	assert.Equal(t, float64(2), stats["games_played"])
	assert.Equal(t, float64(2), stats["rank"])
	assert.Equal(t, float64(2), stats["total_players"])

	var body map[string]any
	resp = getJSON(t, srv, "/api/user_stats/999", &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", body["error"])

	resp = getJSON(t, srv, "/api/user_stats/not-a-number", &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, srv, "/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp = getJSON(t, srv, "/ready", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])
}
