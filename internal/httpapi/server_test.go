package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kottz/spektrum-sub000/internal/catalog"
	"github.com/kottz/spektrum-sub000/internal/config"
	"github.com/kottz/spektrum-sub000/internal/ident"
	"github.com/kottz/spektrum-sub000/internal/metrics"
	"github.com/kottz/spektrum-sub000/internal/playback"
	"github.com/kottz/spektrum-sub000/internal/registry"
)

func intPtr(v int) *int { return &v }

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.FromStored(catalog.StoredData{
		Media: []catalog.Media{{ID: 1, Title: "Track", Artist: "Artist", ReleaseYear: intPtr(1990)}},
		Questions: []catalog.StoredQuestion{
			{ID: 1, MediaID: 1, Type: catalog.QuestionTypeColor, IsActive: true},
		},
		Options: []catalog.QuestionOption{
			{ID: 1, QuestionID: 1, Text: "Blue", IsCorrect: true},
		},
		Sets: []catalog.QuestionSet{{ID: 1, Name: "starter", QuestionIDs: []int{1}}},
	})
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newTestServerWithPlayback(t, playback.Noop{})
}

func newTestServerWithPlayback(t *testing.T, pb playback.Notifier) *httptest.Server {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		Server: config.ServerConfig{
			CORSOrigins: []string{"*"},
			GinMode:     "test",
		},
		Lobby: config.LobbyConfig{SessionBuffer: 16},
	}

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	cat := testCatalog(t)
	reg := registry.New(cat, ident.SystemClock{}, log, m)

	srv := httptest.NewServer(New(cfg, log, cat, reg, m, promReg, pb).Router())
	t.Cleanup(srv.Close)
	return srv
}

func createLobby(t *testing.T, srv *httptest.Server, body string) CreateLobbyResponse {
	t.Helper()

	resp, err := http.Post(srv.URL+"/api/lobbies", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var created CreateLobbyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQuestionSets(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/question-sets")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		QuestionSets []string `json:"question_sets"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"starter"}, body.QuestionSets)
}

func TestCreateLobby(t *testing.T) {
	srv := newTestServer(t)

	created := createLobby(t, srv, `{"round_duration": 30}`)
	assert.NotEmpty(t, created.LobbyID)
	assert.NotEmpty(t, created.AdminID)
	assert.Len(t, created.JoinCode, 6)
}

func TestCreateLobbyEmptyBodyUsesDefaults(t *testing.T) {
	srv := newTestServer(t)

	created := createLobby(t, srv, "")
	assert.NotEmpty(t, created.JoinCode)
}

func TestCreateLobbyRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"negative duration", `{"round_duration": -5}`},
		{"below minimum duration", `{"round_duration": 3}`},
		{"unknown question set", `{"question_set": "missing"}`},
		{"malformed json", `{"round_duration":`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/lobbies", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	require.NoError(t, json.Unmarshal(frame["type"], &typ))
	return typ
}

func TestWebSocketJoinAndStartGame(t *testing.T) {
	srv := newTestServer(t)
	created := createLobby(t, srv, "{}")

	admin := dialWS(t, srv)
	sendFrame(t, admin, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","admin_id":"`+created.AdminID+`","name":"Host"}`)
	joined := readFrame(t, admin)
	require.Equal(t, "JoinedLobby", frameType(t, joined))

	var adminPlayerID string
	require.NoError(t, json.Unmarshal(joined["player_id"], &adminPlayerID))
	assert.Equal(t, created.AdminID, adminPlayerID)

	player := dialWS(t, srv)
	sendFrame(t, player, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","name":"Alice"}`)
	require.Equal(t, "JoinedLobby", frameType(t, readFrame(t, player)))

	sendFrame(t, admin, `{"type":"AdminAction","lobby_id":"`+created.LobbyID+`","action":{"type":"StartGame"}}`)

	for _, conn := range []*websocket.Conn{admin, player} {
		frame := readFrame(t, conn)
		require.Equal(t, "StateChanged", frameType(t, frame))
		var phase string
		require.NoError(t, json.Unmarshal(frame["phase"], &phase))
		assert.Equal(t, "score", phase)
	}
}

func TestWebSocketReconnectAfterConnectionLoss(t *testing.T) {
	srv := newTestServer(t)
	created := createLobby(t, srv, "{}")

	admin := dialWS(t, srv)
	sendFrame(t, admin, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","admin_id":"`+created.AdminID+`","name":"Host"}`)
	require.Equal(t, "JoinedLobby", frameType(t, readFrame(t, admin)))

	player := dialWS(t, srv)
	sendFrame(t, player, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","name":"Alice"}`)
	joined := readFrame(t, player)
	require.Equal(t, "JoinedLobby", frameType(t, joined))
	var playerID string
	require.NoError(t, json.Unmarshal(joined["player_id"], &playerID))

	sendFrame(t, admin, `{"type":"AdminAction","lobby_id":"`+created.LobbyID+`","action":{"type":"StartGame"}}`)
	require.Equal(t, "StateChanged", frameType(t, readFrame(t, player)))

	sendFrame(t, admin, `{"type":"AdminAction","lobby_id":"`+created.LobbyID+`","action":{"type":"StartRound"}}`)
	question := readFrame(t, player)
	require.Equal(t, "StateChanged", frameType(t, question))
	var frozen []string
	require.NoError(t, json.Unmarshal(question["alternatives"], &frozen))
	require.Len(t, frozen, 6)

	// The connection drops mid-question; a fresh session resumes the game.
	require.NoError(t, player.Close())
	resumed := dialWS(t, srv)
	sendFrame(t, resumed, `{"type":"Reconnect","lobby_id":"`+created.LobbyID+`","player_id":"`+playerID+`"}`)

	frame := readFrame(t, resumed)
	require.Equal(t, "ReconnectSuccess", frameType(t, frame))

	var state struct {
		Phase        string   `json:"phase"`
		Alternatives []string `json:"alternatives"`
	}
	require.NoError(t, json.Unmarshal(frame["game_state"], &state))
	assert.Equal(t, "question", state.Phase)
	assert.Equal(t, frozen, state.Alternatives)
}

// countingNotifier tallies playback calls across session goroutines.
type countingNotifier struct {
	started atomic.Int32
	stopped atomic.Int32
}

func (n *countingNotifier) RoundStarted(catalog.Media) { n.started.Add(1) }
func (n *countingNotifier) Stopped()                   { n.stopped.Add(1) }

func TestPlaybackOnlyFiresForAcceptedActions(t *testing.T) {
	pb := &countingNotifier{}
	srv := newTestServerWithPlayback(t, pb)
	created := createLobby(t, srv, "{}")

	player := dialWS(t, srv)
	sendFrame(t, player, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","name":"Alice"}`)
	require.Equal(t, "JoinedLobby", frameType(t, readFrame(t, player)))

	// A non-admin's privileged frame is rejected and must not reach the
	// music controller.
	sendFrame(t, player, `{"type":"AdminAction","lobby_id":"`+created.LobbyID+`","action":{"type":"CloseGame","reason":"nope"}}`)
	require.Equal(t, "Error", frameType(t, readFrame(t, player)))
	assert.Zero(t, pb.stopped.Load())
	assert.Zero(t, pb.started.Load())

	admin := dialWS(t, srv)
	sendFrame(t, admin, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","admin_id":"`+created.AdminID+`","name":"Host"}`)
	require.Equal(t, "JoinedLobby", frameType(t, readFrame(t, admin)))

	sendFrame(t, admin, `{"type":"AdminAction","lobby_id":"`+created.LobbyID+`","action":{"type":"CloseGame","reason":"done"}}`)
	require.Equal(t, "GameClosed", frameType(t, readFrame(t, admin)))
	require.Eventually(t, func() bool { return pb.stopped.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Zero(t, pb.started.Load())
}

func TestWebSocketCloseGameRemovesLobby(t *testing.T) {
	srv := newTestServer(t)
	created := createLobby(t, srv, "{}")

	admin := dialWS(t, srv)
	sendFrame(t, admin, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","admin_id":"`+created.AdminID+`","name":"Host"}`)
	require.Equal(t, "JoinedLobby", frameType(t, readFrame(t, admin)))

	sendFrame(t, admin, `{"type":"AdminAction","lobby_id":"`+created.LobbyID+`","action":{"type":"CloseGame","reason":"done"}}`)
	frame := readFrame(t, admin)
	require.Equal(t, "GameClosed", frameType(t, frame))
	var reason string
	require.NoError(t, json.Unmarshal(frame["reason"], &reason))
	assert.Equal(t, "done", reason)

	// Removal runs right after the close frame is queued; wait for it.
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var body struct {
			Lobbies int `json:"lobbies"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return false
		}
		return body.Lobbies == 0
	}, 5*time.Second, 10*time.Millisecond)

	// The join code no longer resolves.
	late := dialWS(t, srv)
	sendFrame(t, late, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","name":"Alice"}`)
	assert.Equal(t, "Error", frameType(t, readFrame(t, late)))
}

func TestWebSocketRejectsUnknownJoinCode(t *testing.T) {
	srv := newTestServer(t)

	conn := dialWS(t, srv)
	sendFrame(t, conn, `{"type":"JoinLobby","join_code":"000000","name":"Alice"}`)

	frame := readFrame(t, conn)
	assert.Equal(t, "Error", frameType(t, frame))
}

func TestWebSocketAdminActionFromPlayerRejected(t *testing.T) {
	srv := newTestServer(t)
	created := createLobby(t, srv, "{}")

	player := dialWS(t, srv)
	sendFrame(t, player, `{"type":"JoinLobby","join_code":"`+created.JoinCode+`","name":"Alice"}`)
	require.Equal(t, "JoinedLobby", frameType(t, readFrame(t, player)))

	sendFrame(t, player, `{"type":"AdminAction","lobby_id":"`+created.LobbyID+`","action":{"type":"StartGame"}}`)
	assert.Equal(t, "Error", frameType(t, readFrame(t, player)))
}
