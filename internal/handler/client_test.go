package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birdwatch/internal/logger"
)

func dialTestServer(t *testing.T, env *testEnv) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(AnalyzeWebsocketHandler(env.dispatcher, env.sessions, env.cfg, logger.NewDiscard()))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	return conn, srv
}

func roundTrip(t *testing.T, conn *websocket.Conn, message string) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(message)))

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestWebsocket_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dialTestServer(t, env)

	require.Eventually(t, func() bool { return env.sessions.ActiveConnections() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Invalid payload, then garbage: the connection must stay usable.
	bad := roundTrip(t, conn, `{"action":"save_capture","image":"not-an-image"}`)
	assert.Equal(t, "error", bad["status"])
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{{{")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"unknown"}`)))

	saved := roundTrip(t, conn, `{"action":"save_capture","image":"`+jpegBase64(t, testImage(16, 16))+`"}`)
	assert.Equal(t, "saved", saved["status"])

	analyzed := roundTrip(t, conn, `{"action":"analyze"}`)
	assert.Equal(t, float64(1), analyzed["count"])
	assert.NotEmpty(t, analyzed["annotated_filename"])

	stats := env.sessions.Stats()
	assert.Equal(t, 3, stats.Artifacts)

	entries, err := os.ReadDir(env.cfg.CaptureDirectory)
	require.NoError(t, err)
	var paths []string
	for _, e := range entries {
		paths = append(paths, filepath.Join(env.cfg.CaptureDirectory, e.Name()))
	}
	require.Len(t, paths, 3)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	require.Eventually(t, func() bool { return env.sessions.ActiveConnections() == 0 }, 2*time.Second, 10*time.Millisecond)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
}

func TestWebsocket_DeleteCapturesKeepsConnection(t *testing.T) {
	env := newTestEnv(t)
	conn, _ := dialTestServer(t, env)
	defer conn.Close()

	roundTrip(t, conn, `{"action":"save_capture","image":"`+jpegBase64(t, testImage(16, 16))+`"}`)

	deleted := roundTrip(t, conn, `{"action":"delete_captures"}`)
	assert.Equal(t, "deleted", deleted["status"])
	assert.Equal(t, float64(1), deleted["count"])

	again := roundTrip(t, conn, `{"action":"delete_captures"}`)
	assert.Equal(t, float64(0), again["count"])
	assert.Equal(t, 1, env.sessions.ActiveConnections())
}

func TestStatusHandler(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.Connect()

	rec := httptest.NewRecorder()
	StatusHandler(env.sessions, env.cfg)(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, float64(1), out["connections"])
	assert.Equal(t, float64(0), out["artifacts"])
	assert.Equal(t, env.cfg.CaptureDirectory, out["capture_dir"])
	assert.Equal(t, "ollama", out["provider"])
}
