package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestStatusPage(t *testing.T) {
	cfg := testConfig()
	cfg.Env.InstanceID = "NONE"
	srv := newTestServer(t, cfg)
	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Instance ID => NONE", body)

	cfg.Env.InstanceID = "3"
	srv = newTestServer(t, cfg)
	_, body = get(t, srv.URL+"/")
	assert.Equal(t, "Instance ID => 3", body)

	resp, _ = get(t, srv.URL+"/nowhere")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthzAndPlayground(t *testing.T) {
	srv := newTestServer(t, testConfig())
	_, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, "ok", body)

	resp, body := get(t, srv.URL+"/playground/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "crossroads playground")
}

func TestMonitorRoutes(t *testing.T) {
	srv := newTestServer(t, testConfig())
	_, body := get(t, srv.URL+"/colyseus/api/rooms")
	assert.JSONEq(t, `[]`, body)

	a := dial(t, srv.wsURL("room=watched"))
	readKind(t, a, KindPlayerID)
	sendFrame(t, a, KindTileTaken, map[string]any{"id": 1, "xx": 2, "yy": 3})
	readKind(t, a, KindCurrentTiles)

	_, body = get(t, srv.URL+"/colyseus/api/rooms")
	var rooms []RoomSummary
	require.NoError(t, json.Unmarshal([]byte(body), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, "watched", rooms[0].RoomID)
	assert.Equal(t, 1, rooms[0].Clients)
	assert.Equal(t, []PlayerID{2, 3, 4}, rooms[0].AvailableIDs)

	resp, body := get(t, srv.URL+"/colyseus/api/rooms/watched")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail RoomDetail
	require.NoError(t, json.Unmarshal([]byte(body), &detail))
	require.Len(t, detail.Members, 1)
	assert.Equal(t, PlayerID(1), detail.Members[0].PlayerID)
	assert.Equal(t, []Tile{{X: 2, Y: 3}}, detail.Tiles.Ownerships["1"])
	assert.Empty(t, detail.Violations)

	resp, _ = get(t, srv.URL+"/colyseus/api/rooms/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminConfigAndMetrics(t *testing.T) {
	srv := newTestServer(t, testConfig())
	resp, _ := get(t, srv.URL+"/admin/config?room=tuned")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	a := dial(t, srv.wsURL("room=tuned"))
	// state 在计数之后发送
	readKind(t, a, KindState)

	_, body := get(t, srv.URL+"/admin/config?room=tuned")
	var tuning RoomTuning
	require.NoError(t, json.Unmarshal([]byte(body), &tuning))
	assert.Equal(t, 10, tuning.PatchIntervalMs)

	post, err := http.Post(srv.URL+"/admin/config?room=tuned", "application/json",
		bytes.NewReader([]byte(`{"patchIntervalMs":200,"messageBurst":5}`)))
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusOK, post.StatusCode)

	r, ok := srv.rooms.Room("tuned")
	require.True(t, ok)
	assert.Equal(t, 200, r.Tuning().PatchIntervalMs)
	assert.Equal(t, 5, r.Tuning().MessageBurst)
	assert.Equal(t, 60.0, r.Tuning().MessagesPerSecond)

	bad, err := http.Post(srv.URL+"/admin/config?room=tuned", "application/json",
		bytes.NewReader([]byte(`{"patchIntervalMs":0}`)))
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	_, body = get(t, srv.URL+"/metrics?room=tuned")
	var metrics struct {
		Room    string         `json:"room"`
		Metrics map[string]any `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &metrics))
	assert.Equal(t, "tuned", metrics.Room)
	assert.EqualValues(t, 1, metrics.Metrics["joins"])
}
