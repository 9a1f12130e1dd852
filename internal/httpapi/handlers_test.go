package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hexdraft/draft-server/internal/catalog"
	"github.com/hexdraft/draft-server/internal/registry"
	"github.com/hexdraft/draft-server/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := registry.New(ctx, registry.Options{
		Clock:   clockwork.NewFakeClock(),
		Catalog: catalog.NewStatic(catalog.Item{ID: "1", Name: "Abrams"}),
		Logger:  zap.NewNop(),
	})
	api := &API{Registry: reg, Logger: zap.NewNop()}
	srv := httptest.NewServer(SetupRoutes(api))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) (*http.Response, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createRoom(t *testing.T, srv *httptest.Server, body any) types.CreateRoomResponse {
	t.Helper()
	resp, raw := postJSON(t, srv.URL+"/api/v1/rooms", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body: %s", raw)

	var created types.CreateRoomResponse
	require.NoError(t, json.Unmarshal(raw, &created))
	return created
}

func errCode(t *testing.T, raw []byte) string {
	t.Helper()
	var er types.ErrorResponse
	require.NoError(t, json.Unmarshal(raw, &er))
	return er.Error.Code
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateRoom_DefaultsAndTokens(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv, map[string]any{})

	assert.Len(t, created.RoomID, 8)
	assert.Len(t, created.Tokens.Blue, 12)
	assert.NotEqual(t, created.Tokens.Blue, created.Tokens.Red)
	assert.NotEqual(t, created.Tokens.Red, created.Tokens.Observer)

	assert.Contains(t, created.Links.Observer, created.RoomID)
	assert.Contains(t, created.Links.Observer, created.Tokens.Observer)
}

func TestCreateRoom_InvalidConfig(t *testing.T) {
	srv := newTestServer(t)
	resp, raw := postJSON(t, srv.URL+"/api/v1/rooms", map[string]any{"bans": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_config", errCode(t, raw))

	// An absurd count is rejected before any sequence is allocated.
	resp, raw = postJSON(t, srv.URL+"/api/v1/rooms", map[string]any{"bans": 1_000_000_000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_config", errCode(t, raw))
}

func TestReady_UnknownRoom(t *testing.T) {
	srv := newTestServer(t)
	resp, raw := postJSON(t, srv.URL+"/api/v1/rooms/nope1234/ready", map[string]any{"token": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "room_not_found", errCode(t, raw))
}

func TestReady_BadToken(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv, map[string]any{})

	resp, raw := postJSON(t, roomURL(srv, created.RoomID, "ready"), map[string]any{"token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", errCode(t, raw))
}

func TestReady_ObserverForbidden(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv, map[string]any{})

	resp, raw := postJSON(t, roomURL(srv, created.RoomID, "ready"),
		map[string]any{"token": created.Tokens.Observer})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errCode(t, raw))
}

func TestStart_TeamForbidden(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv, map[string]any{})

	resp, raw := postJSON(t, roomURL(srv, created.RoomID, "start"),
		map[string]any{"token": created.Tokens.Blue})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", errCode(t, raw))
}

func TestDraftFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv, map[string]any{})
	id := created.RoomID

	// Name one team while waiting.
	resp, raw := postJSON(t, roomURL(srv, id, "team-name"),
		map[string]any{"token": created.Tokens.Blue, "name": "Ambar"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	// Both sides ready up; the second ready starts the draft.
	for _, token := range []string{created.Tokens.Blue, created.Tokens.Red} {
		resp, raw = postJSON(t, roomURL(srv, id, "ready"), map[string]any{"token": token})
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)
	}

	// Renaming after start is rejected.
	resp, raw = postJSON(t, roomURL(srv, id, "team-name"),
		map[string]any{"token": created.Tokens.Blue, "name": "late"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_started", errCode(t, raw))

	// Blue opens with a ban.
	resp, raw = postJSON(t, roomURL(srv, id, "action"),
		map[string]any{"token": created.Tokens.Blue, "itemId": "7", "itemName": "Seven"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	// Blue acting again is out of turn.
	resp, raw = postJSON(t, roomURL(srv, id, "action"),
		map[string]any{"token": created.Tokens.Blue, "itemId": "8"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "wrong_turn", errCode(t, raw))

	// Red reusing blue's item is a duplicate.
	resp, raw = postJSON(t, roomURL(srv, id, "action"),
		map[string]any{"token": created.Tokens.Red, "itemId": "7"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_item", errCode(t, raw))

	// Observer forcing a start on a running draft conflicts.
	resp, raw = postJSON(t, roomURL(srv, id, "start"),
		map[string]any{"token": created.Tokens.Observer})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_started", errCode(t, raw))
}

func TestObserverStart_SkipsReadyGate(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv, map[string]any{})

	resp, raw := postJSON(t, roomURL(srv, created.RoomID, "start"),
		map[string]any{"token": created.Tokens.Observer})
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", raw)

	// Draft is live: readying up now is too late.
	resp, raw = postJSON(t, roomURL(srv, created.RoomID, "ready"),
		map[string]any{"token": created.Tokens.Blue})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_started", errCode(t, raw))
}

func roomURL(srv *httptest.Server, id, op string) string {
	return fmt.Sprintf("%s/api/v1/rooms/%s/%s", srv.URL, id, op)
}
