package ws_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hexdraft/draft-server/internal/catalog"
	"github.com/hexdraft/draft-server/internal/engine"
	"github.com/hexdraft/draft-server/internal/httpapi"
	"github.com/hexdraft/draft-server/internal/registry"
	"github.com/hexdraft/draft-server/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := registry.New(ctx, registry.Options{
		Clock:   clockwork.NewFakeClock(),
		Catalog: catalog.NewStatic(),
		Logger:  zap.NewNop(),
	})
	api := &httpapi.API{Registry: reg, Logger: zap.NewNop()}
	srv := httptest.NewServer(httpapi.SetupRoutes(api))
	t.Cleanup(srv.Close)
	return srv
}

func createRoom(t *testing.T, srv *httptest.Server) types.CreateRoomResponse {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/v1/rooms", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create room: status %d", resp.StatusCode)
	}
	var created types.CreateRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created
}

func streamURL(srv *httptest.Server, roomID, token string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/rooms/" + roomID + "/stream?token=" + token
}

func readFrame(t *testing.T, conn *websocket.Conn) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var msg types.ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	return msg
}

func TestStreamFirstFrameCarriesRole(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, streamURL(srv, created.RoomID, created.Tokens.Blue), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg := readFrame(t, conn)
	if msg.Type != "state" {
		t.Fatalf("first frame type = %q, want state", msg.Type)
	}
	if msg.Role != engine.RoleBlue {
		t.Fatalf("first frame role = %q, want %q", msg.Role, engine.RoleBlue)
	}
	if msg.Version != 0 {
		t.Fatalf("first frame version = %d, want 0", msg.Version)
	}
	if msg.State == nil || msg.State.Phase != engine.PhaseWaiting {
		t.Fatalf("first frame state = %+v, want waiting phase", msg.State)
	}
}

func TestStreamBroadcastsMutations(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, streamURL(srv, created.RoomID, created.Tokens.Observer), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	first := readFrame(t, conn)
	if first.Role != engine.RoleObserver {
		t.Fatalf("first frame role = %q, want %q", first.Role, engine.RoleObserver)
	}

	// Blue readies up over REST; the stream should see it.
	payload, _ := json.Marshal(types.ReadyRequest{Token: created.Tokens.Blue})
	resp, err := http.Post(srv.URL+"/api/v1/rooms/"+created.RoomID+"/ready",
		"application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready: status %d", resp.StatusCode)
	}

	next := readFrame(t, conn)
	if next.Version != 1 {
		t.Fatalf("second frame version = %d, want 1", next.Version)
	}
	if next.Role != engine.RoleNone {
		t.Fatalf("second frame role = %q, want empty", next.Role)
	}
	if next.State == nil || !next.State.BlueReady {
		t.Fatalf("second frame state = %+v, want blueReady", next.State)
	}
}

func TestStreamServesMultipleViewersIndependently(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Each connection gets its own subscriber entry; neither may shadow
	// the other.
	conns := make([]*websocket.Conn, 2)
	for i, token := range []string{created.Tokens.Blue, created.Tokens.Red} {
		conn, _, err := websocket.Dial(ctx, streamURL(srv, created.RoomID, token), nil)
		if err != nil {
			t.Fatalf("dial viewer %d: %v", i, err)
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		conns[i] = conn
		_ = readFrame(t, conn)
	}

	payload, _ := json.Marshal(types.ReadyRequest{Token: created.Tokens.Blue})
	resp, err := http.Post(srv.URL+"/api/v1/rooms/"+created.RoomID+"/ready",
		"application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	resp.Body.Close()

	for i, conn := range conns {
		msg := readFrame(t, conn)
		if msg.Version != 1 || msg.State == nil || !msg.State.BlueReady {
			t.Fatalf("viewer %d missed the broadcast: %+v", i, msg)
		}
	}
}

func TestStreamRejectsUnknownRoomAndBadToken(t *testing.T) {
	srv := newTestServer(t)
	created := createRoom(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, _, err := websocket.Dial(ctx, streamURL(srv, "nope1234", created.Tokens.Blue), nil); err == nil {
		t.Fatal("dial to unknown room succeeded, want error")
	}
	if _, _, err := websocket.Dial(ctx, streamURL(srv, created.RoomID, "wrong"), nil); err == nil {
		t.Fatal("dial with bad token succeeded, want error")
	}
}
