package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hexdraft/draft-server/internal/engine"
	"github.com/hexdraft/draft-server/internal/registry"
	"github.com/hexdraft/draft-server/internal/room"
	"github.com/hexdraft/draft-server/pkg/types"
)

// errRoomClosed covers the window where a room was evicted between lookup
// and mutation; callers see it as a vanished room.
var errRoomClosed = errors.New("room closed")

type API struct {
	Registry *registry.Registry
	Logger   *zap.Logger

	// BaseURL overrides the scheme+host used in share links; when empty the
	// request's own host is used.
	BaseURL string
}

func (a *API) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req types.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	cfg := engine.DefaultConfig()
	if req.Bans != nil {
		cfg.BanCount = *req.Bans
	}
	if req.Picks != nil {
		cfg.PickCount = *req.Picks
	}
	if req.TimerSeconds != nil {
		cfg.TurnSeconds = *req.TimerSeconds
	}
	if req.ReserveSeconds != nil {
		cfg.ReserveSeconds = *req.ReserveSeconds
	}

	reply := make(chan registry.CreateReply, 1)
	a.Registry.Inbox() <- registry.CreateRoom{Config: cfg, Reply: reply}
	res := <-reply
	if res.Err != nil {
		writeEngineError(w, res.Err)
		return
	}

	rm := res.Room
	base := a.BaseURL
	if base == "" {
		base = requestBase(r)
	}
	link := func(token string) string {
		return fmt.Sprintf("%s/draft/view?room=%s&token=%s", base, rm.ID, token)
	}

	writeJSON(w, http.StatusCreated, types.CreateRoomResponse{
		RoomID: rm.ID,
		Tokens: types.RoomTokens{
			Blue:     rm.Tokens.Blue,
			Red:      rm.Tokens.Red,
			Observer: rm.Tokens.Observer,
		},
		Links: types.RoomLinks{
			Blue:     link(rm.Tokens.Blue),
			Red:      link(rm.Tokens.Red),
			Observer: link(rm.Tokens.Observer),
		},
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	var req types.ReadyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rm, role, ok := a.authRoom(w, r, req.Token)
	if !ok {
		return
	}
	side, isTeam := role.TeamSide()
	if !isTeam {
		writeError(w, http.StatusForbidden, "forbidden", "only teams can ready up")
		return
	}
	a.finish(w, rm, engine.Command{Type: engine.CmdMarkReady, Side: side})
}

func (a *API) Start(w http.ResponseWriter, r *http.Request) {
	var req types.StartRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rm, role, ok := a.authRoom(w, r, req.Token)
	if !ok {
		return
	}
	a.finish(w, rm, engine.Command{Type: engine.CmdStartDraft, Role: role})
}

func (a *API) Action(w http.ResponseWriter, r *http.Request) {
	var req types.ActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rm, role, ok := a.authRoom(w, r, req.Token)
	if !ok {
		return
	}
	side, isTeam := role.TeamSide()
	if !isTeam {
		writeError(w, http.StatusForbidden, "forbidden", "observers cannot act in the draft")
		return
	}
	a.finish(w, rm, engine.Command{
		Type:     engine.CmdSubmitAction,
		Side:     side,
		ItemID:   req.ItemID,
		ItemName: req.ItemName,
		Abstain:  req.Abstain,
	})
}

func (a *API) TeamName(w http.ResponseWriter, r *http.Request) {
	var req types.TeamNameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rm, role, ok := a.authRoom(w, r, req.Token)
	if !ok {
		return
	}
	side, isTeam := role.TeamSide()
	if !isTeam {
		writeError(w, http.StatusForbidden, "forbidden", "only teams can rename themselves")
		return
	}
	a.finish(w, rm, engine.Command{Type: engine.CmdSetTeamName, Side: side, Name: req.Name})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// authRoom resolves the room from the URL and the role from the token,
// writing the error response itself when either fails.
func (a *API) authRoom(w http.ResponseWriter, r *http.Request, token string) (*room.Room, engine.Role, bool) {
	id := chi.URLParam(r, "roomID")
	reply := make(chan *room.Room, 1)
	a.Registry.Inbox() <- registry.GetRoom{ID: id, Reply: reply}
	rm := <-reply
	if rm == nil {
		writeError(w, http.StatusNotFound, "room_not_found", "unknown or expired room")
		return nil, engine.RoleNone, false
	}
	role := rm.Tokens.Resolve(token)
	if role == engine.RoleNone {
		writeError(w, http.StatusUnauthorized, "unauthorized", "token does not belong to this room")
		return nil, engine.RoleNone, false
	}
	return rm, role, true
}

// finish runs cmd on the room and writes either ok or the mapped error.
func (a *API) finish(w http.ResponseWriter, rm *room.Room, cmd engine.Command) {
	if err := a.apply(rm, cmd); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.OKResponse{OK: true})
}

func (a *API) apply(rm *room.Room, cmd engine.Command) error {
	reply := make(chan error, 1)
	select {
	case rm.Inbox() <- room.FromClient{Cmd: cmd, Reply: reply}:
	case <-rm.Done():
		return errRoomClosed
	}
	select {
	case err := <-reply:
		return err
	case <-rm.Done():
		return errRoomClosed
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return false
	}
	return true
}

func writeEngineError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	writeError(w, status, code, err.Error())
}

// errorStatus maps the engine's expected failures onto HTTP. Anything
// unmapped is an internal fault, not bad input.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, engine.ErrInvalidSide):
		return http.StatusBadRequest, "invalid_side"
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, engine.ErrAlreadyStarted):
		return http.StatusConflict, "already_started"
	case errors.Is(err, engine.ErrNotStarted):
		return http.StatusConflict, "not_started"
	case errors.Is(err, engine.ErrAlreadyFinished):
		return http.StatusConflict, "already_finished"
	case errors.Is(err, engine.ErrWrongTurn):
		return http.StatusConflict, "wrong_turn"
	case errors.Is(err, engine.ErrDuplicateItem):
		return http.StatusConflict, "duplicate_item"
	case errors.Is(err, errRoomClosed):
		return http.StatusNotFound, "room_not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, types.ErrorResponse{Error: types.ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestBase(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	return proto + "://" + r.Host
}
