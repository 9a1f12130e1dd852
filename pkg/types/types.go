// Package types defines the JSON shapes exchanged with clients.
package types

import "github.com/hexdraft/draft-server/internal/engine"

// CreateRoomRequest fields are pointers so an omitted field falls back to
// the server default instead of zero.
type CreateRoomRequest struct {
	Bans           *int `json:"bans"`
	Picks          *int `json:"picks"`
	TimerSeconds   *int `json:"timerSeconds"`
	ReserveSeconds *int `json:"reserveSeconds"`
}

type RoomTokens struct {
	Blue     string `json:"blue"`
	Red      string `json:"red"`
	Observer string `json:"observer"`
}

// RoomLinks are ready-to-share viewer URLs with the role token embedded.
type RoomLinks struct {
	Blue     string `json:"blue"`
	Red      string `json:"red"`
	Observer string `json:"observer"`
}

type CreateRoomResponse struct {
	RoomID string     `json:"roomId"`
	Tokens RoomTokens `json:"tokens"`
	Links  RoomLinks  `json:"links"`
}

type ReadyRequest struct {
	Token string `json:"token"`
}

type StartRequest struct {
	Token string `json:"token"`
}

type TeamNameRequest struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

type ActionRequest struct {
	Token    string `json:"token"`
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Abstain  bool   `json:"abstain"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

// ServerMessage is one frame on the live state stream. Role is set on the
// first frame only, so a late joiner learns what their token resolves to.
type ServerMessage struct {
	Type    string              `json:"type"` // "state"
	Version int                 `json:"version"`
	Role    engine.Role         `json:"role,omitempty"`
	State   *engine.PublicState `json:"state,omitempty"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}
