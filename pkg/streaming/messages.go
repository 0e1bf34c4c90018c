package streaming

import (
	"encoding/json"
)

// Message type constants for the game protocol.
const (
	// client -> server
	TypeUnlockUnit       = "unlock_unit"
	TypePlaceUnit        = "place_unit"
	TypeForceStartCombat = "force_start_combat"

	// server -> client
	TypeGameStarted   = "game_started"
	TypeSessionUpdate = "session_update"
	TypeGameOver      = "game_over"
	TypeCommandResult = "command_result"

	// lobby -> server, over HTTP
	TypeStartSession = "start_session"

	// raised by the transport on socket open and close
	TypeAttachPlayer = "attach_player"
	TypeRemovePlayer = "remove_player"
)

// Envelope wraps all messages received over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"` // echoed back in the command result
	Payload json.RawMessage `json:"payload"`
}

// Frame wraps all messages sent over the WebSocket.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// CommandResult is the server's response to a client command.
type CommandResult struct {
	For       string `json:"for"`
	RequestID string `json:"requestId,omitempty"`
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	// InstanceID is set for accepted place_unit commands.
	InstanceID string `json:"instanceId,omitempty"`
}

// RosterEntry is one player handed over by the lobby.
type RosterEntry struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Faction  string `json:"faction"`
}

// StartSessionPayload creates a session from a finished lobby.
type StartSessionPayload struct {
	Players []RosterEntry `json:"players"`
	HostID  string        `json:"hostId"`
	Mode    string        `json:"mode"`
}

// StartSessionResponse is returned to the lobby.
type StartSessionResponse struct {
	SessionID string `json:"sessionId"`
}

type UnlockUnitPayload struct {
	UnitTypeID string `json:"unitTypeId"`
}

type PlaceUnitPayload struct {
	UnitTypeID string  `json:"unitTypeId"`
	X          float64 `json:"x"`
	Z          float64 `json:"z"`
	Rotation   int     `json:"rotation"`
}
