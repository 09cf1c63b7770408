package model

// WebSocket message types
const (
	WSMessageTypeState   = "state"
	WSMessageTypePlayer  = "player"
	WSMessageTypeCommand = "command"
	WSMessageTypeToggle  = "toggle"
	WSMessageTypeError   = "error"
	WSMessageTypePing    = "ping"
	WSMessageTypePong    = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSPlayerEvent is sent by the browser when a media element fires a notification
type WSPlayerEvent struct {
	Type        string   `json:"type"`
	PlayerID    string   `json:"playerId"`
	Event       string   `json:"event"`
	CurrentTime float64  `json:"currentTime"`
	Duration    *float64 `json:"duration"`
}

// WSToggle is sent by the browser when the user presses a play/pause control
type WSToggle struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

// WSCommand instructs the browser to act on a media element
type WSCommand struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Action   string `json:"action"` // "play" or "pause"
}

// WSStateMessage carries a full session snapshot
type WSStateMessage struct {
	Type  string      `json:"type"`
	State interface{} `json:"state"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
