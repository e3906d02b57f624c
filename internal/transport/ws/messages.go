package ws

import "encoding/json"

// envelope is the client frame: {"type": "...", "payload": ...}.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
