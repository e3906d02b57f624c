package session

import (
	"encoding/json"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Inbound event types. EventConnect and EventDisconnect are raised by the
// transport, never accepted from a client.
const (
	EventConnect    = "connect"
	EventDisconnect = "disconnect"

	EventUserJoin       = "user_join"
	EventJoinChannel    = "join_channel"
	EventLeaveChannel   = "leave_channel"
	EventChannelMessage = "send_channel_message"
	EventPrivateMessage = "private_message"
	EventGetHistory     = "get_private_history"
	EventShareFile      = "share_file"
	EventReact          = "react_message"
	EventUnreact        = "remove_reaction"
	EventMarkRead       = "message_read"
	EventTyping         = "typing"
)

// Outbound event types.
const (
	TypeUserList          = "user_list"
	TypeUserJoined        = "user_joined"
	TypeUserLeft          = "user_left"
	TypeNotification      = "new_message_notification"
	TypeChannelHistory    = "channel_history"
	TypeChannelUserJoined = "channel_user_joined"
	TypeChannelUserLeft   = "channel_user_left"
	TypeChannelMessage    = "receive_channel_message"
	TypeTypingUsers       = "typing_users"
	TypePrivateMessage    = "private_message"
	TypePrivateHistory    = "private_history"
	TypeFileShared        = "file_shared"
	TypeReactions         = "update_reactions"
	TypeReadUpdate        = "message_read_update"
)

var knownEvents = map[string]struct{}{
	EventConnect: {}, EventDisconnect: {}, EventUserJoin: {}, EventJoinChannel: {},
	EventLeaveChannel: {}, EventChannelMessage: {}, EventPrivateMessage: {},
	EventGetHistory: {}, EventShareFile: {}, EventReact: {}, EventUnreact: {},
	EventMarkRead: {}, EventTyping: {},
}

// eventLabel keeps metric label cardinality bounded.
func eventLabel(typ string) string {
	if _, ok := knownEvents[typ]; ok {
		return typ
	}
	return "unknown"
}

// IsReserved reports whether typ may only be produced by the transport.
func IsReserved(typ string) bool {
	return typ == EventConnect || typ == EventDisconnect
}

type Inbound struct {
	ConnID  string
	Type    string
	Payload json.RawMessage
}

// Outbound is the wire envelope for every server event.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// --- inbound payloads ---

type ChannelMessageRequest struct {
	Message string `json:"message"`
	Channel string `json:"channel"`
}

type PrivateMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type ShareFileRequest struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileType string `json:"fileType"`
	Channel  string `json:"channel,omitempty"`
}

type ReactionRequest struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// --- outbound payloads ---

type PeerPayload struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}

type ChannelPeerPayload struct {
	Username string `json:"username"`
	ID       string `json:"id"`
	Channel  string `json:"channel"`
}

type NotificationPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Channel string `json:"channel,omitempty"`
	From    string `json:"from,omitempty"`
}

// ChannelHistoryPayload is the channel_history body. It is an object
// {"channel": ..., "messages": [...]} rather than a bare message array, so
// clients that expect the array form must read the messages field.
type ChannelHistoryPayload struct {
	Channel  string           `json:"channel"`
	Messages []domain.Message `json:"messages"`
}

type PrivateHistoryPayload struct {
	WithUser string           `json:"withUser"`
	Messages []domain.Message `json:"messages"`
}

type ReactionsPayload struct {
	MessageID string              `json:"messageId"`
	Reactions map[string][]string `json:"reactions"`
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty payload: %w", domain.ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%v: %w", err, domain.ErrInvalidPayload)
	}
	return nil
}
