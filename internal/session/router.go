package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/memory"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/service"
)

// ErrStopped is returned by Submit once Run has returned.
var ErrStopped = errors.New("session router stopped")

// Emitter delivers outbound events. Subscribe/Unsubscribe maintain the
// per-channel fan-out groups used by Room.
type Emitter interface {
	Broadcast(ev Outbound, except ...string)
	Room(room string, ev Outbound, except ...string)
	Send(ev Outbound, connIDs ...string)
	Subscribe(connID, room string)
	Unsubscribe(connID, room string)
}

type state int

const (
	stateAnonymous state = iota
	stateActive
)

type Deps struct {
	Registry      *memory.Registry
	Channels      *memory.ChannelStore
	Conversations *memory.ConversationStore
	Typing        *memory.TypingTracker
	Chat          *service.ChatService
	Reactions     *service.ReactionService
	Metrics       *metrics.Metrics
}

// Router is the single writer for every store: Run handles one inbound
// event at a time, including all of its emissions.
type Router struct {
	registry  *memory.Registry
	channels  *memory.ChannelStore
	convs     *memory.ConversationStore
	typing    *memory.TypingTracker
	chat      *service.ChatService
	reactions *service.ReactionService
	metrics   *metrics.Metrics
	out       Emitter

	sessions map[string]state // owned by the Run goroutine
	inbox    chan Inbound
	done     chan struct{}
}

func NewRouter(d Deps, out Emitter, inboxSize int) *Router {
	if inboxSize <= 0 {
		inboxSize = 1024
	}
	return &Router{
		registry:  d.Registry,
		channels:  d.Channels,
		convs:     d.Conversations,
		typing:    d.Typing,
		chat:      d.Chat,
		reactions: d.Reactions,
		metrics:   d.Metrics,
		out:       out,
		sessions:  make(map[string]state),
		inbox:     make(chan Inbound, inboxSize),
		done:      make(chan struct{}),
	}
}

// Submit queues ev for Run. It blocks while the inbox is full and fails
// with ErrStopped once Run has returned.
func (r *Router) Submit(ctx context.Context, ev Inbound) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.inbox <- ev:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Router) Run(ctx context.Context) error {
	defer close(r.done)

	slog.Info("session router started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("session router stopped")
			return ctx.Err()
		case ev := <-r.inbox:
			r.Handle(ev)
		}
	}
}

// Handle processes one event to completion. Rejected events produce no
// outbound traffic.
func (r *Router) Handle(ev Inbound) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("session router panic",
				"type", ev.Type,
				"conn_id", ev.ConnID,
				"panic", p,
				"stack", string(debug.Stack()))
		}
	}()

	r.metrics.Event(eventLabel(ev.Type))

	if err := r.dispatch(ev); err != nil {
		reason := dropReason(err)
		r.metrics.Dropped(reason)
		slog.Debug("session event dropped",
			"type", ev.Type,
			"conn_id", ev.ConnID,
			"reason", reason,
			"err", err)
	}
}

var errUnknownEvent = errors.New("unknown event type")

func (r *Router) dispatch(ev Inbound) error {
	switch ev.Type {
	case EventConnect:
		r.sessions[ev.ConnID] = stateAnonymous
		return nil
	case EventDisconnect:
		r.disconnect(ev.ConnID)
		return nil
	}

	st, ok := r.sessions[ev.ConnID]
	if !ok {
		return fmt.Errorf("%s: %w", ev.ConnID, domain.ErrNotJoined)
	}
	if ev.Type == EventUserJoin {
		if st == stateActive {
			return domain.ErrAlreadyJoined
		}
		return r.join(ev)
	}
	if st != stateActive {
		return domain.ErrNotJoined
	}
	me, ok := r.registry.Get(ev.ConnID)
	if !ok {
		return domain.ErrNotJoined
	}

	switch ev.Type {
	case EventJoinChannel:
		return r.joinChannel(me, ev.Payload)
	case EventLeaveChannel:
		return r.leaveChannel(me, ev.Payload)
	case EventChannelMessage:
		return r.channelMessage(me, ev.Payload)
	case EventPrivateMessage:
		return r.privateMessage(me, ev.Payload)
	case EventGetHistory:
		return r.privateHistory(me, ev.Payload)
	case EventShareFile:
		return r.shareFile(me, ev.Payload)
	case EventReact:
		return r.react(me, ev.Payload, true)
	case EventUnreact:
		return r.react(me, ev.Payload, false)
	case EventMarkRead:
		return r.markRead(me, ev.Payload)
	case EventTyping:
		return r.setTyping(me, ev.Payload)
	default:
		return fmt.Errorf("%q: %w", ev.Type, errUnknownEvent)
	}
}

func (r *Router) join(ev Inbound) error {
	var name string
	if err := decode(ev.Payload, &name); err != nil {
		return err
	}
	me, err := r.registry.Join(ev.ConnID, name)
	if err != nil {
		return err
	}
	r.sessions[ev.ConnID] = stateActive
	r.metrics.SetOnline(r.registry.Len())

	r.out.Broadcast(Outbound{Type: TypeUserList, Payload: Roster(r.registry, r.channels)})
	r.out.Broadcast(Outbound{Type: TypeUserJoined, Payload: PeerPayload{Username: me.Username, ID: me.ID}})
	r.out.Broadcast(Outbound{Type: TypeNotification, Payload: NotificationPayload{
		Title: "User Joined",
		Body:  me.Username + " joined the chat",
	}}, me.ID)

	slog.Info("user joined", "conn_id", me.ID, "username", me.Username)
	return nil
}

func (r *Router) disconnect(connID string) {
	if _, ok := r.sessions[connID]; !ok {
		return
	}
	delete(r.sessions, connID)

	me, wasActive := r.registry.MarkOffline(connID)
	for _, ch := range r.channels.LeaveAll(connID) {
		r.out.Unsubscribe(connID, ch)
	}
	r.typing.Remove(connID)
	r.metrics.SetOnline(r.registry.Len())

	if wasActive {
		r.out.Broadcast(Outbound{Type: TypeUserLeft, Payload: PeerPayload{Username: me.Username, ID: me.ID}})
		r.out.Broadcast(Outbound{Type: TypeNotification, Payload: NotificationPayload{
			Title: "User Left",
			Body:  me.Username + " left the chat",
		}}, connID)
		slog.Info("user left", "conn_id", connID, "username", me.Username)
	}
	r.out.Broadcast(Outbound{Type: TypeUserList, Payload: Roster(r.registry, r.channels)})
	r.out.Broadcast(Outbound{Type: TypeTypingUsers, Payload: r.typing.Names()})
}

func (r *Router) joinChannel(me domain.Connection, raw []byte) error {
	name, err := channelName(raw)
	if err != nil {
		return err
	}
	history, joined := r.channels.Join(me.ID, name)
	if !joined {
		return nil
	}
	r.out.Subscribe(me.ID, name)

	r.out.Send(Outbound{Type: TypeChannelHistory, Payload: ChannelHistoryPayload{
		Channel:  name,
		Messages: history,
	}}, me.ID)
	r.out.Room(name, Outbound{Type: TypeChannelUserJoined, Payload: ChannelPeerPayload{
		Username: me.Username,
		ID:       me.ID,
		Channel:  name,
	}}, me.ID)
	return nil
}

func (r *Router) leaveChannel(me domain.Connection, raw []byte) error {
	name, err := channelName(raw)
	if err != nil {
		return err
	}
	if !r.channels.Leave(me.ID, name) {
		return nil
	}
	r.out.Unsubscribe(me.ID, name)

	r.out.Room(name, Outbound{Type: TypeChannelUserLeft, Payload: ChannelPeerPayload{
		Username: me.Username,
		ID:       me.ID,
		Channel:  name,
	}}, me.ID)
	return nil
}

func (r *Router) channelMessage(me domain.Connection, raw []byte) error {
	var req ChannelMessageRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	msg, err := r.chat.PostToChannel(me, req.Channel, req.Message)
	if err != nil {
		return err
	}
	r.metrics.Stored("channel")

	r.out.Room(msg.Channel, Outbound{Type: TypeChannelMessage, Payload: msg})
	r.out.Room(msg.Channel, Outbound{Type: TypeNotification, Payload: NotificationPayload{
		Title:   "New message in " + msg.Channel,
		Body:    me.Username + ": " + msg.Text,
		Channel: msg.Channel,
	}}, me.ID)
	r.stopTyping(me.ID)
	return nil
}

func (r *Router) privateMessage(me domain.Connection, raw []byte) error {
	var req PrivateMessageRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	msg, recipient, err := r.chat.SendDirect(me, req.To, req.Message)
	if err != nil {
		return err
	}
	r.metrics.Stored("private")

	r.out.Send(Outbound{Type: TypePrivateMessage, Payload: msg}, me.ID, recipient.ID)
	if recipient.ID != me.ID {
		r.out.Send(Outbound{Type: TypeNotification, Payload: NotificationPayload{
			Title: "New Private Message",
			Body:  me.Username + ": " + msg.Text,
			From:  me.Username,
		}}, recipient.ID)
	}
	r.stopTyping(me.ID)
	return nil
}

func (r *Router) privateHistory(me domain.Connection, raw []byte) error {
	var other string
	if err := decode(raw, &other); err != nil {
		return err
	}
	if strings.TrimSpace(other) == "" {
		return fmt.Errorf("history peer: %w", domain.ErrInvalidPayload)
	}
	r.out.Send(Outbound{Type: TypePrivateHistory, Payload: PrivateHistoryPayload{
		WithUser: other,
		Messages: r.chat.ConversationHistory(me.Username, other),
	}}, me.ID)
	return nil
}

func (r *Router) shareFile(me domain.Connection, raw []byte) error {
	var req ShareFileRequest
	if err := decode(raw, &req); err != nil {
		return err
	}
	msg, err := r.chat.ShareFile(me, strings.TrimSpace(req.Channel), domain.File{
		Name: req.FileName,
		URL:  req.FileURL,
		Type: req.FileType,
	})
	if err != nil {
		return err
	}
	r.metrics.Stored("file")

	r.out.Room(msg.Channel, Outbound{Type: TypeFileShared, Payload: msg})
	return nil
}

func (r *Router) react(me domain.Connection, raw []byte, add bool) error {
	var req ReactionRequest
	if err := decode(raw, &req); err != nil {
		return err
	}

	var (
		upd service.Update
		err error
	)
	if add {
		upd, err = r.reactions.React(me.Username, req.MessageID, req.Reaction)
	} else {
		upd, err = r.reactions.Unreact(me.Username, req.MessageID, req.Reaction)
	}
	if err != nil {
		return err
	}

	reactions := upd.Message.Reactions
	if reactions == nil {
		reactions = map[string][]string{}
	}
	r.emitScoped(me, upd.Scope, Outbound{Type: TypeReactions, Payload: ReactionsPayload{
		MessageID: upd.Message.ID,
		Reactions: reactions,
	}})
	return nil
}

func (r *Router) markRead(me domain.Connection, raw []byte) error {
	var id string
	if err := decode(raw, &id); err != nil {
		return err
	}
	upd, err := r.reactions.MarkRead(me.Username, id)
	if err != nil {
		return err
	}
	r.emitScoped(me, upd.Scope, Outbound{Type: TypeReadUpdate, Payload: upd.Message})
	return nil
}

func (r *Router) setTyping(me domain.Connection, raw []byte) error {
	var typing bool
	if err := decode(raw, &typing); err != nil {
		return err
	}
	r.typing.Set(me.ID, me.Username, typing)
	r.out.Broadcast(Outbound{Type: TypeTypingUsers, Payload: r.typing.Names()})
	return nil
}

// stopTyping clears the sender's typing flag after a send.
func (r *Router) stopTyping(connID string) {
	if r.typing.Remove(connID) {
		r.out.Broadcast(Outbound{Type: TypeTypingUsers, Payload: r.typing.Names()})
	}
}

// emitScoped sends ev to the channel room, or to the actor and the live
// connection of the other participant of a private thread.
func (r *Router) emitScoped(me domain.Connection, scope service.Scope, ev Outbound) {
	if !scope.Private {
		r.out.Room(scope.Channel, ev)
		return
	}
	targets := []string{me.ID}
	if scope.Peer != me.Username {
		if peer, ok := r.registry.FindByName(scope.Peer); ok {
			targets = append(targets, peer.ID)
		}
	}
	r.out.Send(ev, targets...)
}

// Roster is the user_list payload: registered connections in join order with
// their channels.
func Roster(registry *memory.Registry, channels *memory.ChannelStore) []domain.Connection {
	list := registry.List()
	for i := range list {
		list[i].Channels = channels.ChannelsOf(list[i].ID)
	}
	return list
}

func channelName(raw []byte) (string, error) {
	var name string
	if err := decode(raw, &name); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("channel name: %w", domain.ErrInvalidPayload)
	}
	return name, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotJoined):
		return "not_joined"
	case errors.Is(err, domain.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, domain.ErrEmptyName):
		return "empty_name"
	case errors.Is(err, domain.ErrNotMember):
		return "not_member"
	case errors.Is(err, domain.ErrUnknownRecipient):
		return "unknown_recipient"
	case errors.Is(err, domain.ErrMessageNotFound):
		return "message_not_found"
	case errors.Is(err, domain.ErrEmptyMessage):
		return "empty_message"
	case errors.Is(err, domain.ErrMessageTooLong):
		return "message_too_long"
	case errors.Is(err, domain.ErrInvalidPayload):
		return "invalid_payload"
	case errors.Is(err, errUnknownEvent):
		return "unknown_event"
	default:
		return "other"
	}
}
