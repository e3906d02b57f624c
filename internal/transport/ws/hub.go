package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/session"

	"github.com/samber/lo"
)

// Conn is a live socket as seen by the hub. Send must not block.
type Conn interface {
	ID() string
	Send(frame []byte) bool
	Close() error
}

// Hub tracks live connections and channel fan-out groups. It implements
// session.Emitter.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]Conn
	order   []string
	rooms   map[string]map[string]struct{} // room -> conn ids
	metrics *metrics.Metrics
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]Conn),
		rooms:   make(map[string]map[string]struct{}),
		metrics: m,
	}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c.ID()]; !ok {
		h.order = append(h.order, c.ID())
	}
	h.conns[c.ID()] = c
}

// Remove forgets the connection and drops it from every room.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(id)
}

func (h *Hub) removeLocked(id string) {
	if _, ok := h.conns[id]; !ok {
		return
	}
	delete(h.conns, id)
	h.order = lo.Without(h.order, id)
	for room, rs := range h.rooms {
		delete(rs, id)
		if len(rs) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

func (h *Hub) Subscribe(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[connID]; !ok {
		return
	}
	rs, ok := h.rooms[room]
	if !ok {
		rs = make(map[string]struct{})
		h.rooms[room] = rs
	}
	rs[connID] = struct{}{}
}

func (h *Hub) Unsubscribe(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[room]; ok {
		delete(rs, connID)
		if len(rs) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) Broadcast(ev session.Outbound, except ...string) {
	h.mu.RLock()
	targets := lo.FilterMap(h.order, func(id string, _ int) (Conn, bool) {
		return h.conns[id], !lo.Contains(except, id)
	})
	h.mu.RUnlock()

	h.deliver(ev, targets)
}

func (h *Hub) Room(room string, ev session.Outbound, except ...string) {
	h.mu.RLock()
	rs := h.rooms[room]
	targets := lo.FilterMap(h.order, func(id string, _ int) (Conn, bool) {
		_, member := rs[id]
		return h.conns[id], member && !lo.Contains(except, id)
	})
	h.mu.RUnlock()

	h.deliver(ev, targets)
}

// Send delivers ev once to each listed connection that is still live.
func (h *Hub) Send(ev session.Outbound, connIDs ...string) {
	h.mu.RLock()
	targets := lo.FilterMap(lo.Uniq(connIDs), func(id string, _ int) (Conn, bool) {
		c, ok := h.conns[id]
		return c, ok
	})
	h.mu.RUnlock()

	h.deliver(ev, targets)
}

// CloseAll closes every live socket; read loops then unwind normally.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := lo.Values(h.conns)
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (h *Hub) deliver(ev session.Outbound, targets []Conn) {
	if len(targets) == 0 {
		return
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		slog.Error("ws encode failed", "type", ev.Type, "err", err)
		return
	}

	sent := 0
	for _, c := range targets {
		if c.Send(frame) {
			sent++
			continue
		}
		slog.Warn("ws slow consumer, closing", "conn_id", c.ID(), "type", ev.Type)
		h.metrics.SlowConsumer()
		_ = c.Close()
	}
	h.metrics.Outbound(ev.Type, sent)
}
