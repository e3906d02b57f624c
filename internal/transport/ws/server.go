package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/session"
	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Dispatcher accepts inbound events for serialized processing.
type Dispatcher interface {
	Submit(ctx context.Context, ev session.Inbound) error
}

type Options struct {
	MaxMessageSize int64
	SendBuffer     int
	PingEvery      time.Duration
	WriteWait      time.Duration
	// RateRPS <= 0 disables per-connection rate limiting.
	RateRPS        float64
	RateBurst      int
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 << 10
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.PingEvery <= 0 {
		o.PingEvery = 15 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 5 * time.Second
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
	return o
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	router   Dispatcher
	metrics  *metrics.Metrics
	opts     Options
}

func NewServer(hub *Hub, router Dispatcher, opts Options, m *metrics.Metrics) *Server {
	opts = opts.withDefaults()
	origins := newOriginPolicy(opts.AllowedOrigins)
	return &Server{
		hub:     hub,
		router:  router,
		metrics: m,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
	}
}

// HandleWS serves GET /ws. Each socket gets a fresh connection id; the
// session starts anonymous until the client sends user_join.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.FromContext(r.Context()).Warn("ws upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	id := uuid.NewString()
	c := newWsConn(id, conn, s.opts.SendBuffer, logger.FromContext(r.Context()).With("conn_id", id))
	// the disconnect must reach the router after the request context is gone
	lifecycle := context.WithoutCancel(r.Context())

	s.hub.Add(c)
	s.metrics.ConnOpened()
	c.log.Debug("ws connected", "remote", r.RemoteAddr)

	if err := s.router.Submit(lifecycle, session.Inbound{ConnID: c.id, Type: session.EventConnect}); err != nil {
		c.log.Warn("ws connect rejected", "err", err)
		s.hub.Remove(c.id)
		_ = c.Close()
		s.metrics.ConnClosed()
		return
	}

	go s.writeLoop(c)
	s.readLoop(r.Context(), c)

	s.hub.Remove(c.id)
	if err := c.Close(); err != nil && !isClosedErr(err) {
		c.log.Debug("ws close failed", "err", err)
	}
	s.metrics.ConnClosed()

	err = s.router.Submit(lifecycle, session.Inbound{ConnID: c.id, Type: session.EventDisconnect})
	if err != nil && !errors.Is(err, session.ErrStopped) {
		c.log.Warn("ws disconnect not delivered", "err", err)
	}
	c.log.Debug("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, c *wsConn) {
	limit := rate.Inf
	if s.opts.RateRPS > 0 {
		limit = rate.Limit(s.opts.RateRPS)
	}
	limiter := rate.NewLimiter(limit, s.opts.RateBurst)

	c.conn.SetReadLimit(s.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			s.logReadError(c, err)
			return
		}
		if !limiter.Allow() {
			s.metrics.Dropped("rate_limited")
			c.log.Debug("ws rate limit exceeded")
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			s.metrics.Dropped("invalid_frame")
			c.log.Debug("ws invalid frame", "err", err)
			continue
		}
		// lifecycle events come from the server only
		if session.IsReserved(env.Type) {
			s.metrics.Dropped("reserved_event")
			continue
		}

		ev := session.Inbound{ConnID: c.id, Type: env.Type, Payload: env.Payload}
		if err := s.router.Submit(ctx, ev); err != nil {
			c.log.Debug("ws submit failed", "err", err)
			return
		}
	}
}

func (s *Server) writeLoop(c *wsConn) {
	ticker := time.NewTicker(s.opts.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("ws write failed", "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				_ = c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (s *Server) logReadError(c *wsConn, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("ws frame too large", "limit", s.opts.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug("ws closed by peer")
	case errors.Is(err, io.EOF), isClosedErr(err):
		c.log.Debug("ws connection closed", "err", err)
	default:
		c.log.Warn("ws read error", "err", err)
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}

type wsConn struct {
	id        string
	log       *slog.Logger
	conn      *websocket.Conn
	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(id string, c *websocket.Conn, buffer int, log *slog.Logger) *wsConn {
	return &wsConn{
		id:     id,
		log:    log,
		conn:   c,
		send:   make(chan []byte, buffer),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues a frame without blocking. It reports false only when the
// queue is full; frames for a closing socket are discarded.
func (c *wsConn) Send(frame []byte) bool {
	select {
	case <-c.closed:
		return true
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *wsConn) Close() error {
	err := net.ErrClosed
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
