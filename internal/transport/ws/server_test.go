package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/memory"
	"github.com/cwrk-planet/chat-service/internal/service"
	"github.com/cwrk-planet/chat-service/internal/session"

	"github.com/gorilla/websocket"
)

type testServer struct {
	url      string
	registry *memory.Registry
}

func startServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	registry := memory.NewRegistry()
	channels := memory.NewChannelStore("general", "tech", "random")
	convs := memory.NewConversationStore()
	hub := NewHub(nil)
	router := session.NewRouter(session.Deps{
		Registry:      registry,
		Channels:      channels,
		Conversations: convs,
		Typing:        memory.NewTypingTracker(),
		Chat:          service.NewChatService(channels, convs, registry),
		Reactions:     service.NewReactionService(channels, convs),
	}, hub, 64)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = router.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(NewServer(hub, router, opts, nil).HandleWS))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		cancel()
	})

	return &testServer{
		url:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		registry: registry,
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func emit(t *testing.T, c *websocket.Conn, typ string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := c.WriteJSON(envelope{Type: typ, Payload: raw}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// await reads frames until one of type typ arrives.
func await(t *testing.T, c *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env envelope
		if err := c.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %q: %v", typ, err)
		}
		if env.Type == typ {
			return env.Payload
		}
	}
}

func TestServer_ChannelRoundTrip(t *testing.T) {
	ts := startServer(t, Options{})
	alice := dial(t, ts.url)
	bob := dial(t, ts.url)

	emit(t, alice, session.EventUserJoin, "alice")
	await(t, alice, session.TypeUserList)
	emit(t, bob, session.EventUserJoin, "bob")
	await(t, bob, session.TypeUserList)

	emit(t, alice, session.EventJoinChannel, "tech")
	await(t, alice, session.TypeChannelHistory)
	emit(t, bob, session.EventJoinChannel, "tech")
	var hist session.ChannelHistoryPayload
	if err := json.Unmarshal(await(t, bob, session.TypeChannelHistory), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if hist.Channel != "tech" || len(hist.Messages) != 0 {
		t.Fatalf("history = %+v", hist)
	}

	emit(t, alice, session.EventChannelMessage, session.ChannelMessageRequest{Channel: "tech", Message: "hello"})

	var got struct {
		ID      string `json:"id"`
		Sender  string `json:"sender"`
		Message string `json:"message"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(await(t, bob, session.TypeChannelMessage), &got); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.ID == "" || got.Sender != "alice" || got.Message != "hello" || got.Channel != "tech" {
		t.Fatalf("message = %+v", got)
	}
	await(t, alice, session.TypeChannelMessage)
}

func TestServer_ReservedEventsIgnored(t *testing.T) {
	ts := startServer(t, Options{})
	c := dial(t, ts.url)

	emit(t, c, session.EventDisconnect, nil)
	if err := c.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	emit(t, c, session.EventUserJoin, "carol")

	var roster []struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(await(t, c, session.TypeUserList), &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Username != "carol" {
		t.Fatalf("roster = %+v", roster)
	}
}

func TestServer_DisconnectAnnounced(t *testing.T) {
	ts := startServer(t, Options{})
	alice := dial(t, ts.url)
	bob := dial(t, ts.url)

	emit(t, alice, session.EventUserJoin, "alice")
	await(t, alice, session.TypeUserList)
	emit(t, bob, session.EventUserJoin, "bob")
	await(t, bob, session.TypeUserList)

	_ = bob.Close()

	var left session.PeerPayload
	if err := json.Unmarshal(await(t, alice, session.TypeUserLeft), &left); err != nil {
		t.Fatalf("decode user_left: %v", err)
	}
	if left.Username != "bob" {
		t.Fatalf("user_left = %+v", left)
	}
}

func TestServer_OriginPolicy(t *testing.T) {
	ts := startServer(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	h := http.Header{}
	h.Set("Origin", "http://evil.example")
	if _, resp, err := websocket.DefaultDialer.Dial(ts.url, h); err == nil {
		t.Fatalf("disallowed origin accepted")
	} else if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}

	h.Set("Origin", "HTTP://LOCALHOST:3000")
	c, _, err := websocket.DefaultDialer.Dial(ts.url, h)
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = c.Close()
}

func TestOriginPolicy(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"empty list allows all", nil, "http://a.example", true},
		{"wildcard", []string{"*"}, "http://a.example", true},
		{"match", []string{"http://a.example"}, "http://a.example", true},
		{"case insensitive", []string{"http://A.example"}, "http://a.EXAMPLE", true},
		{"port mismatch", []string{"http://a.example"}, "http://a.example:8080", false},
		{"no origin header", []string{"http://a.example"}, "", true},
		{"garbage origin", []string{"http://a.example"}, "::::", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newOriginPolicy(tc.allowed)
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			if got := p.check(r); got != tc.want {
				t.Fatalf("check(%q) = %v, want %v", tc.origin, got, tc.want)
			}
		})
	}
}
