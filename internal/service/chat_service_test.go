package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/memory"
)

type fixture struct {
	registry *memory.Registry
	channels *memory.ChannelStore
	convs    *memory.ConversationStore
	chat     *ChatService
	react    *ReactionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry: memory.NewRegistry(),
		channels: memory.NewChannelStore("general", "tech"),
		convs:    memory.NewConversationStore(),
	}
	f.chat = NewChatService(f.channels, f.convs, f.registry)
	f.react = NewReactionService(f.channels, f.convs)
	return f
}

func (f *fixture) join(t *testing.T, id, name string) domain.Connection {
	t.Helper()
	c, err := f.registry.Join(id, name)
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return c
}

func TestPostToChannel_RequiresMembership(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "c1", "alice")

	_, err := f.chat.PostToChannel(alice, "tech", "hello")
	if !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	if h := f.channels.History("tech"); len(h) != 0 {
		t.Fatalf("log must stay empty, got %v", h)
	}

	f.channels.Join(alice.ID, "tech")
	m, err := f.chat.PostToChannel(alice, "tech", "  hello  ")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if m.Text != "hello" || m.Channel != "tech" || m.Sender != "alice" || m.SenderID != "c1" || m.IsPrivate {
		t.Fatalf("unexpected message %+v", m)
	}
	if h := f.channels.History("tech"); len(h) != 1 || h[0].ID != m.ID {
		t.Fatalf("history = %v", h)
	}
}

func TestPostToChannel_TextValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "c1", "alice")
	f.channels.Join(alice.ID, "tech")
	f.chat.SetMaxMessageLength(5)

	if _, err := f.chat.PostToChannel(alice, "tech", "   "); !errors.Is(err, domain.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := f.chat.PostToChannel(alice, "tech", "toolong"); !errors.Is(err, domain.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong, got %v", err)
	}
	if _, err := f.chat.PostToChannel(alice, "tech", "héllo"); err != nil {
		t.Fatalf("5 runes must fit: %v", err)
	}
}

func TestMessageIDs_UniqueAndOrdered(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "c1", "alice")
	bob := f.join(t, "c2", "bob")
	f.channels.Join(alice.ID, "general")

	seen := make(map[string]bool)
	prev := ""
	for i := 0; i < 50; i++ {
		var (
			m   domain.Message
			err error
		)
		if i%2 == 0 {
			m, err = f.chat.PostToChannel(alice, "general", "x")
		} else {
			m, _, err = f.chat.SendDirect(alice, bob.ID, "y")
		}
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if seen[m.ID] {
			t.Fatalf("duplicate id %s", m.ID)
		}
		if m.ID <= prev {
			t.Fatalf("ids not increasing: %s after %s", m.ID, prev)
		}
		seen[m.ID] = true
		prev = m.ID
	}
}

func TestSendDirect(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "c1", "alice")
	bob := f.join(t, "c2", "bob")

	if _, _, err := f.chat.SendDirect(alice, "ghost", "hi"); !errors.Is(err, domain.ErrUnknownRecipient) {
		t.Fatalf("expected ErrUnknownRecipient, got %v", err)
	}
	if f.convs.Len() != 0 {
		t.Fatalf("nothing must be stored for unknown recipients")
	}

	m, rcpt, err := f.chat.SendDirect(alice, bob.ID, "hi bob")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if rcpt.ID != bob.ID || !m.IsPrivate || m.Recipient != "bob" || m.RecipientID != bob.ID || m.ConversationKey != "alice_bob" {
		t.Fatalf("unexpected message %+v", m)
	}

	ab := f.chat.ConversationHistory("alice", "bob")
	ba := f.chat.ConversationHistory("bob", "alice")
	if len(ab) != 1 || len(ba) != 1 || ab[0].ID != m.ID || ba[0].ID != m.ID || ba[0].Text != "hi bob" {
		t.Fatalf("history mismatch: %v / %v", ab, ba)
	}
}

func TestShareFile(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "c1", "alice")
	file := domain.File{Name: "a.png", URL: "/uploads/1.png", Type: "image/png"}

	if _, err := f.chat.ShareFile(alice, "", file); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("sharing without any channel must fail, got %v", err)
	}
	if _, err := f.chat.ShareFile(alice, "tech", domain.File{}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}

	f.channels.Join(alice.ID, "general")
	f.channels.Join(alice.ID, "tech")

	m, err := f.chat.ShareFile(alice, "", file)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if m.Channel != "tech" || !m.IsFile || m.FileURL != file.URL {
		t.Fatalf("expected file in last joined channel, got %+v", m)
	}
	if _, err := f.chat.ShareFile(alice, "random", file); !errors.Is(err, domain.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
}

func TestNewMessage_TimestampUTC(t *testing.T) {
	f := newFixture(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	f.chat.now = func() time.Time { return fixed }
	alice := f.join(t, "c1", "alice")
	f.channels.Join(alice.ID, "tech")

	m, err := f.chat.PostToChannel(alice, "tech", "hi")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !m.Timestamp.Equal(fixed) || m.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp = %v", m.Timestamp)
	}
	if !strings.HasSuffix(m.Timestamp.Format(time.RFC3339), "Z") {
		t.Fatalf("timestamp must render in UTC")
	}
}
