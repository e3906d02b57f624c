package domain

import (
	"testing"
)

func TestConversationKey_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"Zed", "amy"},
		{"same", "same"},
		{"", "x"},
		{"under_score", "plain"},
	}
	for _, p := range pairs {
		if ConversationKey(p[0], p[1]) != ConversationKey(p[1], p[0]) {
			t.Fatalf("key not symmetric for %q/%q", p[0], p[1])
		}
	}
	if got := ConversationKey("bob", "alice"); got != "alice_bob" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewConversation_SortsParticipants(t *testing.T) {
	c := NewConversation("under_score", "plain")
	if c.Participants != [2]string{"plain", "under_score"} {
		t.Fatalf("participants not sorted: %v", c.Participants)
	}
	if !c.Has("plain") || !c.Has("under_score") || c.Has("under") {
		t.Fatalf("Has mismatch: %v", c.Participants)
	}
	if c.Peer("plain") != "under_score" || c.Peer("under_score") != "plain" {
		t.Fatalf("Peer mismatch")
	}
}

func TestAddReaction_Idempotent(t *testing.T) {
	m := &Message{ID: "m1"}
	if !m.AddReaction("alice", "👍") {
		t.Fatalf("first reaction should change the set")
	}
	if m.AddReaction("alice", "👍") {
		t.Fatalf("second identical reaction should be a no-op")
	}
	if got := m.Reactions["👍"]; len(got) != 1 || got[0] != "alice" {
		t.Fatalf("unexpected reactors: %v", got)
	}
}

func TestRemoveReaction_DropsEmptyToken(t *testing.T) {
	m := &Message{ID: "m1"}
	m.AddReaction("alice", "👍")
	m.AddReaction("bob", "👍")
	m.AddReaction("bob", "🎉")

	if !m.RemoveReaction("bob", "🎉") {
		t.Fatalf("expected removal")
	}
	if _, ok := m.Reactions["🎉"]; ok {
		t.Fatalf("empty token must be deleted: %v", m.Reactions)
	}
	if m.RemoveReaction("carol", "👍") {
		t.Fatalf("removing absent actor must report no change")
	}
	if got := m.Reactions["👍"]; len(got) != 2 {
		t.Fatalf("unexpected reactors: %v", got)
	}
	m.RemoveReaction("alice", "👍")
	m.RemoveReaction("bob", "👍")
	if len(m.Reactions) != 0 {
		t.Fatalf("map must not keep empty sets: %v", m.Reactions)
	}
}

func TestMarkReadBy_Unique(t *testing.T) {
	m := &Message{}
	m.MarkReadBy("alice")
	m.MarkReadBy("bob")
	m.MarkReadBy("alice")
	if len(m.ReadBy) != 2 || m.ReadBy[0] != "alice" || m.ReadBy[1] != "bob" {
		t.Fatalf("unexpected readBy: %v", m.ReadBy)
	}
}

func TestClone_IsDeep(t *testing.T) {
	m := &Message{ID: "m1"}
	m.AddReaction("alice", "👍")
	m.MarkReadBy("alice")

	c := m.Clone()
	m.AddReaction("bob", "👍")
	m.MarkReadBy("bob")

	if len(c.Reactions["👍"]) != 1 || len(c.ReadBy) != 1 {
		t.Fatalf("clone shares state with original: %+v", c)
	}
}

func TestAttachFile(t *testing.T) {
	m := &Message{}
	m.AttachFile(File{Name: "a.png", URL: "/uploads/x.png", Type: "image/png"})
	if !m.IsFile || m.FileURL != "/uploads/x.png" || m.FileName != "a.png" || m.FileType != "image/png" {
		t.Fatalf("file not attached: %+v", m)
	}
}
