package domain

import (
	"time"

	"github.com/samber/lo"
)

// File is the descriptor returned by the upload endpoint.
type File struct {
	Name string `json:"fileName"`
	URL  string `json:"fileUrl"`
	Type string `json:"fileType"`
}

type Message struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	FileName string `json:"fileName,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileType string `json:"fileType,omitempty"`
	IsFile   bool   `json:"isFile,omitempty"`

	Channel         string `json:"channel,omitempty"`
	IsPrivate       bool   `json:"isPrivate"`
	Recipient       string `json:"recipient,omitempty"`
	RecipientID     string `json:"recipientId,omitempty"`
	ConversationKey string `json:"conversationKey,omitempty"`

	Reactions map[string][]string `json:"reactions,omitempty"`
	ReadBy    []string            `json:"readBy,omitempty"`
}

// AttachFile turns m into a file message.
func (m *Message) AttachFile(f File) {
	m.FileName = f.Name
	m.FileURL = f.URL
	m.FileType = f.Type
	m.IsFile = true
}

// AddReaction adds actor under token once. It reports whether the set changed.
func (m *Message) AddReaction(actor, token string) bool {
	if m.Reactions == nil {
		m.Reactions = make(map[string][]string)
	}
	actors := m.Reactions[token]
	if lo.Contains(actors, actor) {
		m.Reactions[token] = actors
		return false
	}
	m.Reactions[token] = append(actors, actor)
	return true
}

// RemoveReaction drops actor from token; a token left without actors is deleted.
func (m *Message) RemoveReaction(actor, token string) bool {
	actors, ok := m.Reactions[token]
	if !ok || !lo.Contains(actors, actor) {
		return false
	}
	actors = lo.Without(actors, actor)
	if len(actors) == 0 {
		delete(m.Reactions, token)
	} else {
		m.Reactions[token] = actors
	}
	return true
}

// MarkReadBy appends actor to ReadBy once.
func (m *Message) MarkReadBy(actor string) bool {
	if lo.Contains(m.ReadBy, actor) {
		return false
	}
	m.ReadBy = append(m.ReadBy, actor)
	return true
}

// Clone returns a copy that shares no mutable state with m.
func (m *Message) Clone() Message {
	c := *m
	if m.Reactions != nil {
		c.Reactions = make(map[string][]string, len(m.Reactions))
		for token, actors := range m.Reactions {
			c.Reactions[token] = append([]string(nil), actors...)
		}
	}
	if m.ReadBy != nil {
		c.ReadBy = append([]string(nil), m.ReadBy...)
	}
	return c
}

// CloneAll snapshots a log.
func CloneAll(msgs []*Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Clone())
	}
	return out
}
