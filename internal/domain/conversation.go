package domain

import "sort"

const conversationSep = "_"

// ConversationKey is symmetric: ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return pair[0] + conversationSep + pair[1]
}

// Conversation is the private thread between two display names.
type Conversation struct {
	Key          string
	Participants [2]string
	Messages     []*Message
}

func NewConversation(a, b string) *Conversation {
	pair := [2]string{a, b}
	if pair[1] < pair[0] {
		pair[0], pair[1] = pair[1], pair[0]
	}
	return &Conversation{
		Key:          ConversationKey(a, b),
		Participants: pair,
	}
}

// Has reports whether name is one of the two participants.
func (c *Conversation) Has(name string) bool {
	return c.Participants[0] == name || c.Participants[1] == name
}

// Peer returns the participant that is not name.
func (c *Conversation) Peer(name string) string {
	if c.Participants[0] == name {
		return c.Participants[1]
	}
	return c.Participants[0]
}
