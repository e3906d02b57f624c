package memory

import (
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type conversationRef struct {
	conv *domain.Conversation
	msg  *domain.Message
}

// ConversationStore keeps private threads keyed by domain.ConversationKey.
type ConversationStore struct {
	mu    sync.RWMutex
	convs map[string]*domain.Conversation
	byID  map[string]conversationRef
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		convs: make(map[string]*domain.Conversation),
		byID:  make(map[string]conversationRef),
	}
}

// Append stores m in the thread between a and b, creating it if needed.
func (s *ConversationStore) Append(a, b string, m *domain.Message) *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.ConversationKey(a, b)
	conv, ok := s.convs[key]
	if !ok {
		conv = domain.NewConversation(a, b)
		s.convs[key] = conv
	}
	m.ConversationKey = key
	conv.Messages = append(conv.Messages, m)
	s.byID[m.ID] = conversationRef{conv: conv, msg: m}

	return conv
}

// History never fails; an unknown pair yields an empty log.
func (s *ConversationStore) History(a, b string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.convs[domain.ConversationKey(a, b)]
	if !ok {
		return []domain.Message{}
	}
	return domain.CloneAll(conv.Messages)
}

// Update applies fn to message id when allow accepts its conversation.
func (s *ConversationStore) Update(id string, allow func(c *domain.Conversation) bool, fn func(m *domain.Message)) (domain.Message, [2]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.byID[id]
	if !ok {
		return domain.Message{}, [2]string{}, false
	}
	if allow != nil && !allow(ref.conv) {
		return domain.Message{}, [2]string{}, false
	}
	fn(ref.msg)
	return ref.msg.Clone(), ref.conv.Participants, true
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}
