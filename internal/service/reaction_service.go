package service

import (
	"fmt"
	"strings"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/memory"
)

const maxReactionLen = 32

// Scope says who has to hear about a message change.
type Scope struct {
	Channel      string
	Private      bool
	Participants [2]string
	// Peer is the other participant as seen by the actor.
	Peer         string
}

type Update struct {
	Message domain.Message
	Scope   Scope
}

// ReactionService mutates reactions and read receipts. Channel logs are
// searched before private conversations.
type ReactionService struct {
	channels *memory.ChannelStore
	convs    *memory.ConversationStore

	privateReceipts bool
}

func NewReactionService(channels *memory.ChannelStore, convs *memory.ConversationStore) *ReactionService {
	return &ReactionService{channels: channels, convs: convs}
}

// EnablePrivateReceipts extends MarkRead to private messages.
func (s *ReactionService) EnablePrivateReceipts(v bool) {
	s.privateReceipts = v
}

func (s *ReactionService) React(actor, messageID, token string) (Update, error) {
	token, err := validateReaction(messageID, token)
	if err != nil {
		return Update{}, err
	}
	return s.apply(actor, messageID, true, func(m *domain.Message) {
		m.AddReaction(actor, token)
	})
}

func (s *ReactionService) Unreact(actor, messageID, token string) (Update, error) {
	token, err := validateReaction(messageID, token)
	if err != nil {
		return Update{}, err
	}
	return s.apply(actor, messageID, true, func(m *domain.Message) {
		m.RemoveReaction(actor, token)
	})
}

func (s *ReactionService) MarkRead(actor, messageID string) (Update, error) {
	if messageID == "" {
		return Update{}, fmt.Errorf("message id: %w", domain.ErrInvalidPayload)
	}
	return s.apply(actor, messageID, s.privateReceipts, func(m *domain.Message) {
		m.MarkReadBy(actor)
	})
}

func (s *ReactionService) apply(actor, messageID string, private bool, fn func(m *domain.Message)) (Update, error) {
	if msg, channel, ok := s.channels.Update(messageID, fn); ok {
		return Update{Message: msg, Scope: Scope{Channel: channel}}, nil
	}
	if private {
		var peer string
		allow := func(c *domain.Conversation) bool {
			if !c.Has(actor) {
				return false
			}
			peer = c.Peer(actor)
			return true
		}
		if msg, parts, ok := s.convs.Update(messageID, allow, fn); ok {
			return Update{Message: msg, Scope: Scope{Private: true, Participants: parts, Peer: peer}}, nil
		}
	}
	return Update{}, fmt.Errorf("message %q: %w", messageID, domain.ErrMessageNotFound)
}

// validateReaction returns the trimmed token so padded and bare forms share a key.
func validateReaction(messageID, token string) (string, error) {
	if messageID == "" {
		return "", fmt.Errorf("message id: %w", domain.ErrInvalidPayload)
	}
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxReactionLen {
		return "", fmt.Errorf("reaction %q: %w", token, domain.ErrInvalidPayload)
	}
	return token, nil
}
