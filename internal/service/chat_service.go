package service

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/memory"

	"github.com/google/uuid"
)

const defaultMaxMessageLength = 4000

type ChatService struct {
	channels *memory.ChannelStore
	convs    *memory.ConversationStore
	registry *memory.Registry

	maxLen int
	now    func() time.Time
}

func NewChatService(channels *memory.ChannelStore, convs *memory.ConversationStore, registry *memory.Registry) *ChatService {
	return &ChatService{
		channels: channels,
		convs:    convs,
		registry: registry,
		maxLen:   defaultMaxMessageLength,
		now:      time.Now,
	}
}

func (s *ChatService) SetMaxMessageLength(n int) {
	if n > 0 {
		s.maxLen = n
	}
}

// PostToChannel stores text in channel. The sender must be a member.
func (s *ChatService) PostToChannel(sender domain.Connection, channel, text string) (domain.Message, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return domain.Message{}, err
	}
	if channel == "" {
		return domain.Message{}, fmt.Errorf("channel: %w", domain.ErrInvalidPayload)
	}
	if !s.channels.IsMember(sender.ID, channel) {
		return domain.Message{}, fmt.Errorf("post to %q: %w", channel, domain.ErrNotMember)
	}

	m := s.newMessage(sender)
	m.Text = text
	m.Channel = channel
	s.channels.Append(channel, m)

	return m.Clone(), nil
}

// SendDirect stores a private message from sender to the live connection toConnID.
func (s *ChatService) SendDirect(sender domain.Connection, toConnID, text string) (domain.Message, domain.Connection, error) {
	text, err := s.cleanText(text)
	if err != nil {
		return domain.Message{}, domain.Connection{}, err
	}
	recipient, ok := s.registry.Get(toConnID)
	if !ok {
		return domain.Message{}, domain.Connection{}, fmt.Errorf("send to %q: %w", toConnID, domain.ErrUnknownRecipient)
	}

	m := s.newMessage(sender)
	m.Text = text
	m.IsPrivate = true
	m.Recipient = recipient.Username
	m.RecipientID = recipient.ID
	s.convs.Append(sender.Username, recipient.Username, m)

	return m.Clone(), recipient, nil
}

// ShareFile posts a file message. An empty channel falls back to the channel
// the sender joined last.
func (s *ChatService) ShareFile(sender domain.Connection, channel string, f domain.File) (domain.Message, error) {
	if strings.TrimSpace(f.URL) == "" || strings.TrimSpace(f.Name) == "" {
		return domain.Message{}, fmt.Errorf("file descriptor: %w", domain.ErrInvalidPayload)
	}
	if channel == "" {
		joined := s.channels.ChannelsOf(sender.ID)
		if len(joined) == 0 {
			return domain.Message{}, fmt.Errorf("share file: %w", domain.ErrNotMember)
		}
		channel = joined[len(joined)-1]
	}
	if !s.channels.IsMember(sender.ID, channel) {
		return domain.Message{}, fmt.Errorf("share file to %q: %w", channel, domain.ErrNotMember)
	}

	m := s.newMessage(sender)
	m.AttachFile(f)
	m.Channel = channel
	s.channels.Append(channel, m)

	return m.Clone(), nil
}

func (s *ChatService) ConversationHistory(name, other string) []domain.Message {
	return s.convs.History(name, other)
}

func (s *ChatService) newMessage(sender domain.Connection) *domain.Message {
	return &domain.Message{
		ID:        newMessageID(),
		Sender:    sender.Username,
		SenderID:  sender.ID,
		Timestamp: s.now().UTC(),
	}
}

func (s *ChatService) cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > s.maxLen {
		return "", domain.ErrMessageTooLong
	}
	return text, nil
}

// newMessageID returns a time-ordered UUIDv7, shared by channel and private logs.
func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
