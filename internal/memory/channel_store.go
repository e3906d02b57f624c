package memory

import (
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/samber/lo"
)

type channel struct {
	name     string
	messages []*domain.Message
	members  []string
}

type channelRef struct {
	channel *channel
	msg     *domain.Message
	idx     int // position in channel.messages
}

// ChannelStore owns channel logs and channel membership. Channels are created
// on first reference.
type ChannelStore struct {
	mu          sync.RWMutex
	order       []string
	channels    map[string]*channel
	memberships map[string][]string // connID -> channel names, join order
	byID        map[string]channelRef
}

func NewChannelStore(defaults ...string) *ChannelStore {
	s := &ChannelStore{
		channels:    make(map[string]*channel),
		memberships: make(map[string][]string),
		byID:        make(map[string]channelRef),
	}
	for _, name := range defaults {
		s.ensure(name)
	}
	return s
}

func (s *ChannelStore) ensure(name string) *channel {
	ch, ok := s.channels[name]
	if !ok {
		ch = &channel{name: name}
		s.channels[name] = ch
		s.order = append(s.order, name)
	}
	return ch
}

// Join adds connID to name. When connID already is a member it returns
// joined=false and no history.
func (s *ChannelStore) Join(connID, name string) ([]domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.ensure(name)
	if lo.Contains(ch.members, connID) {
		return nil, false
	}
	ch.members = append(ch.members, connID)
	s.memberships[connID] = append(s.memberships[connID], name)

	return domain.CloneAll(ch.messages), true
}

func (s *ChannelStore) Leave(connID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.leave(connID, name)
}

func (s *ChannelStore) leave(connID, name string) bool {
	ch, ok := s.channels[name]
	if !ok || !lo.Contains(ch.members, connID) {
		return false
	}
	ch.members = lo.Without(ch.members, connID)

	rest := lo.Without(s.memberships[connID], name)
	if len(rest) == 0 {
		delete(s.memberships, connID)
	} else {
		s.memberships[connID] = rest
	}
	return true
}

// LeaveAll drops every membership of connID and returns the channels it left.
func (s *ChannelStore) LeaveAll(connID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := append([]string(nil), s.memberships[connID]...)
	for _, name := range names {
		s.leave(connID, name)
	}
	return names
}

func (s *ChannelStore) IsMember(connID, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return lo.Contains(s.memberships[connID], name)
}

// ChannelsOf lists the channels of connID in join order.
func (s *ChannelStore) ChannelsOf(connID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.memberships[connID]...)
}

func (s *ChannelStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string{}, s.order...)
}

func (s *ChannelStore) Append(name string, m *domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.ensure(name)
	s.byID[m.ID] = channelRef{channel: ch, msg: m, idx: len(ch.messages)}
	ch.messages = append(ch.messages, m)
}

func (s *ChannelStore) History(name string) []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[name]
	if !ok {
		return []domain.Message{}
	}
	return domain.CloneAll(ch.messages)
}

// Update applies fn to message id under the store lock.
func (s *ChannelStore) Update(id string, fn func(m *domain.Message)) (domain.Message, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.byID[id]
	if !ok {
		return domain.Message{}, "", false
	}
	fn(ref.msg)
	return ref.msg.Clone(), ref.channel.name, true
}
