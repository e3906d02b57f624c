package memory

import (
	"strings"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/samber/lo"
)

// Registry maps live connection ids to display names. Iteration order is
// registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	conns map[string]*domain.Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*domain.Connection)}
}

func (r *Registry) Join(connID, name string) (domain.Connection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Connection{}, domain.ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; ok {
		return domain.Connection{}, domain.ErrAlreadyJoined
	}
	c := &domain.Connection{
		ID:       connID,
		Username: name,
		Online:   true,
		Channels: []string{},
	}
	r.conns[connID] = c
	r.order = append(r.order, connID)

	return *c, nil
}

// MarkOffline flips the online flag and removes the entry; the returned
// snapshot is the last view of the connection.
func (r *Registry) MarkOffline(connID string) (domain.Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return domain.Connection{}, false
	}
	c.Online = false
	delete(r.conns, connID)
	r.order = lo.Without(r.order, connID)

	return *c, true
}

func (r *Registry) Get(connID string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[connID]
	if !ok {
		return domain.Connection{}, false
	}
	return *c, true
}

// FindByName returns the earliest registered connection using name.
func (r *Registry) FindByName(name string) (domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if c := r.conns[id]; c.Username == name {
			return *c, true
		}
	}
	return domain.Connection{}, false
}

func (r *Registry) List() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Connection, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.conns[id])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
