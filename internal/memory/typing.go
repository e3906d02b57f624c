package memory

import (
	"sync"

	"github.com/samber/lo"
)

// TypingTracker is the set of connections currently typing.
type TypingTracker struct {
	mu    sync.Mutex
	order []string
	names map[string]string
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{names: make(map[string]string)}
}

func (t *TypingTracker) Set(connID, name string, typing bool) {
	if !typing {
		t.Remove(connID)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.names[connID]; !ok {
		t.order = append(t.order, connID)
	}
	t.names[connID] = name
}

func (t *TypingTracker) Remove(connID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.names[connID]; !ok {
		return false
	}
	delete(t.names, connID)
	t.order = lo.Without(t.order, connID)
	return true
}

// Names lists typing display names in the order they started typing.
func (t *TypingTracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.names[id])
	}
	return out
}
