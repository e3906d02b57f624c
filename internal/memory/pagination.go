package memory

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

var (
	ErrInvalidCursor  = errors.New("invalid cursor")
	ErrUnknownChannel = errors.New("unknown channel")
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Cursor points just past the last message of a page.
type Cursor struct {
	Channel string `json:"ch"`
	After   string `json:"after"`
}

func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	if c.After == "" {
		return nil, fmt.Errorf("%w: empty position", ErrInvalidCursor)
	}
	return &c, nil
}

type Page struct {
	Items      []domain.Message
	NextCursor string
}

// Page returns up to limit messages of channel name, oldest first, starting
// after cursor.
func (s *ChannelStore) Page(name, cursor string, limit int) (Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return Page{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.channels[name]
	if !ok {
		return Page{}, fmt.Errorf("%q: %w", name, ErrUnknownChannel)
	}

	start := 0
	if cur != nil {
		ref, ok := s.byID[cur.After]
		if !ok || cur.Channel != name || ref.channel != ch {
			return Page{}, fmt.Errorf("%w: not a position in %q", ErrInvalidCursor, name)
		}
		start = ref.idx + 1
	}
	end := min(start+limit, len(ch.messages))

	page := Page{Items: domain.CloneAll(ch.messages[start:end])}
	if end < len(ch.messages) {
		next, err := EncodeCursor(Cursor{Channel: name, After: ch.messages[end-1].ID})
		if err != nil {
			return Page{}, err
		}
		page.NextCursor = next
	}
	return page, nil
}
