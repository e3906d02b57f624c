package memory

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

func seedChannel(s *ChannelStore, name string, n int) {
	for i := 0; i < n; i++ {
		s.Append(name, &domain.Message{ID: fmt.Sprintf("%s-%02d", name, i), Channel: name})
	}
}

func TestChannelStore_PageWalk(t *testing.T) {
	s := NewChannelStore("tech")
	seedChannel(s, "tech", 5)

	var seen []string
	cursor := ""
	for pages := 0; ; pages++ {
		if pages > 5 {
			t.Fatalf("pagination does not terminate")
		}
		p, err := s.Page("tech", cursor, 2)
		if err != nil {
			t.Fatalf("page: %v", err)
		}
		for _, m := range p.Items {
			seen = append(seen, m.ID)
		}
		if p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}

	if len(seen) != 5 || seen[0] != "tech-00" || seen[4] != "tech-04" {
		t.Fatalf("walked %v", seen)
	}
}

func TestChannelStore_PageEmptyAndUnknown(t *testing.T) {
	s := NewChannelStore("tech")

	p, err := s.Page("tech", "", 0)
	if err != nil || p.Items == nil || len(p.Items) != 0 || p.NextCursor != "" {
		t.Fatalf("empty page = %+v, %v", p, err)
	}
	if _, err := s.Page("nope", "", 10); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("expected ErrUnknownChannel, got %v", err)
	}
}

func TestChannelStore_PageRejectsForeignCursor(t *testing.T) {
	s := NewChannelStore("tech", "random")
	seedChannel(s, "tech", 3)
	seedChannel(s, "random", 3)

	p, err := s.Page("tech", "", 1)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if _, err := s.Page("random", p.NextCursor, 1); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("cursor from another channel must be rejected, got %v", err)
	}
	if _, err := s.Page("tech", "!!not-base64", 1); !errors.Is(err, ErrInvalidCursor) {
		t.Fatalf("garbage cursor must be rejected, got %v", err)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	enc, err := EncodeCursor(Cursor{Channel: "tech", After: "m1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	c, err := DecodeCursor(enc)
	if err != nil || c.Channel != "tech" || c.After != "m1" {
		t.Fatalf("decode = %+v, %v", c, err)
	}
	if c, err := DecodeCursor(""); c != nil || err != nil {
		t.Fatalf("empty cursor = %+v, %v", c, err)
	}
}
