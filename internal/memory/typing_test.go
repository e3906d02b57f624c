package memory

import "testing"

func TestTypingTracker(t *testing.T) {
	tt := NewTypingTracker()
	tt.Set("c1", "alice", true)
	tt.Set("c2", "bob", true)
	tt.Set("c1", "alice", true)

	if got := tt.Names(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("names = %v", got)
	}

	tt.Set("c1", "alice", false)
	if got := tt.Names(); len(got) != 1 || got[0] != "bob" {
		t.Fatalf("names after stop = %v", got)
	}
	if !tt.Remove("c2") || tt.Remove("c2") {
		t.Fatalf("Remove must succeed once")
	}
	if got := tt.Names(); len(got) != 0 {
		t.Fatalf("names = %v", got)
	}
}
