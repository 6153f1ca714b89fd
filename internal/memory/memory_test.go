package memory

import (
	"fmt"
	"strings"
	"testing"
)

func TestAppendCapsAtMaxTurns(t *testing.T) {
	s := New(10, 5)

	for n := 1; n <= 25; n++ {
		s.Append(42, RoleUser, fmt.Sprintf("msg %d", n))

		want := n
		if want > 10 {
			want = 10
		}
		if got := len(s.Turns(42)); got != want {
			t.Fatalf("after %d appends: len = %d, want %d", n, got, want)
		}
	}

	// Most recent entries survive, in chronological order.
	turns := s.Turns(42)
	for i, turn := range turns {
		want := fmt.Sprintf("msg %d", 16+i)
		if turn.Content != want {
			t.Errorf("turn %d = %q, want %q", i, turn.Content, want)
		}
	}
}

func TestContextRendersLastFiveTurns(t *testing.T) {
	s := New(10, 5)

	for n := 1; n <= 8; n++ {
		role := RoleUser
		if n%2 == 0 {
			role = RoleAssistant
		}
		s.Append(7, role, fmt.Sprintf("turn %d", n))
	}

	ctx := s.Context(7)
	lines := strings.Split(ctx, "\n")
	if len(lines) != 5 {
		t.Fatalf("context has %d lines, want 5:\n%s", len(lines), ctx)
	}
	if lines[0] != "user: turn 4" {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[4] != "assistant: turn 8" {
		t.Errorf("last line = %q", lines[4])
	}
}

func TestContextUnknownChatEmpty(t *testing.T) {
	s := New(0, 0)
	if got := s.Context(99); got != "" {
		t.Errorf("unknown chat context = %q, want empty", got)
	}
}

func TestChatsAreIndependent(t *testing.T) {
	s := New(10, 5)
	s.Append(1, RoleUser, "из первого чата")
	s.Append(2, RoleUser, "из второго чата")

	if ctx := s.Context(1); strings.Contains(ctx, "второго") {
		t.Errorf("chat 1 context leaked chat 2 content: %q", ctx)
	}
}

func TestClear(t *testing.T) {
	s := New(10, 5)
	s.Append(5, RoleUser, "привет")
	s.Clear(5)

	if got := len(s.Turns(5)); got != 0 {
		t.Errorf("after Clear: %d turns", got)
	}
	if got := s.Context(5); got != "" {
		t.Errorf("after Clear: context = %q", got)
	}
}
