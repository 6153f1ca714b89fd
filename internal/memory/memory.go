// Package memory keeps a bounded per-chat conversation log used to seed
// follow-up prompts. Purely in-memory; nothing survives a restart.
package memory

import (
	"strings"
	"sync"
)

// Defaults match the bot's retention policy: keep the last 10 turns,
// render the last 5 into prompt context.
const (
	DefaultMaxTurns     = 10
	DefaultContextTurns = 5
)

// Roles for a turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role    string
	Content string
}

// Store holds conversation logs keyed by chat ID. All methods are safe for
// concurrent use; the mutex only guards map and slice bookkeeping, requests
// within one chat are already sequential at the delivery layer.
type Store struct {
	mu           sync.Mutex
	chats        map[int64][]Turn
	maxTurns     int
	contextTurns int
}

// New creates a store. Zero or negative limits fall back to defaults.
func New(maxTurns, contextTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	if contextTurns <= 0 {
		contextTurns = DefaultContextTurns
	}
	return &Store{
		chats:        make(map[int64][]Turn),
		maxTurns:     maxTurns,
		contextTurns: contextTurns,
	}
}

// Append records a turn for the chat, evicting the oldest turn once the
// log exceeds the retention limit.
func (s *Store) Append(chatID int64, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.chats[chatID], Turn{Role: role, Content: content})
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.chats[chatID] = turns
}

// Turns returns a copy of the chat's log in chronological order.
func (s *Store) Turns(chatID int64) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.chats[chatID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Context renders the most recent turns as "{role}: {content}" lines for
// prompt seeding. Unknown chats yield an empty string.
func (s *Store) Context(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.chats[chatID]
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > s.contextTurns {
		turns = turns[len(turns)-s.contextTurns:]
	}

	var b strings.Builder
	for _, t := range turns {
		b.WriteString(t.Role)
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clear drops the chat's log entirely.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
}
