// Package session implements the in-process Session Store: an opaque-id
// keyed, append-only message log per conversational thread, safe under
// concurrent access with single-writer-per-session append semantics.
package session

import (
	"sync"
	"time"
)

// MessageRole identifies the speaker of a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one entry in a session's history. Timestamps are
// monotonically non-decreasing within a session; roles strictly
// alternate starting with user in the conversational pattern, though the
// store itself does not enforce alternation — that is the orchestrator's
// contract.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// Session is one conversation's append-only message history, guarded by
// its own lock so appends are serialized per session (single-writer
// semantics) while readers always see either the pre- or post-append
// state, never a partial message.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	messages []Message
	updated  time.Time
}

// Append adds a message, stamping it with a timestamp no earlier than
// the session's previous message.
func (s *Session) Append(role MessageRole, content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := time.Now()
	if len(s.messages) > 0 {
		if prev := s.messages[len(s.messages)-1].Timestamp; !ts.After(prev) {
			ts = prev.Add(time.Nanosecond)
		}
	}

	msg := Message{Role: role, Content: content, Timestamp: ts}
	s.messages = append(s.messages, msg)
	s.updated = ts
	return msg
}

// Messages returns a copy of the session's history; callers never hold a
// reference into the live slice.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Count returns the number of messages currently stored.
func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// LastUpdated returns the timestamp of the most recent append, or the
// session's creation time if no message has been appended yet.
func (s *Session) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.updated.IsZero() {
		return s.CreatedAt
	}
	return s.updated
}

// Summary is the condensed view returned by Manager.Summarize.
type Summary struct {
	ID          string    `json:"id"`
	Count       int       `json:"count"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdatedAt"`
}
