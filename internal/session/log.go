package session

import "sync"

// ConversationLog is the append-only transcript. Entries are never mutated
// after append; insertion order is display order.
type ConversationLog struct {
	mu      sync.Mutex
	entries []Message
}

// NewConversationLog returns an empty transcript.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{}
}

// Append stores the message and returns it with ID and timestamp filled in.
func (l *ConversationLog) Append(msg Message) Message {
	if msg.ID == "" {
		stamped := newMessage(msg.Role, msg.Text)
		stamped.Confidence = msg.Confidence
		stamped.Sources = msg.Sources
		stamped.Reflection = msg.Reflection
		stamped.Structured = msg.Structured
		stamped.AutoExpire = msg.AutoExpire
		msg = stamped
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
	return msg
}

// Messages returns a copy of the transcript in insertion order.
func (l *ConversationLog) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.entries...)
}

// Len reports the number of entries.
func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Last returns the most recent entry, if any.
func (l *ConversationLog) Last() (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Message{}, false
	}
	return l.entries[len(l.entries)-1], true
}
