package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/csheth/ragdesk/internal/backend"
	"github.com/csheth/ragdesk/internal/normalize"
)

// Backend is the remote surface the session depends on. The concrete
// implementation lives in internal/backend; tests substitute fakes.
type Backend interface {
	ListDocuments(ctx context.Context) ([]backend.Document, error)
	Upload(ctx context.Context, file backend.File) (backend.Document, []backend.Chunk, error)
	RemoveDocument(ctx context.Context, id string) error
	Query(ctx context.Context, query string) (json.RawMessage, error)
	Chat(ctx context.Context, model, content string) (json.RawMessage, error)
	Health(ctx context.Context) error
}

// Role tags a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleError     Role = "error"
)

// Message is one transcript entry. Assistant-only fields stay nil for the
// other roles; system entries may carry an expiry hint for the host UI.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Text      string    `json:"text"`

	Confidence *float64              `json:"confidence,omitempty"`
	Sources    []normalize.Source    `json:"sources,omitempty"`
	Reflection *normalize.Reflection `json:"reflection,omitempty"`
	Structured map[string][]string   `json:"structured,omitempty"`

	// AutoExpire is advisory: the host UI may fade the entry after this
	// interval. The entry itself stays in the log. Serialized in
	// time.Duration's native nanoseconds.
	AutoExpire time.Duration `json:"autoExpireNs,omitempty"`
}

func newMessage(role Role, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		CreatedAt: time.Now(),
		Text:      text,
	}
}
