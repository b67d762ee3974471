// Package session is the orchestration core of a retrieval-augmented chat
// client: one Session owns its knowledge store, retrieval toggle, and
// transcript, with no ambient globals, so multiple sessions can coexist
// against the same backend.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/csheth/ragdesk/internal/backend"
	"github.com/csheth/ragdesk/internal/normalize"
)

const defaultQueryTimeout = 30 * time.Second

// Config wires a session together.
type Config struct {
	Backend Backend
	// Model names the role for the direct-chat path.
	Model string
	// QueryTimeout bounds one query round trip; expiry surfaces as a
	// transport failure. Zero means the 30s default.
	QueryTimeout time.Duration
	// DisableAutoEnable turns off the convenience policy that flips
	// retrieval on after an upload into an empty store.
	DisableAutoEnable bool
}

// Session orchestrates queries against one backend. At most one query is in
// flight at a time; excess submissions are rejected, not queued.
type Session struct {
	remote Backend

	store  *KnowledgeStore
	toggle *RetrievalToggle
	log    *ConversationLog

	model        string
	queryTimeout time.Duration
	autoEnable   bool

	mu   sync.Mutex
	busy bool
}

// New builds a session around the given backend.
func New(cfg Config) *Session {
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	s := &Session{
		remote:       cfg.Backend,
		model:        cfg.Model,
		queryTimeout: timeout,
		autoEnable:   !cfg.DisableAutoEnable,
		log:          NewConversationLog(),
	}
	s.store = NewKnowledgeStore(cfg.Backend)
	s.toggle = NewRetrievalToggle(s.store, s.systemNotice)
	return s
}

// Store exposes the knowledge store for listing and inspection.
func (s *Session) Store() *KnowledgeStore { return s.store }

// Toggle exposes the retrieval toggle.
func (s *Session) Toggle() *RetrievalToggle { return s.toggle }

// Log exposes the transcript.
func (s *Session) Log() *ConversationLog { return s.log }

// Model reports the direct-chat model role.
func (s *Session) Model() string { return s.model }

// Busy reports whether a query is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

func (s *Session) systemNotice(text string) {
	s.log.Append(Message{Role: RoleSystem, Text: text, AutoExpire: systemNoticeTTL})
}

func (s *Session) errorEntry(err error) {
	s.log.Append(Message{Role: RoleError, Text: err.Error()})
}

// Submit runs one query round trip. Empty input is rejected with no side
// effect; a second submission while one is pending fails with BusyError and
// does not touch the transcript. Transport and backend failures append
// exactly one error entry and are never retried automatically.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &backend.ValidationError{Reason: "query text is empty"}
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return &backend.BusyError{}
	}
	s.busy = true
	s.mu.Unlock()
	defer s.clearBusy()

	s.log.Append(Message{Role: RoleUser, Text: text})

	// Endpoint choice is fixed at call time; a toggle flip mid-flight
	// does not reroute this query.
	useRetrieval := s.toggle.Enabled()

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	raw, err := s.send(ctx, useRetrieval, text)
	if err != nil {
		s.errorEntry(err)
		return err
	}

	payload, err := normalize.Normalize(raw)
	if err != nil {
		s.errorEntry(err)
		return err
	}
	s.log.Append(Message{
		Role:       RoleAssistant,
		Text:       payload.Text,
		Confidence: payload.Confidence,
		Sources:    payload.Sources,
		Reflection: payload.Reflection,
		Structured: payload.Structured,
	})
	return nil
}

func (s *Session) send(ctx context.Context, useRetrieval bool, text string) ([]byte, error) {
	if useRetrieval {
		return s.remote.Query(ctx, text)
	}
	return s.remote.Chat(ctx, s.model, text)
}

func (s *Session) clearBusy() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Upload validates and submits one file, refreshes the inventory, and
// applies the auto-enable policy when the store was previously empty.
// Validation failures are returned without touching the transcript.
func (s *Session) Upload(ctx context.Context, file backend.File) (backend.Document, []backend.Chunk, error) {
	wasEmpty := s.store.Empty()
	doc, chunks, err := s.store.Upload(ctx, file)
	if err != nil {
		if _, ok := err.(*backend.ValidationError); !ok {
			s.errorEntry(err)
		}
		return backend.Document{}, nil, err
	}
	s.systemNotice(fmt.Sprintf("File %s uploaded (%d chunks)", doc.Name, len(chunks)))
	if wasEmpty && s.autoEnable {
		s.toggle.enableFromSnapshot()
	}
	return doc, chunks, nil
}

// Remove deletes one document and forces retrieval off when the store
// empties as a result.
func (s *Session) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		s.errorEntry(err)
		return err
	}
	s.systemNotice("File deleted successfully")
	s.toggle.reevaluate()
	return nil
}

// CheckHealth probes the backend. Failure is advisory: it produces a system
// notice, not an error entry, and never blocks further use of the session.
func (s *Session) CheckHealth(ctx context.Context) error {
	if err := s.remote.Health(ctx); err != nil {
		s.systemNotice("Cannot connect to the AI service. Please make sure the backend server is running.")
		return err
	}
	return nil
}
