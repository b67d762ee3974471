package session

import (
	"context"
	"sync"

	"github.com/csheth/ragdesk/internal/backend"
)

// KnowledgeStore tracks the remote document inventory. It keeps only the
// last fetched snapshot; every mutation triggers a refetch rather than an
// incremental patch, so the server's chunk counts stay authoritative.
// Mutations are serialized to avoid lost-update races on the snapshot.
type KnowledgeStore struct {
	backend Backend

	mu       sync.Mutex
	snapshot []backend.Document
}

// NewKnowledgeStore wraps the backend's document operations.
func NewKnowledgeStore(b Backend) *KnowledgeStore {
	return &KnowledgeStore{backend: b}
}

// Documents fetches the current inventory and refreshes the snapshot.
// A transport failure leaves the previous snapshot untouched: the caller
// must treat it as unknown state, not as empty.
func (s *KnowledgeStore) Documents(ctx context.Context) ([]backend.Document, error) {
	docs, err := s.backend.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.snapshot = docs
	s.mu.Unlock()
	return append([]backend.Document(nil), docs...), nil
}

// Snapshot returns the last fetched inventory without touching the network.
func (s *KnowledgeStore) Snapshot() []backend.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Document(nil), s.snapshot...)
}

// Empty reports whether the last fetched snapshot has no documents.
func (s *KnowledgeStore) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshot) == 0
}

// Upload validates the file client-side, submits it, and refetches the
// inventory. Validation failures never reach the network.
func (s *KnowledgeStore) Upload(ctx context.Context, file backend.File) (backend.Document, []backend.Chunk, error) {
	if err := ValidateFile(file); err != nil {
		return backend.Document{}, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, chunks, err := s.backend.Upload(ctx, file)
	if err != nil {
		return backend.Document{}, nil, err
	}
	s.refreshLocked(ctx, doc)
	return doc, chunks, nil
}

// Remove deletes one document and refetches the inventory.
func (s *KnowledgeStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.RemoveDocument(ctx, id); err != nil {
		return err
	}
	s.removeRefreshLocked(ctx, id)
	return nil
}

// refreshLocked re-lists after an upload. When the refetch itself fails the
// acknowledged document is applied optimistically so the snapshot never
// claims emptiness right after a confirmed ingestion.
func (s *KnowledgeStore) refreshLocked(ctx context.Context, uploaded backend.Document) {
	docs, err := s.backend.ListDocuments(ctx)
	if err != nil {
		s.snapshot = append(s.snapshot, uploaded)
		return
	}
	s.snapshot = docs
}

func (s *KnowledgeStore) removeRefreshLocked(ctx context.Context, id string) {
	docs, err := s.backend.ListDocuments(ctx)
	if err != nil {
		kept := s.snapshot[:0]
		for _, doc := range s.snapshot {
			if doc.ID != id {
				kept = append(kept, doc)
			}
		}
		s.snapshot = kept
		return
	}
	s.snapshot = docs
}
