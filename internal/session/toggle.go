package session

import (
	"context"
	"sync"
	"time"
)

// System notices mirror the wording the knowledge-base frontends settled on.
const (
	noticeEnableRefused  = "Cannot enable knowledge base: No files available."
	noticeEnableUnknown  = "Error checking knowledge base. Please try again."
	noticeEnabled        = "Knowledge base enabled"
	noticeDisabled       = "Knowledge base disabled"
	noticeForcedDisabled = "Knowledge base disabled - no files available"

	systemNoticeTTL = 4 * time.Second
)

// RetrievalToggle guards retrieval-augmented mode: it may only be enabled
// while the store holds at least one document, and it is forced off when
// the store empties. Every transition emits a system notice through notify.
type RetrievalToggle struct {
	store  *KnowledgeStore
	notify func(text string)

	mu      sync.Mutex
	enabled bool
}

// NewRetrievalToggle starts in the Disabled state.
func NewRetrievalToggle(store *KnowledgeStore, notify func(text string)) *RetrievalToggle {
	if notify == nil {
		notify = func(string) {}
	}
	return &RetrievalToggle{store: store, notify: notify}
}

// Enabled reports the current state.
func (t *RetrievalToggle) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// setEnabled reports whether the state actually changed, so each transition
// notifies at most once.
func (t *RetrievalToggle) setEnabled(enabled bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.enabled == enabled {
		return false
	}
	t.enabled = enabled
	return true
}

// Enable performs the guarded Disabled -> Enabled transition. The store is
// re-listed at the moment of the request; an empty result refuses the
// transition with exactly one system notice, and a listing failure leaves
// the state untouched because the store contents are unknown, not empty.
func (t *RetrievalToggle) Enable(ctx context.Context) error {
	docs, err := t.store.Documents(ctx)
	if err != nil {
		t.notify(noticeEnableUnknown)
		return err
	}
	if len(docs) == 0 {
		t.notify(noticeEnableRefused)
		return nil
	}
	if t.setEnabled(true) {
		t.notify(noticeEnabled)
	}
	return nil
}

// Disable performs the always-permitted Enabled -> Disabled transition.
func (t *RetrievalToggle) Disable() {
	if t.setEnabled(false) {
		t.notify(noticeDisabled)
	}
}

// enableFromSnapshot flips the toggle on without a live listing. Used for
// the upload convenience policy, where the snapshot was refreshed moments
// before.
func (t *RetrievalToggle) enableFromSnapshot() {
	if t.store.Empty() {
		return
	}
	if t.setEnabled(true) {
		t.notify(noticeEnabled)
	}
}

// reevaluate forces Disabled when the store has emptied while enabled.
func (t *RetrievalToggle) reevaluate() {
	if !t.store.Empty() {
		return
	}
	if t.setEnabled(false) {
		t.notify(noticeForcedDisabled)
	}
}
