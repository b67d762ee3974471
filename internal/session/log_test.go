package session

import (
	"sync"
	"testing"
)

func TestAppendStampsIdentityAndTime(t *testing.T) {
	t.Parallel()

	log := NewConversationLog()
	stamped := log.Append(Message{Role: RoleUser, Text: "hello"})
	if stamped.ID == "" {
		t.Fatal("append should assign an ID")
	}
	if stamped.CreatedAt.IsZero() {
		t.Fatal("append should assign a timestamp")
	}

	again := log.Append(Message{Role: RoleUser, Text: "hello again"})
	if again.ID == stamped.ID {
		t.Fatal("IDs must be unique")
	}
}

func TestAppendKeepsCallerStamps(t *testing.T) {
	t.Parallel()

	log := NewConversationLog()
	msg := newMessage(RoleSystem, "notice")
	stored := log.Append(msg)
	if stored.ID != msg.ID {
		t.Fatalf("pre-stamped ID replaced: %q -> %q", msg.ID, stored.ID)
	}
}

func TestMessagesPreserveInsertionOrder(t *testing.T) {
	t.Parallel()

	log := NewConversationLog()
	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		log.Append(Message{Role: RoleUser, Text: text})
	}
	got := log.Messages()
	if len(got) != len(texts) {
		t.Fatalf("len = %d", len(got))
	}
	for i, text := range texts {
		if got[i].Text != text {
			t.Fatalf("entry %d = %q, want %q", i, got[i].Text, text)
		}
	}

	last, ok := log.Last()
	if !ok || last.Text != "three" {
		t.Fatalf("last = %+v, %v", last, ok)
	}
}

func TestMessagesReturnsACopy(t *testing.T) {
	t.Parallel()

	log := NewConversationLog()
	log.Append(Message{Role: RoleUser, Text: "original"})
	snapshot := log.Messages()
	snapshot[0].Text = "tampered"
	if got := log.Messages()[0].Text; got != "original" {
		t.Fatalf("log mutated through snapshot: %q", got)
	}
}

func TestConcurrentAppends(t *testing.T) {
	t.Parallel()

	log := NewConversationLog()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Append(Message{Role: RoleUser, Text: "x"})
		}()
	}
	wg.Wait()
	if log.Len() != 50 {
		t.Fatalf("len = %d, want 50", log.Len())
	}
}
