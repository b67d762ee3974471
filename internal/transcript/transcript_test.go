package transcript

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/csheth/ragdesk/internal/session"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "archive", "transcripts.json")
	confidence := 0.9
	snapshot := Snapshot{
		Backend:   "http://127.0.0.1:8080",
		Model:     "assistant",
		Retrieval: true,
		Messages: []session.Message{
			{ID: "m1", Role: session.RoleUser, Text: "question", CreatedAt: time.Now()},
			{ID: "m2", Role: session.RoleAssistant, Text: "answer", Confidence: &confidence},
		},
	}

	if err := Save(path, snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(loaded))
	}
	got := loaded[0]
	if got.CapturedAt.IsZero() {
		t.Fatal("capture time should be stamped on save")
	}
	if got.Model != "assistant" || !got.Retrieval {
		t.Fatalf("snapshot header mangled: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[1].Text != "answer" {
		t.Fatalf("messages mangled: %+v", got.Messages)
	}
	if got.Messages[1].Confidence == nil || *got.Messages[1].Confidence != 0.9 {
		t.Fatalf("confidence dropped: %+v", got.Messages[1])
	}
}

func TestSaveSerializesNoticeExpiryInNanoseconds(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcripts.json")
	err := Save(path, Snapshot{
		Messages: []session.Message{
			{ID: "n1", Role: session.RoleSystem, Text: "Knowledge base enabled", AutoExpire: 4 * time.Second},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"autoExpireNs": 4000000000`) {
		t.Fatalf("expiry field not stored in nanoseconds:\n%s", raw)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded[0].Messages[0].AutoExpire; got != 4*time.Second {
		t.Fatalf("expiry = %v, want 4s", got)
	}
}

func TestSaveAppendsToExistingArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcripts.json")
	for i := 0; i < 3; i++ {
		err := Save(path, Snapshot{
			Messages: []session.Message{{ID: "m", Role: session.RoleUser, Text: "q"}},
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("snapshots = %d, want 3", len(loaded))
	}
}

func TestSaveSkipsEmptySnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcripts.json")
	if err := Save(path, Snapshot{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty snapshot should not create the archive, stat err = %v", err)
	}
}

func TestLoadMissingArchive(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want os.ErrNotExist, got %v", err)
	}
}

func TestLoadRejectsCorruptArchive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcripts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("corrupt archive should fail to load")
	}
}
