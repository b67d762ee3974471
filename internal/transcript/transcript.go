// Package transcript persists conversation snapshots to a JSON archive so a
// session's transcript survives the process.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/csheth/ragdesk/internal/session"
)

// Snapshot captures a point-in-time view of one chat session.
type Snapshot struct {
	CapturedAt time.Time         `json:"capturedAt"`
	Backend    string            `json:"backend,omitempty"`
	Model      string            `json:"model,omitempty"`
	Retrieval  bool              `json:"retrieval"`
	Messages   []session.Message `json:"messages"`
}

// Save appends one snapshot to the archive, creating it if necessary.
// Snapshots with no messages are skipped.
func Save(path string, snapshot Snapshot) error {
	if len(snapshot.Messages) == 0 {
		return nil
	}
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = time.Now()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	snapshots, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		snapshots = nil
	}
	snapshots = append(snapshots, snapshot)
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load returns every stored snapshot in capture order.
func Load(path string) ([]Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var snapshots []Snapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}
