package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alfacon/thermosync/pkg/types"
)

// Sink receives the finalized summary of a run. Sinks are best-effort
// diagnostics: a failing sink is logged by the coordinator and never
// changes the run classification, and nothing is ever read back from a
// sink to influence behavior.
type Sink interface {
	Record(summary types.RunSummary) error
}

// SnapshotWriter dumps the run summary as JSON to a fixed path.
type SnapshotWriter struct {
	Path string
}

// Record writes the summary via a temp file and rename so a crashed run
// never leaves a truncated snapshot.
func (w *SnapshotWriter) Record(summary types.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := w.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(w.Path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, w.Path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Heartbeat touches a marker file with the completion time so external
// monitoring can tell the job is still being scheduled.
type Heartbeat struct {
	Path string
}

// Record writes the completion timestamp and terminal status.
func (h *Heartbeat) Record(summary types.RunSummary) error {
	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), summary.Status)
	if err := os.MkdirAll(filepath.Dir(h.Path), 0755); err != nil {
		return fmt.Errorf("create heartbeat directory: %w", err)
	}
	if err := os.WriteFile(h.Path, []byte(line), 0644); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	return nil
}
