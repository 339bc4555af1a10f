package ingest

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/battery-insight/backend/internal/models"
	"github.com/battery-insight/backend/internal/session"
	"github.com/battery-insight/backend/internal/storage"
)

type recordingStarter struct {
	mu      sync.Mutex
	started []string
}

func (r *recordingStarter) StartSession(fileID string, opts session.StartOptions) (*models.ParseSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, fileID)
	return models.NewParseSession(uuid.New().String(), fileID), nil
}

func (r *recordingStarter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func TestWatcher_ImportsDroppedDump(t *testing.T) {
	dropDir := t.TempDir()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	starter := &recordingStarter{}

	w, err := NewWatcher(dropDir, store, starter)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dropDir, "batterystats.txt")
	if err := os.WriteFile(path, []byte("Battery History (0% used):\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for starter.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if starter.count() != 1 {
		t.Fatalf("sessions started = %d, want 1", starter.count())
	}

	list, err := store.List(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "batterystats.txt" {
		t.Errorf("stored files = %+v", list)
	}
}

func TestWatcher_IgnoresOtherExtensions(t *testing.T) {
	dropDir := t.TempDir()
	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	starter := &recordingStarter{}

	w, err := NewWatcher(dropDir, store, starter)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dropDir, "notes.pdf"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(2 * debounceDelay)
	if starter.count() != 0 {
		t.Errorf("sessions started = %d, want 0", starter.count())
	}
}
