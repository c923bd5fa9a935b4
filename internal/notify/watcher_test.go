package notify

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, dir string, callback func()) *CorpusWatcher {
	t.Helper()
	watcher := NewCorpusWatcher(dir, callback)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(watcher.Stop)

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)
	return watcher
}

func TestWatcherFiresOnDocumentWrite(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 1)
	startWatcher(t, dir, func() { fired <- struct{}{} })

	if err := os.WriteFile(filepath.Join(dir, "wheat.md"), []byte("# Wheat"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for rebuild trigger")
	}
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	var fires atomic.Int32
	startWatcher(t, dir, func() { fires.Add(1) })

	// A burst of writes within the debounce window.
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, "doc.txt")
		if err := os.WriteFile(name, []byte("update"), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	deadline := time.After(10 * time.Second)
	for fires.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for debounced trigger")
		default:
			time.Sleep(50 * time.Millisecond)
		}
	}
	// Settle past another window to catch spurious extra fires.
	time.Sleep(debounceWindow + 500*time.Millisecond)

	if got := fires.Load(); got != 1 {
		t.Errorf("expected 1 debounced trigger, got %d", got)
	}
}

func TestWatcherIgnoresIrrelevantFiles(t *testing.T) {
	dir := t.TempDir()
	var fires atomic.Int32
	startWatcher(t, dir, func() { fires.Add(1) })

	if err := os.WriteFile(filepath.Join(dir, "index.db"), []byte("binary"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".draft.md"), []byte("hidden"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	time.Sleep(debounceWindow + 500*time.Millisecond)
	if got := fires.Load(); got != 0 {
		t.Errorf("expected no triggers for irrelevant files, got %d", got)
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	watcher := NewCorpusWatcher(filepath.Join(t.TempDir(), "absent"), func() {})
	if err := watcher.Start(); err == nil {
		watcher.Stop()
		t.Fatal("expected error for missing directory")
	}
}
