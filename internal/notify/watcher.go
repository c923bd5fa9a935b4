// Package notify watches the corpus directory and triggers index
// rebuilds when source documents change.
package notify

import (
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events (editors write
// several events per save, syncs touch many files) into one rebuild.
const debounceWindow = 2 * time.Second

// watchedExtensions are the corpus document types worth rebuilding for.
var watchedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// CorpusWatcher watches a corpus directory and invokes a callback,
// debounced, when any corpus document is created, modified, renamed,
// or removed.
type CorpusWatcher struct {
	dir      string
	callback func()
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewCorpusWatcher creates a watcher for the given corpus directory.
// The callback runs on the watcher goroutine; long rebuilds should be
// dispatched from it, not run inline.
func NewCorpusWatcher(dir string, callback func()) *CorpusWatcher {
	return &CorpusWatcher{
		dir:      dir,
		callback: callback,
		done:     make(chan struct{}),
	}
}

// Start begins watching. Call Stop to clean up.
func (cw *CorpusWatcher) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(cw.dir); err != nil {
		_ = w.Close()
		return err
	}
	cw.watcher = w

	go cw.loop()
	log.Printf("Watching %s for corpus changes", cw.dir)
	return nil
}

// Stop shuts down the watcher and waits for the loop to exit.
func (cw *CorpusWatcher) Stop() {
	if cw.watcher != nil {
		_ = cw.watcher.Close()
	}
	<-cw.done
}

func (cw *CorpusWatcher) loop() {
	defer close(cw.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case evt, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !relevant(evt) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				fire = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(debounceWindow)
			}
		case <-fire:
			timer = nil
			fire = nil
			if cw.callback != nil {
				cw.callback()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Warning: corpus watcher error: %v", err)
		}
	}
}

// relevant filters events down to content changes on corpus documents.
func relevant(evt fsnotify.Event) bool {
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(evt.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return watchedExtensions[strings.ToLower(filepath.Ext(name))]
}
