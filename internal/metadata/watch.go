package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/martinsuchenak/invd/internal/log"
)

// reloadDelay collapses the burst of events editors emit on save
const reloadDelay = 300 * time.Millisecond

// Watch reloads h from path whenever the file changes, until ctx is done.
// onReload, when non-nil, is called after every reload attempt with its error.
// A file that fails to parse leaves h untouched.
func Watch(ctx context.Context, h *Hierarchy, path string, onReload func(error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	reload := func() {
		next, err := LoadFile(path)
		if err == nil {
			h.Replace(next)
			log.Info("Class hierarchy reloaded", "path", path, "classes", len(next.order))
		} else {
			log.Warn("Class hierarchy reload failed", "path", path, "error", err)
		}
		if onReload != nil {
			onReload(err)
		}
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				mu.Unlock()
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				log.Debug("Class file changed", "path", event.Name, "op", event.Op.String())
				mu.Lock()
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(reloadDelay, reload)
				mu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("Class file watcher error", "error", err)
			}
		}
	}()

	log.Info("Watching class hierarchy", "path", path)
	return nil
}
