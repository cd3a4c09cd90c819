// Package filewatcher reports files created or changed in a directory.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Operation string

const (
	FileCreated  Operation = "created"
	FileModified Operation = "modified"
)

type FileEvent struct {
	Path      string
	Operation Operation
}

// Watcher emits one event per file once writes to it have settled for the
// debounce period.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool // empty means every file
	debounce   time.Duration
}

func NewWatcher(extensions []string, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}

	return &Watcher{watcher: w, extensions: exts, debounce: debounce}, nil
}

// Watch monitors dir until ctx is done. The returned channels are closed on exit.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan FileEvent, <-chan error, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, nil, err
	}

	out := make(chan FileEvent, 100)
	errs := make(chan error, 10)

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)

	schedule := func(ev FileEvent) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[ev.Path]; ok {
			if t.Stop() {
				wg.Done()
			}
		}
		wg.Add(1)
		var timer *time.Timer
		timer = time.AfterFunc(w.debounce, func() {
			defer wg.Done()
			mu.Lock()
			if pending[ev.Path] == timer {
				delete(pending, ev.Path)
			}
			mu.Unlock()
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		})
		pending[ev.Path] = timer
	}

	go func() {
		defer func() {
			mu.Lock()
			for _, t := range pending {
				if t.Stop() {
					wg.Done()
				}
			}
			mu.Unlock()
			wg.Wait()
			close(out)
			close(errs)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !w.isWatched(event.Name) {
					continue
				}

				var op Operation
				switch {
				case event.Op&fsnotify.Create == fsnotify.Create:
					op = FileCreated
				case event.Op&fsnotify.Write == fsnotify.Write:
					op = FileModified
				default:
					continue
				}
				schedule(FileEvent{Path: event.Name, Operation: op})
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return out, errs, nil
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatched(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}
