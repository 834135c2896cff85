package cluster

import (
	"context"
	"fmt"
	"log"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher observes a directory of heartbeat touch-files as a
// membership fallback for deployments where every node shares a
// filesystem but not a KV backend reachable from every peer (e.g. a
// single-host multi-process test cluster). Each node periodically
// touches <dir>/<nodeID>; a Write event is treated the same as a KV
// heartbeat entry by the caller.
type FileWatcher struct {
	dir string
}

// NewFileWatcher returns a watcher over dir, which must already exist.
func NewFileWatcher(dir string) *FileWatcher {
	return &FileWatcher{dir: dir}
}

// Watch streams node ids as their heartbeat file is created or written,
// until ctx is cancelled. An fsnotify watch error is logged and watching
// continues on the same watcher; the watcher is never re-created.
func (w *FileWatcher) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cluster: new file watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("cluster: watch %s: %w", w.dir, err)
	}

	ch := make(chan string, 64)
	go func() {
		defer close(ch)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case ch <- nodeIDFromPath(ev.Name):
				default:
					log.Printf("cluster: file watcher channel full, dropping event for %s", ev.Name)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("cluster: file watcher error: %v", err)
			}
		}
	}()
	return ch, nil
}

func nodeIDFromPath(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}
