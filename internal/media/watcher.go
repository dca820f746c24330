package media

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet before ingest; copies into
// the drop directory produce a burst of Write events while in flight.
const settleDelay = 2 * time.Second

// Watcher ingests media files dropped into a directory. For every settled
// file with a recognized extension it invokes onMedia with a ready
// descriptor. locatorFor maps a media path to the URL it will be served
// under (may return "" for a local-only locator).
type Watcher struct {
	dir        string
	locatorFor func(path string) string
	onMedia    func(Descriptor)

	fsw *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	seen    map[string]bool
}

func NewWatcher(dir string, locatorFor func(string) string, onMedia func(Descriptor)) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		dir:        dir,
		locatorFor: locatorFor,
		onMedia:    onMedia,
		fsw:        fsw,
		pending:    make(map[string]*time.Timer),
		seen:       make(map[string]bool),
	}, nil
}

// Run ingests files already present, then watches for new ones until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			w.ingest(ctx, filepath.Join(w.dir, e.Name()))
		}
	}

	go func() {
		defer w.fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					w.schedule(ctx, event.Name)
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Printf("MEDIA: watcher error: %v", err)
			}
		}
	}()
}

// schedule (re)arms the settle timer for a path; the file is ingested once
// the event burst stops.
func (w *Watcher) schedule(ctx context.Context, path string) {
	if _, ok := KindForPath(path); !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(ctx, path)
	})
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	locator := ""
	if w.locatorFor != nil {
		locator = w.locatorFor(path)
	}

	d, err := FromFile(ctx, path, locator)
	if err != nil {
		log.Printf("MEDIA: skipping %s: %v", filepath.Base(path), err)
		return
	}
	log.Printf("MEDIA: ingested %q (%s, %d bytes)", d.Title, d.Kind, d.SizeBytes)
	w.onMedia(d)
}
