package engine

import (
	"sync"

	"github.com/dverbeek/panocast/internal/proto"
)

// Library is the ordered-by-insertion media collection, unique by ID.
// Add/Remove are idempotent set operations so deltas commute regardless of
// arrival order.
type Library struct {
	mu    sync.RWMutex
	order []string
	items map[string]proto.MediaItem
}

func NewLibrary() *Library {
	return &Library{items: make(map[string]proto.MediaItem)}
}

// Add inserts the item unless its ID is already present. Reports whether the
// item was inserted.
func (l *Library) Add(item proto.MediaItem) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[item.ID]; ok {
		return false
	}
	l.items[item.ID] = item
	l.order = append(l.order, item.ID)
	return true
}

// Remove drops the item if present. Reports whether anything was removed.
func (l *Library) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.items[id]; !ok {
		return false
	}
	delete(l.items, id)
	for i, oid := range l.order {
		if oid == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

func (l *Library) Get(id string) (proto.MediaItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	item, ok := l.items[id]
	return item, ok
}

// Items returns the collection in insertion order.
func (l *Library) Items() []proto.MediaItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]proto.MediaItem, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.items[id])
	}
	return out
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}
