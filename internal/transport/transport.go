// Package transport delivers sync messages to every other participant with
// best-effort semantics: no acknowledgement, no cross-transport ordering.
package transport

import (
	"sync"

	"github.com/dverbeek/panocast/internal/proto"
)

// Handler is invoked once per received message for the lifetime of a
// subscription.
type Handler func(msg proto.Message)

// Transport is the contract both delivery mechanisms implement. Send is
// fire-and-forget and never blocks on the network. Close releases the
// underlying channel; a participant that skips it leaks reception slots.
type Transport interface {
	Send(msg proto.Message)
	Subscribe(h Handler) (cancel func())
	Close() error
}

// handlerSet is the shared subscriber registry. Registration returns an
// unsubscribe func; dispatch walks a snapshot so handlers may unsubscribe
// from within a callback.
type handlerSet struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func newHandlerSet() *handlerSet {
	return &handlerSet{handlers: make(map[int]Handler)}
}

func (s *handlerSet) add(h Handler) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

func (s *handlerSet) dispatch(msg proto.Message) {
	s.mu.RLock()
	snapshot := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		snapshot = append(snapshot, h)
	}
	s.mu.RUnlock()

	for _, h := range snapshot {
		h(msg)
	}
}

func (s *handlerSet) clear() {
	s.mu.Lock()
	s.handlers = make(map[int]Handler)
	s.mu.Unlock()
}
