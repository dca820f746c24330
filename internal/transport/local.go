package transport

import (
	"log"
	"sync"

	"github.com/dverbeek/panocast/internal/proto"
)

// busCap bounds the pump queue; a full queue drops rather than blocks the
// sender, matching the fire-and-forget contract.
const busCap = 128

// Bus is the local broadcast channel: an in-process fanout reaching every
// participant session of this process (the engine plus each connected
// presentation surface). It works with zero network connectivity.
type Bus struct {
	subs *handlerSet

	mu     sync.Mutex
	queue  chan proto.Message
	closed bool
	done   chan struct{}
}

func NewBus() *Bus {
	b := &Bus{
		subs:  newHandlerSet(),
		queue: make(chan proto.Message, busCap),
		done:  make(chan struct{}),
	}
	go b.pump()
	return b
}

// pump serializes delivery so local subscribers observe sends in order.
func (b *Bus) pump() {
	for {
		select {
		case <-b.done:
			return
		case msg := <-b.queue:
			b.subs.dispatch(msg)
		}
	}
}

func (b *Bus) Send(msg proto.Message) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return
	}
	select {
	case b.queue <- msg:
	default:
		log.Printf("TRANSPORT: local bus full, dropping %s", msg.Type)
	}
}

func (b *Bus) Subscribe(h Handler) (cancel func()) {
	return b.subs.add(h)
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	b.subs.clear()
	return nil
}
