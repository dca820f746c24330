package transport

import (
	"log"

	"github.com/dverbeek/panocast/internal/proto"
)

// Composite fans a single logical Send out to every live concrete transport.
// The local bus is always attempted; the networked transport only while the
// online probe reports connectivity. A failure in one leg must never reach
// the other, so each leg runs behind its own recover boundary.
type Composite struct {
	local   Transport
	network Transport
	online  func() bool
}

// NewComposite builds the dual-path transport. network may be nil (local-only
// mode); online may be nil, which means always attempt the networked path.
func NewComposite(local, network Transport, online func() bool) *Composite {
	if online == nil {
		online = func() bool { return true }
	}
	return &Composite{local: local, network: network, online: online}
}

func (c *Composite) Send(msg proto.Message) {
	sendIsolated(c.local, msg)
	if c.network != nil && c.online() {
		sendIsolated(c.network, msg)
	}
}

func sendIsolated(t Transport, msg proto.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("TRANSPORT: send panic isolated: %v", r)
		}
	}()
	t.Send(msg)
}

// Subscribe registers the handler on every leg. Inbound messages are accepted
// from both paths regardless of the online flag: a message that made it here
// was delivered.
func (c *Composite) Subscribe(h Handler) (cancel func()) {
	cancelLocal := c.local.Subscribe(h)
	if c.network == nil {
		return cancelLocal
	}
	cancelNet := c.network.Subscribe(h)
	return func() {
		cancelLocal()
		cancelNet()
	}
}

func (c *Composite) Close() error {
	err := c.local.Close()
	if c.network != nil {
		if nerr := c.network.Close(); err == nil {
			err = nerr
		}
	}
	return err
}
